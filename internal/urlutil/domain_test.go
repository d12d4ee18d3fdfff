package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrableDomain(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"deep.sub.example.com", "example.com"},
		{"example.co.uk", "example.co.uk"},
		{"www.example.co.uk", "example.co.uk"},
		{"example.com:8080", "example.com"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RegistrableDomain(c.host), c.host)
	}
}

func TestSameSite(t *testing.T) {
	assert.True(t, SameSite("www.example.com", "blog.example.com"))
	assert.False(t, SameSite("example.com", "other.com"))
}

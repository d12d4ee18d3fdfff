package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"lowercases host", "https://EXAMPLE.com/a", "https://example.com/a"},
		{"collapses trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"bare path becomes slash", "https://example.com", "https://example.com/"},
		{"sorts query params", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Canonicalize(c.in, true)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCanonicalizeRejectsRelative(t *testing.T) {
	_, err := Canonicalize("/a/b", true)
	assert.Error(t, err)
}

func TestCanonicalizeNoSort(t *testing.T) {
	got, err := Canonicalize("https://example.com/a?b=2&a=1", false)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a?b=2&a=1", got)
}

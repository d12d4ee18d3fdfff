package urlutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRobotsCheckerDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewRobotsChecker("crawlkit-test", nil)
	assert.True(t, checker.Allowed(context.Background(), srv.URL+"/public/page"))
	assert.False(t, checker.Allowed(context.Background(), srv.URL+"/private/page"))
}

func TestRobotsCheckerDisabled(t *testing.T) {
	checker := Disabled()
	assert.True(t, checker.Allowed(context.Background(), "https://example.com/anything"))
}

func TestRobotsCheckerFailsOpen(t *testing.T) {
	checker := NewRobotsChecker("crawlkit-test", nil)
	assert.True(t, checker.Allowed(context.Background(), "http://127.0.0.1:1/unreachable"))
}

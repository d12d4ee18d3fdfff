package urlutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/ternarybob/arbor"
)

// RobotsChecker enforces robots.txt directives per host, caching parsed
// rules until Evict clears the cache. A fetch failure fails open: an
// unreachable robots.txt is treated as allow-all rather than blocking the
// crawl on a transient network error.
type RobotsChecker struct {
	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    arbor.ILogger
	disabled  bool
}

func NewRobotsChecker(userAgent string, logger arbor.ILogger) *RobotsChecker {
	return &RobotsChecker{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Disabled returns a checker that allows every URL, used when the
// controller is configured not to follow robots.txt.
func Disabled() *RobotsChecker {
	return &RobotsChecker{disabled: true}
}

// Evict drops every cached robots.txt entry, forcing the next Allowed call
// per host to re-fetch. Called on a schedule so a site that changes its
// robots.txt mid-deployment isn't enforced against stale rules forever.
func (r *RobotsChecker) Evict() {
	if r == nil || r.disabled {
		return
	}
	r.cache.Range(func(key, _ interface{}) bool {
		r.cache.Delete(key)
		return true
	})
}

func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	if r == nil || r.disabled {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	data, err := r.load(ctx, parsed)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn().Err(err).Str("host", parsed.Host).Msg("robots.txt fetch failed, allowing")
		}
		return true
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

func (r *RobotsChecker) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)
	if cached, ok := r.cache.Load(hostKey); ok {
		data, assertOK := cached.(*robotstxt.RobotsData)
		if !assertOK {
			return nil, fmt.Errorf("robots cache type mismatch: %T", cached)
		}
		return data, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt body: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	r.cache.Store(hostKey, data)
	return data, nil
}

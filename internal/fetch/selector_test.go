package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/crawlkit/internal/models"
)

type fakeFetcher struct {
	name    string
	cap     models.FetcherCapability
	results []*models.FetchResult
	calls   int
}

func (f *fakeFetcher) Name() string                           { return f.name }
func (f *fakeFetcher) Capability() models.FetcherCapability    { return f.cap }
func (f *fakeFetcher) Fetch(ctx context.Context, url string, opts models.ScrapeOptions) *models.FetchResult {
	i := f.calls
	if i > len(f.results)-1 {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i]
}

func TestSelectorFallsForwardOnBlocked(t *testing.T) {
	first := &fakeFetcher{name: "plainHttp", results: []*models.FetchResult{{Failure: models.FailureBlocked}}}
	second := &fakeFetcher{name: "headless", cap: models.FetcherCapability{ExecutesJS: true}, results: []*models.FetchResult{{StatusCode: 200}}}

	sel := NewSelector([]Fetcher{first, second}, NewRetryPolicy(), nil)
	result := sel.Fetch(context.Background(), "https://example.com", models.DefaultScrapeOptions())

	assert.True(t, result.Ok())
	assert.Equal(t, 1, first.calls)
}

func TestSelectorStopsOnNotFound(t *testing.T) {
	first := &fakeFetcher{name: "plainHttp", results: []*models.FetchResult{{Failure: models.FailureNotFound, StatusCode: 404}}}
	second := &fakeFetcher{name: "headless", cap: models.FetcherCapability{ExecutesJS: true}, results: []*models.FetchResult{{StatusCode: 200}}}

	sel := NewSelector([]Fetcher{first, second}, NewRetryPolicy(), nil)
	result := sel.Fetch(context.Background(), "https://example.com", models.DefaultScrapeOptions())

	assert.False(t, result.Ok())
	assert.Equal(t, models.FailureNotFound, result.Failure)
	assert.Equal(t, 0, second.calls)
}

func TestSelectorSkipsIncapableStrategy(t *testing.T) {
	plain := &fakeFetcher{name: "plainHttp", results: []*models.FetchResult{{Failure: models.FailureInvalidContent}}}
	headless := &fakeFetcher{
		name:    "headless",
		cap:     models.FetcherCapability{ExecutesJS: true, SupportsScreenshot: true},
		results: []*models.FetchResult{{StatusCode: 200, Screenshot: []byte("png")}},
	}

	opts := models.DefaultScrapeOptions()
	opts.Formats = []models.Format{models.FormatScreenshot}

	sel := NewSelector([]Fetcher{plain, headless}, NewRetryPolicy(), nil)
	result := sel.Fetch(context.Background(), "https://example.com", opts)

	assert.True(t, result.Ok())
	assert.Equal(t, 0, plain.calls)
}

func TestRetryPolicyBackoffGrows(t *testing.T) {
	p := NewRetryPolicy()
	assert.Less(t, p.CalculateBackoff(0), p.CalculateBackoff(1))
	assert.LessOrEqual(t, p.CalculateBackoff(10), p.MaxBackoff)
}

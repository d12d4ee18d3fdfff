// Package fetch implements the Fetcher Strategies: PlainHttp, Headless,
// StealthProxy, and FireEngine, plus the selector that tries them in
// capability order with fallback on failure.
package fetch

import (
	"context"

	"github.com/ternarybob/crawlkit/internal/models"
)

// Fetcher is one strategy for retrieving a URL's rendered content.
type Fetcher interface {
	Name() string
	Capability() models.FetcherCapability
	Fetch(ctx context.Context, targetURL string, opts models.ScrapeOptions) *models.FetchResult
}

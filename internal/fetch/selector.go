package fetch

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/models"
)

// Selector tries fetcher strategies in order, retrying a strategy on a
// transient failure per the retry policy before falling forward to the
// next strategy on a blocked/invalid-content failure. A fatal failure
// aborts the chain immediately — no fetcher is going to succeed on a
// malformed URL or unresolvable host.
type Selector struct {
	strategies []Fetcher
	retry      *RetryPolicy
	logger     arbor.ILogger
}

func NewSelector(strategies []Fetcher, retry *RetryPolicy, logger arbor.ILogger) *Selector {
	return &Selector{strategies: strategies, retry: retry, logger: logger}
}

// Fetch runs the ordered strategy chain against a single wall-clock budget
// equal to opts.Timeout: every strategy (and each of its retries) draws down
// the same deadline rather than getting a fresh opts.Timeout of its own, so
// a multi-strategy fallback chain can't run to several times the requested
// timeout. Once the budget is exhausted, remaining strategies are skipped.
func (s *Selector) Fetch(ctx context.Context, targetURL string, opts models.ScrapeOptions) *models.FetchResult {
	if opts.Timeout > 0 {
		budgetCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Millisecond)
		defer cancel()
		ctx = budgetCtx
	}

	var last *models.FetchResult

	for _, strategy := range s.strategies {
		if !capable(strategy.Capability(), opts) {
			continue
		}
		if ctx.Err() != nil {
			if s.logger != nil {
				s.logger.Debug().Str("strategy", strategy.Name()).Str("url", targetURL).Msg("fetch budget exhausted, skipping remaining strategies")
			}
			break
		}

		result := s.fetchWithRetry(ctx, strategy, targetURL, opts)
		last = result

		if result.Ok() {
			return result
		}
		if result.Failure == models.FailureFatal || result.Failure == models.FailureNotFound {
			return result
		}
		if s.logger != nil {
			s.logger.Debug().Str("strategy", strategy.Name()).Str("url", targetURL).Str("failure", string(result.Failure)).Msg("fetcher strategy failed, falling forward")
		}
	}

	if last == nil {
		last = &models.FetchResult{Failure: models.FailureFatal}
	}
	return last
}

func (s *Selector) fetchWithRetry(ctx context.Context, strategy Fetcher, targetURL string, opts models.ScrapeOptions) *models.FetchResult {
	var result *models.FetchResult
	for attempt := 0; ; attempt++ {
		result = strategy.Fetch(ctx, targetURL, opts)
		if result.Ok() || !IsRetryable(result.Failure) {
			return result
		}
		if s.retry == nil || attempt >= s.retry.MaxAttempts-1 {
			return result
		}
		select {
		case <-ctx.Done():
			return result
		case <-time.After(s.retry.CalculateBackoff(attempt)):
		}
	}
}

func capable(cap models.FetcherCapability, opts models.ScrapeOptions) bool {
	if opts.WantsScreenshot() && !cap.SupportsScreenshot {
		return false
	}
	if opts.Proxy == models.ProxyStealth && !cap.SupportsStealth {
		return false
	}
	if opts.NeedsJS() && !cap.ExecutesJS && !cap.SupportsScreenshot {
		return false
	}
	return true
}

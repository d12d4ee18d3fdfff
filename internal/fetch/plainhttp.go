package fetch

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/models"
)

// PlainHTTP is the fastest, cheapest strategy: a single request via
// gocolly, no JS execution. It is always the first strategy the selector
// tries unless the request already demands JS.
type PlainHTTP struct {
	userAgent string
	logger    arbor.ILogger
}

func NewPlainHTTP(userAgent string, logger arbor.ILogger) *PlainHTTP {
	return &PlainHTTP{userAgent: userAgent, logger: logger}
}

func (f *PlainHTTP) Name() string { return "plainHttp" }

func (f *PlainHTTP) Capability() models.FetcherCapability {
	return models.FetcherCapability{}
}

// contextAwareTransport cancels in-flight requests when ctx is done, so a
// slow PlainHttp attempt doesn't outlive the caller's timeout budget.
type contextAwareTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (t *contextAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	select {
	case <-t.ctx.Done():
		return nil, t.ctx.Err()
	default:
	}
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func (f *PlainHTTP) Fetch(ctx context.Context, targetURL string, opts models.ScrapeOptions) *models.FetchResult {
	start := time.Now()
	result := &models.FetchResult{Headers: make(map[string][]string)}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.IgnoreRobotsTxt(), // the Admitter already enforces robots.txt before a URL reaches the fetcher
	)
	c.WithTransport(&contextAwareTransport{base: http.DefaultTransport, ctx: ctx})

	if timeout := time.Duration(opts.Timeout) * time.Millisecond; timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	for k, v := range opts.Headers {
		c.OnRequest(func(r *colly.Request) { r.Headers.Set(k, v) })
	}

	var cancelled atomic.Bool
	c.OnResponse(func(r *colly.Response) {
		result.FinalURL = r.Request.URL.String()
		result.StatusCode = r.StatusCode
		result.Body = string(r.Body)
		for k, v := range *r.Headers {
			result.Headers[k] = v
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		result.FailureErr = err
	})

	go func() {
		<-ctx.Done()
		cancelled.Store(true)
	}()

	if err := c.Visit(targetURL); err != nil && result.FailureErr == nil {
		result.FailureErr = err
	}
	c.Wait()

	result.Timing = time.Since(start)
	if cancelled.Load() && result.FailureErr == nil {
		result.FailureErr = ctx.Err()
	}

	if result.FailureErr != nil {
		result.Failure = classifyError(result.FailureErr)
		return result
	}
	result.Failure = classifyStatus(result.StatusCode)
	return result
}

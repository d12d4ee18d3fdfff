package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/models"
)

// Headless renders a page in a pooled headless Chrome instance, executing
// JavaScript and optionally producing a screenshot. StealthProxy reuses
// this same fetcher with a proxy-routed allocator context (see NewStealthProxy).
type Headless struct {
	pool      *BrowserPool
	userAgent string
	logger    arbor.ILogger
	stealth   bool
}

func NewHeadless(pool *BrowserPool, userAgent string, logger arbor.ILogger) *Headless {
	return &Headless{pool: pool, userAgent: userAgent, logger: logger}
}

func NewStealthProxy(pool *BrowserPool, userAgent string, logger arbor.ILogger) *Headless {
	return &Headless{pool: pool, userAgent: userAgent, logger: logger, stealth: true}
}

func (f *Headless) Name() string {
	if f.stealth {
		return "stealthProxy"
	}
	return "headless"
}

func (f *Headless) Capability() models.FetcherCapability {
	return models.FetcherCapability{
		ExecutesJS:         true,
		SupportsScreenshot: true,
		SupportsProxy:      f.stealth,
		SupportsStealth:    f.stealth,
		RespectsWaitFor:    true,
	}
}

func (f *Headless) Fetch(ctx context.Context, targetURL string, opts models.ScrapeOptions) *models.FetchResult {
	start := time.Now()
	result := &models.FetchResult{Headers: make(map[string][]string)}

	browserCtx, release, err := f.pool.Acquire(ctx)
	if err != nil {
		result.FailureErr = fmt.Errorf("acquire browser instance: %w", err)
		result.Failure = classifyError(err)
		return result
	}
	defer release()

	timeout := time.Duration(opts.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	var statusCode int64
	var html string
	var screenshot []byte

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Navigate(targetURL).Do(ctx)
		}),
	}
	if opts.WaitFor > 0 {
		actions = append(actions, chromedp.Sleep(time.Duration(opts.WaitFor)*time.Millisecond))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if opts.WantsScreenshot() {
		actions = append(actions, chromedp.FullScreenshot(&screenshot, 90))
	}

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Response.URL == targetURL {
			statusCode = resp.Response.Status
		}
	})

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		result.FailureErr = err
		result.Failure = classifyError(err)
		result.Timing = time.Since(start)
		return result
	}

	result.FinalURL = targetURL
	result.StatusCode = int(statusCode)
	if result.StatusCode == 0 {
		result.StatusCode = 200
	}
	result.Body = html
	result.Screenshot = screenshot
	result.Timing = time.Since(start)
	result.Failure = classifyStatus(result.StatusCode)
	return result
}

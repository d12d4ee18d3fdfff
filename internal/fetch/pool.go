package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// BrowserPoolConfig configures a pool of headless Chrome instances shared
// by the Headless and StealthProxy fetcher strategies.
type BrowserPoolConfig struct {
	MaxInstances int
	UserAgent    string
	ProxyServer  string // set for the stealth pool, empty for plain headless
}

// BrowserPool holds a fixed set of long-lived browser contexts, handed out
// round-robin, with an admission semaphore capping in-flight tabs at
// MaxInstances so a burst of headless requests doesn't spawn unbounded
// Chrome processes.
type BrowserPool struct {
	mu       sync.Mutex
	browsers []context.Context
	cancels  []context.CancelFunc
	index    int
	sem      chan struct{}
	logger   arbor.ILogger
}

func NewBrowserPool(cfg BrowserPoolConfig, logger arbor.ILogger) (*BrowserPool, error) {
	if cfg.MaxInstances <= 0 {
		return nil, fmt.Errorf("browser pool: max instances must be > 0")
	}
	p := &BrowserPool{
		sem:    make(chan struct{}, cfg.MaxInstances),
		logger: logger,
	}

	for i := 0; i < cfg.MaxInstances; i++ {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(cfg.UserAgent),
		)
		if cfg.ProxyServer != "" {
			opts = append(opts, chromedp.ProxyServer(cfg.ProxyServer))
		}

		allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

		testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
		if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
			testCancel()
			browserCancel()
			allocatorCancel()
			if logger != nil {
				logger.Warn().Err(err).Int("index", i).Msg("browser instance failed startup test, skipping")
			}
			continue
		}
		testCancel()

		p.browsers = append(p.browsers, browserCtx)
		p.cancels = append(p.cancels, func() { browserCancel(); allocatorCancel() })
	}

	if len(p.browsers) == 0 {
		return nil, fmt.Errorf("browser pool: no browser instances could be started")
	}
	return p, nil
}

// Acquire blocks on the admission semaphore, then hands out the next
// browser context round-robin. The returned release func must be called
// exactly once.
func (p *BrowserPool) Acquire(ctx context.Context) (context.Context, func(), error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	p.mu.Lock()
	browserCtx := p.browsers[p.index%len(p.browsers)]
	p.index++
	p.mu.Unlock()

	return browserCtx, func() { <-p.sem }, nil
}

func (p *BrowserPool) Shutdown() {
	for _, cancel := range p.cancels {
		cancel()
	}
}

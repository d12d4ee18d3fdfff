// Package app wires the scrape pipeline engine's components into one
// process, grounded on the teacher's internal/app/app.go New/Close pair:
// open storage, build the domain services in dependency order, register
// queue handlers, then start the worker pool last so nothing can lease a
// job before its handler is registered.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/content"
	"github.com/ternarybob/crawlkit/internal/crawler"
	"github.com/ternarybob/crawlkit/internal/extract"
	"github.com/ternarybob/crawlkit/internal/fetch"
	"github.com/ternarybob/crawlkit/internal/models"
	"github.com/ternarybob/crawlkit/internal/queue"
	"github.com/ternarybob/crawlkit/internal/scrape"
	"github.com/ternarybob/crawlkit/internal/services/events"
)

// App holds every wired component the HTTP server's handlers call into.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	db         *queue.BadgerDB
	JobQueue   *queue.JobQueue
	Docs       *queue.DocumentStore
	Registry   *crawler.Registry
	Events     *events.Service
	Controller *crawler.Controller

	selector  *fetch.Selector
	pipeline  *content.Pipeline
	extractor extract.Extractor

	workerPool  *queue.WorkerPool
	browserPool *fetch.BrowserPool
	stealthPool *fetch.BrowserPool
	scheduler   *cron.Cron
}

// New opens storage and wires every component. The returned App has not
// started its worker pool yet; call Start to begin consuming jobs.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	db, err := queue.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("app: open storage: %w", err)
	}
	a.db = db
	a.Docs = queue.NewDocumentStore(db)

	visibility, err := time.ParseDuration(cfg.Queue.VisibilityTimeout)
	if err != nil {
		return nil, fmt.Errorf("app: invalid queue.visibility_timeout: %w", err)
	}
	jq, err := queue.NewJobQueue(db, cfg.Queue.QueueName, visibility, cfg.Queue.MaxReceive, queue.NewRetryPolicy(), logger)
	if err != nil {
		return nil, fmt.Errorf("app: open job queue: %w", err)
	}
	a.JobQueue = jq

	if err := a.buildFetchChain(); err != nil {
		return nil, fmt.Errorf("app: build fetch chain: %w", err)
	}
	a.pipeline = content.NewPipeline(logger)

	if cfg.Extract.APIKey != "" {
		extractor, err := extract.NewClaude(&cfg.Extract, logger)
		if err != nil {
			return nil, fmt.Errorf("app: build extractor: %w", err)
		}
		a.extractor = extractor
	} else {
		logger.Warn().Msg("no extract api key configured, scrapes requesting format=extract will fail with ExtractFailed")
	}

	a.Events = events.NewService(logger)
	a.Registry = crawler.NewRegistry()
	limiter := crawler.NewHostRateLimiter(0)

	a.Controller = crawler.NewController(a.Registry, limiter, a.JobQueue, a.Docs, a.selector, a.pipeline, a.extractor, a.Events, cfg.Fetch.UserAgent, cfg.Crawl.FollowRobotsTxt, cfg.Workers.PerCrawlMax, logger)

	admitter := crawler.NewAdmitter(cfg.Workers.GlobalConcurrency, cfg.Workers.PerCrawlMax, cfg.Workers.PerHostMax)
	pollInterval, err := time.ParseDuration(cfg.Queue.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("app: invalid queue.poll_interval: %w", err)
	}
	a.workerPool = queue.NewWorkerPool(a.JobQueue, cfg.Queue.Concurrency, pollInterval, admitter, logger)
	a.workerPool.RegisterHandler(models.JobKindCrawlPage, a.Controller.HandleCrawlPage)
	scrapeHandler := scrape.NewHandler(a.selector, a.pipeline, a.extractor, a.Docs, a.Events, logger)
	a.workerPool.RegisterHandler(models.JobKindScrape, scrapeHandler.Handle)

	a.scheduler = cron.New(cron.WithSeconds())
	if _, err := a.scheduler.AddFunc(cfg.Crawl.CacheEvictionSchedule, a.Controller.EvictRobotsCache); err != nil {
		return nil, fmt.Errorf("app: invalid crawl.cache_eviction_schedule: %w", err)
	}

	return a, nil
}

// Start begins consuming jobs from the queue and the cache-eviction
// scheduler.
func (a *App) Start(ctx context.Context) {
	a.workerPool.Start(ctx)
	a.scheduler.Start()
	a.Logger.Info().Int("concurrency", a.Config.Queue.Concurrency).Msg("worker pool started")
}

// Shutdown drains in-flight jobs for up to drain before closing storage,
// matching §6's "signal-initiated shutdown drains the queue for up to 30s".
func (a *App) Shutdown(drain time.Duration) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.workerPool.Stop(drain)
	if a.Events != nil {
		_ = a.Events.Close()
	}
	if a.browserPool != nil {
		a.browserPool.Shutdown()
	}
	if a.stealthPool != nil {
		a.stealthPool.Shutdown()
	}
	if err := a.JobQueue.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to close job queue")
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("app: close storage: %w", err)
	}
	return nil
}

// buildFetchChain assembles the ordered strategy list (§4.A/§4.B):
// PlainHttp always, Headless when a browser pool can be started,
// StealthProxy when one can be started with a proxy configured, and
// FireEngine when an external rendering endpoint is configured.
func (a *App) buildFetchChain() error {
	cfg := a.Config.Fetch
	strategies := []fetch.Fetcher{fetch.NewPlainHTTP(cfg.UserAgent, a.Logger)}

	if cfg.HeadlessPoolSize > 0 {
		pool, err := fetch.NewBrowserPool(fetch.BrowserPoolConfig{MaxInstances: cfg.HeadlessPoolSize, UserAgent: cfg.UserAgent}, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("headless browser pool unavailable, PlainHttp-only fetch chain")
		} else {
			a.browserPool = pool
			strategies = append(strategies, fetch.NewHeadless(pool, cfg.UserAgent, a.Logger))

			if cfg.StealthProxyServer != "" {
				stealthPool, err := fetch.NewBrowserPool(fetch.BrowserPoolConfig{MaxInstances: cfg.HeadlessPoolSize, UserAgent: cfg.UserAgent, ProxyServer: cfg.StealthProxyServer}, a.Logger)
				if err != nil {
					a.Logger.Warn().Err(err).Msg("stealth proxy browser pool unavailable")
				} else {
					a.stealthPool = stealthPool
					strategies = append(strategies, fetch.NewStealthProxy(stealthPool, cfg.UserAgent, a.Logger))
				}
			}
		}
	}

	if cfg.FireEngineEndpoint != "" {
		strategies = append(strategies, fetch.NewFireEngine(cfg.FireEngineEndpoint, cfg.UserAgent, a.Logger))
	}

	retry := fetch.NewRetryPolicy()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = cfg.RetryInitialBackoff
	retry.MaxBackoff = cfg.RetryMaxBackoff

	a.selector = fetch.NewSelector(strategies, retry, a.Logger)
	return nil
}

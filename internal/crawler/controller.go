// Package crawler implements the Crawl Controller: it owns a crawl's
// lifecycle from StartCrawl through its state-machine transitions, pumps
// its frontier into the job queue, and runs the crawlPage handler that
// fetches, transforms, and discovers links for one page at a time.
package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/content"
	"github.com/ternarybob/crawlkit/internal/extract"
	"github.com/ternarybob/crawlkit/internal/fetch"
	"github.com/ternarybob/crawlkit/internal/models"
	"github.com/ternarybob/crawlkit/internal/queue"
	"github.com/ternarybob/crawlkit/internal/scrape"
	"github.com/ternarybob/crawlkit/internal/services/events"
	"github.com/ternarybob/crawlkit/internal/urlutil"
)

// ErrCrawlNotFound is returned by Status/Cancel for an unknown crawl ID.
var ErrCrawlNotFound = errors.New("crawl not found")

// Controller ties the frontier, admission policy, fetch/content pipeline,
// and job queue together into the crawl lifecycle described by the crawl
// state machine: created -> active -> draining -> completed/cancelled/failed.
type Controller struct {
	registry *Registry
	limiter  *HostRateLimiter
	jobQueue *queue.JobQueue
	docs     *queue.DocumentStore
	selector  *fetch.Selector
	pipeline  *content.Pipeline
	extractor extract.Extractor
	events    *events.Service

	userAgent    string
	followRobots bool
	perCrawlMax  int
	pollInterval time.Duration

	admittersMu sync.RWMutex
	admitters   map[string]*urlutil.Admitter

	robots        *urlutil.RobotsChecker
	sitemapClient *http.Client
	logger        arbor.ILogger
}

func NewController(
	registry *Registry,
	limiter *HostRateLimiter,
	jobQueue *queue.JobQueue,
	docs *queue.DocumentStore,
	selector *fetch.Selector,
	pipeline *content.Pipeline,
	extractor extract.Extractor,
	progress *events.Service,
	userAgent string,
	followRobots bool,
	perCrawlMax int,
	logger arbor.ILogger,
) *Controller {
	return &Controller{
		registry:     registry,
		limiter:      limiter,
		jobQueue:     jobQueue,
		docs:         docs,
		selector:     selector,
		pipeline:     pipeline,
		extractor:    extractor,
		events:       progress,
		userAgent:    userAgent,
		followRobots: followRobots,
		perCrawlMax:  perCrawlMax,
		pollInterval: 2 * time.Second,
		admitters:    make(map[string]*urlutil.Admitter),
		robots:       urlutil.NewRobotsChecker(userAgent, logger),
		sitemapClient: &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
}

// EvictRobotsCache drops every cached robots.txt entry, called on a
// schedule by the app's cron job so a host's rules don't go stale for the
// lifetime of a long-running process.
func (c *Controller) EvictRobotsCache() {
	c.robots.Evict()
}

// publish emits a progress event for a crawl if a progress bus was wired in.
func (c *Controller) publish(state *models.CrawlState, message string) {
	if c.events == nil {
		return
	}
	completed, failed, _ := state.Counts()
	var progress *float64
	if limit := state.Options.Limit; limit > 0 {
		p := float64(completed+failed) / float64(limit)
		if p > 1 {
			p = 1
		}
		progress = &p
	}
	c.events.Publish(events.Event{
		JobID:     state.ID,
		Status:    string(state.GetStatus()),
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// StartCrawl canonicalizes the root URL, seeds the frontier with the root
// and (unless IgnoreSitemap) admissible sitemap URLs, registers the crawl,
// and starts the background pump that turns frontier entries into queued
// crawlPage jobs.
func (c *Controller) StartCrawl(ctx context.Context, tenantID, rootURL string, opts models.CrawlOptions) (*models.CrawlState, error) {
	canonicalRoot, err := urlutil.Canonicalize(rootURL, true)
	if err != nil {
		return nil, models.NewError(models.ErrBadRequest, "invalid root url: %v", err)
	}

	robots := c.robots
	if !c.followRobots {
		robots = urlutil.Disabled()
	}

	admitter, err := urlutil.NewAdmitter(canonicalRoot, opts.MaxDepth, opts.IncludePaths, opts.ExcludePaths, opts.AllowBackwardLinks, opts.AllowExternalLinks, robots)
	if err != nil {
		return nil, models.NewError(models.ErrBadRequest, "invalid crawl options: %v", err)
	}

	state := models.NewCrawlState(tenantID, canonicalRoot, opts)
	state.Start()
	c.registry.Put(state)

	c.admittersMu.Lock()
	c.admitters[state.ID] = admitter
	c.admittersMu.Unlock()

	state.PushFrontier(canonicalRoot, 0, 0)
	if !opts.IgnoreSitemap {
		c.seedSitemap(state, admitter, canonicalRoot)
	}
	c.publish(state, "crawl started")

	common.SafeGo(c.logger, "crawl-pump-"+state.ID, func() {
		c.pump(context.Background(), state)
	})

	return state, nil
}

// seedSitemap fetches the root's sitemap.xml and pushes every admissible URL
// it names onto the frontier at depth 0, per §4.H's "seed the frontier with
// the root and with admissible sitemap URLs". Most sites don't publish one,
// so a missing or unparseable sitemap is logged and swallowed rather than
// failing the crawl - it is not the controller-level fault §4.H reserves
// crawl-failure for; the crawl simply proceeds from the root seed alone.
func (c *Controller) seedSitemap(state *models.CrawlState, admitter *urlutil.Admitter, canonicalRoot string) {
	sitemapURL, err := urlutil.DefaultSitemapURL(canonicalRoot)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	urls, err := urlutil.FetchSitemapURLs(ctx, c.sitemapClient, sitemapURL)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug().Err(err).Str("crawlId", state.ID).Str("sitemap", sitemapURL).Msg("no usable sitemap, seeding from root only")
		}
		return
	}

	seeded := 0
	for _, raw := range urls {
		canonical, err := urlutil.Canonicalize(raw, true)
		if err != nil {
			continue
		}
		if reason := admitter.Admit(ctx, canonical, 0); reason != urlutil.RejectNone {
			continue
		}
		if state.PushFrontier(canonical, 0, 0) {
			seeded++
		}
	}
	if c.logger != nil {
		c.logger.Info().Str("crawlId", state.ID).Str("sitemap", sitemapURL).Int("seeded", seeded).Msg("seeded frontier from sitemap")
	}
}

// Cancel moves a crawl to cancelled and closes its frontier so the pump
// winds down. Jobs of this crawl delivered after the cancel are dropped by
// the crawlPage handler's cancelled-status check; a page whose handler is
// already past that check finishes and its result is still recorded.
func (c *Controller) Cancel(crawlID string) error {
	state, ok := c.registry.Get(crawlID)
	if !ok {
		return ErrCrawlNotFound
	}
	state.SetStatus(models.CrawlCancelled)
	state.CloseFrontier()
	return nil
}

func (c *Controller) Status(crawlID string) (*models.CrawlState, error) {
	state, ok := c.registry.Get(crawlID)
	if !ok {
		return nil, ErrCrawlNotFound
	}
	return state, nil
}

// pump drains one crawl's frontier, enqueuing a crawlPage job per entry,
// until the frontier and in-flight count both reach zero, then finalizes
// the crawl's terminal status. It polls rather than blocking indefinitely
// on PopFrontier so it can periodically recheck the completion condition
// even when nothing new is being pushed. Per §4.H it only pops and enqueues
// while the page budget (AtLimit) and the per-crawl in-flight cap both have
// room; once either is saturated it waits for a completion to free a slot
// instead of popping ahead and either losing the entry or over-enqueuing.
func (c *Controller) pump(ctx context.Context, state *models.CrawlState) {
	for {
		if state.IsCancelled() {
			break
		}

		if c.perCrawlMax > 0 && !state.AtLimit() && state.InFlightCount() >= c.perCrawlMax {
			waitCtx, cancel := context.WithTimeout(ctx, c.pollInterval)
			<-waitCtx.Done()
			cancel()
			if ctx.Err() != nil || state.IsCancelled() {
				break
			}
			continue
		}

		popCtx, cancel := context.WithTimeout(ctx, c.pollInterval)
		entry, ok, err := state.PopFrontier(popCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				if c.isDrained(state) {
					break
				}
				continue
			}
			break
		}
		if !ok {
			break
		}

		if state.AtLimit() {
			continue
		}

		job := models.NewCrawlPageJob(state.ID, entry.URL, entry.Depth, state.Options.ScrapeOptions)
		state.MarkEnqueued(entry.URL)
		if err := c.jobQueue.Enqueue(ctx, job); err != nil {
			// Failing to even hand a job to the queue is an infrastructure
			// fault, not a per-page failure: it fails the whole crawl
			// rather than just marking one URL failed, per the
			// controller-level-faults-only failure rule.
			if c.logger != nil {
				c.logger.Error().Err(err).Str("crawlId", state.ID).Str("url", entry.URL).Msg("failed to enqueue crawl page job")
			}
			state.MarkFailed(entry.URL, models.NewError(models.ErrInternal, "enqueue failed: %v", err))
			state.SetStatus(models.CrawlFailed)
			break
		}
	}

	state.CloseFrontier()
	c.finalize(state)
}

func (c *Controller) isDrained(state *models.CrawlState) bool {
	return state.FrontierLen() == 0 && state.InFlightCount() == 0
}

// finalize sets the crawl's terminal status. Per-page failures, even a
// total wipeout of every page in the crawl, still resolve to completed:
// failed is reserved for controller-level faults (an enqueue failure
// above, or a bad seed URL that never got this far) so a status poller
// can tell "the site was unreachable" apart from "the queue backend
// broke mid-crawl".
func (c *Controller) finalize(state *models.CrawlState) {
	defer func() {
		c.admittersMu.Lock()
		delete(c.admitters, state.ID)
		c.admittersMu.Unlock()
	}()

	switch state.GetStatus() {
	case models.CrawlCancelled, models.CrawlFailed:
		c.publish(state, "crawl "+string(state.GetStatus()))
		return
	}
	state.SetStatus(models.CrawlCompleted)
	c.publish(state, "crawl completed")
}

// HandleCrawlPage is the queue.Handler for JobKindCrawlPage: fetch, run the
// content pipeline, persist the document, and push any newly discovered,
// admissible links back onto the crawl's frontier.
func (c *Controller) HandleCrawlPage(ctx context.Context, job *models.Job) error {
	crawlID := job.Payload.ParentCrawlID
	state, ok := c.registry.Get(crawlID)
	if !ok {
		return nil
	}
	if state.IsCancelled() {
		return nil
	}

	admitter := c.admitterFor(state)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, job.Payload.URL); err != nil {
			return err
		}
	}

	opts := job.Payload.ScrapeOptions
	// A fetch or transform failure is a content-level outcome, not a
	// delivery failure: the Selector has already retried across the
	// strategy chain, so the job itself is not retried again at the
	// queue level - it always completes, and the document's Error field
	// carries the classified failure for the crawl's failed map.
	doc := scrape.Execute(ctx, c.selector, c.pipeline, c.extractor, job.Payload.URL, opts)
	c.docs.Save(doc)

	if doc.Error != nil && doc.Error.Kind != models.ErrExtractFailed {
		state.MarkFailed(job.Payload.URL, doc.Error)
		return nil
	}

	state.MarkCompleted(job.Payload.URL, doc.ID)

	if admitter != nil && !state.AtLimit() {
		c.discover(ctx, state, admitter, doc, job.Payload.Depth)
	}
	return nil
}

func (c *Controller) discover(ctx context.Context, state *models.CrawlState, admitter *urlutil.Admitter, doc *models.Document, sourceDepth int) {
	base, err := url.Parse(doc.FinalURL)
	if err != nil {
		return
	}
	for _, link := range doc.Links {
		if state.AtLimit() {
			break
		}
		absolute, err := urlutil.Resolve(base, link)
		if err != nil {
			continue
		}
		canonical, err := urlutil.Canonicalize(absolute, true)
		if err != nil {
			continue
		}
		depth := sourceDepth + 1
		if reason := admitter.Admit(ctx, canonical, depth); reason != urlutil.RejectNone {
			continue
		}
		state.PushFrontier(canonical, depth, 0)
	}
}

// admitterFor looks up the per-crawl admission policy. Crawls are created
// through StartCrawl, which always registers one, so a miss here only
// happens for a crawl the process didn't start itself (never, in the
// current single-node deployment) and falls back to allowing nothing new.
func (c *Controller) admitterFor(state *models.CrawlState) *urlutil.Admitter {
	c.admittersMu.RLock()
	defer c.admittersMu.RUnlock()
	return c.admitters[state.ID]
}

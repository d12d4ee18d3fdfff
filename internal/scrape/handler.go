package scrape

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/content"
	"github.com/ternarybob/crawlkit/internal/extract"
	"github.com/ternarybob/crawlkit/internal/fetch"
	"github.com/ternarybob/crawlkit/internal/models"
	"github.com/ternarybob/crawlkit/internal/queue"
	"github.com/ternarybob/crawlkit/internal/services/events"
)

// Handler is the queue.Handler for JobKindScrape: it runs Execute for a
// standalone (non-crawl) scrape job, persists the resulting Document, and
// publishes a terminal event carrying the document's ID so the synchronous
// HTTP handler blocked on events.Service.Subscribe(job.ID) can fetch it
// and return. Unlike HandleCrawlPage, there is no CrawlState to update -
// the job's own ID is the only handle the caller has.
type Handler struct {
	selector  *fetch.Selector
	pipeline  *content.Pipeline
	extractor extract.Extractor
	docs      *queue.DocumentStore
	events    *events.Service
	logger    arbor.ILogger
}

func NewHandler(selector *fetch.Selector, pipeline *content.Pipeline, extractor extract.Extractor, docs *queue.DocumentStore, bus *events.Service, logger arbor.ILogger) *Handler {
	return &Handler{selector: selector, pipeline: pipeline, extractor: extractor, docs: docs, events: bus, logger: logger}
}

// Handle implements queue.Handler. A fetch or transform failure is a
// content outcome recorded on the Document, not a delivery failure the
// queue should retry (the Selector already retried across the fallback
// chain), so it returns nil for those; only a failure to persist the
// Document is returned as an error.
func (h *Handler) Handle(ctx context.Context, job *models.Job) error {
	doc := Execute(ctx, h.selector, h.pipeline, h.extractor, job.Payload.URL, job.Payload.ScrapeOptions)

	if err := h.docs.Save(doc); err != nil {
		if h.logger != nil {
			h.logger.Error().Err(err).Str("jobId", job.ID).Msg("failed to persist scrape document")
		}
		return err
	}

	if h.events != nil {
		h.events.Publish(events.Event{
			JobID:      job.ID,
			Status:     string(models.JobStatusCompleted),
			DocumentID: doc.ID,
			Timestamp:  time.Now(),
		})
	}
	return nil
}

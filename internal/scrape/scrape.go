// Package scrape implements the single-URL scrape path (§4.A-§4.C plus the
// opaque extract step): fetcher selection with fallback, the content
// pipeline, and structured extraction, assembled into one Document. Both
// the crawl controller's crawlPage handler and the standalone scrape job
// handler call Execute so a scraped page behaves identically whether it
// was reached through a crawl or a direct scrape request.
package scrape

import (
	"context"
	"time"

	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/content"
	"github.com/ternarybob/crawlkit/internal/extract"
	"github.com/ternarybob/crawlkit/internal/fetch"
	"github.com/ternarybob/crawlkit/internal/models"
)

// Execute fetches targetURL through the selector's fallback chain, runs it
// through the content pipeline, and - when requested and an Extractor is
// wired - attaches structured extraction. A fetch or transform failure is
// attached to the returned Document's Error field rather than returned as a
// Go error: the caller (crawl controller or scrape handler) always gets a
// Document back and decides what a failed one means for its own job
// bookkeeping (§7: "the document is returned without an extract field and
// the error is attached" generalizes to fetch/transform failures too, for
// the synchronous scrape path that has nowhere else to put a partial
// result).
func Execute(ctx context.Context, selector *fetch.Selector, pipeline *content.Pipeline, extractor extract.Extractor, targetURL string, opts models.ScrapeOptions) *models.Document {
	doc := &models.Document{
		ID:        common.NewDocumentID(),
		SourceURL: targetURL,
		FinalURL:  targetURL,
		FetchedAt: time.Now(),
	}

	result := selector.Fetch(ctx, targetURL, opts)
	if result != nil {
		if result.FinalURL != "" {
			doc.FinalURL = result.FinalURL
		}
		doc.StatusCode = result.StatusCode
	}

	if result == nil || !result.Ok() {
		kind := models.FailureFatal
		if result != nil {
			kind = result.Failure
		}
		doc.Error = models.NewError(fetch.ErrorKindFor(kind), "fetch failed: %s", failureMessage(result))
		return doc
	}
	doc.Screenshot = result.Screenshot

	if err := pipeline.Run(doc, result.Body, opts); err != nil {
		doc.Error = models.NewError(models.ErrTransformFailed, "%v", err)
		return doc
	}

	if opts.WantsExtract() {
		if extractor == nil {
			doc.Error = models.NewError(models.ErrExtractFailed, "no extractor configured")
		} else if object, err := extractor.Extract(ctx, doc.Text, *opts.Extract); err != nil {
			doc.Error = models.NewError(models.ErrExtractFailed, "%v", err)
		} else {
			doc.Extract = object
		}
	}

	return doc
}

func failureMessage(result *models.FetchResult) string {
	if result == nil {
		return "no fetcher strategy produced a result"
	}
	return string(result.Failure)
}

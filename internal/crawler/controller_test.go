package crawler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/content"
	"github.com/ternarybob/crawlkit/internal/fetch"
	"github.com/ternarybob/crawlkit/internal/models"
	"github.com/ternarybob/crawlkit/internal/queue"
)

type fakeAdmitter struct{}

func (fakeAdmitter) TryAdmit(crawlID, host string) (func(), bool) { return func() {}, true }

// pageFetcher serves a fixed page per URL out of a map, standing in for the
// strategy chain so the controller's own wiring is what's under test.
type pageFetcher struct {
	pages map[string]string
}

func (f *pageFetcher) Name() string { return "fake" }
func (f *pageFetcher) Capability() models.FetcherCapability {
	return models.FetcherCapability{ExecutesJS: true, SupportsScreenshot: true, SupportsStealth: true}
}
func (f *pageFetcher) Fetch(ctx context.Context, targetURL string, opts models.ScrapeOptions) *models.FetchResult {
	body, ok := f.pages[targetURL]
	if !ok {
		return &models.FetchResult{Failure: models.FailureNotFound, StatusCode: 404}
	}
	return &models.FetchResult{FinalURL: targetURL, StatusCode: 200, Body: body}
}

func newTestController(t *testing.T, pages map[string]string) (*Controller, *queue.JobQueue, func()) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := queue.NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
	require.NoError(t, err)

	jq, err := queue.NewJobQueue(db, "crawl-test", time.Minute, 3, queue.NewRetryPolicy(), logger)
	require.NoError(t, err)

	docs := queue.NewDocumentStore(db)
	selector := fetch.NewSelector([]fetch.Fetcher{&pageFetcher{pages: pages}}, fetch.NewRetryPolicy(), logger)
	pipeline := content.NewPipeline(logger)

	ctrl := NewController(NewRegistry(), NewHostRateLimiter(0), jq, docs, selector, pipeline, nil, nil, "crawlkit-test", false, 0, logger)

	return ctrl, jq, func() { db.Close() }
}

func waitForStatus(t *testing.T, state *models.CrawlState, want models.CrawlStatus, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if state.GetStatus() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("crawl never reached status %s, last status %s", want, state.GetStatus())
}

func TestControllerCrawlsAndDiscoversLinks(t *testing.T) {
	pages := map[string]string{
		"https://example.com/": `<html><body><a href="/a">a</a><a href="/b">b</a></body></html>`,
		"https://example.com/a": `<html><body>leaf a</body></html>`,
		"https://example.com/b": `<html><body>leaf b</body></html>`,
	}
	ctrl, jq, cleanup := newTestController(t, pages)
	defer cleanup()

	pool := queue.NewWorkerPool(jq, 2, 5*time.Millisecond, fakeAdmitter{}, arbor.NewLogger())
	pool.RegisterHandler(models.JobKindCrawlPage, ctrl.HandleCrawlPage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	opts := models.DefaultCrawlOptions()
	opts.MaxDepth = 2
	opts.Limit = 10
	state, err := ctrl.StartCrawl(context.Background(), "tenant-1", "https://example.com/", opts)
	require.NoError(t, err)

	waitForStatus(t, state, models.CrawlCompleted, 5*time.Second)

	completed, failed, _ := state.Counts()
	require.Equal(t, 3, completed)
	require.Equal(t, 0, failed)
	require.Len(t, state.DocumentIDs(), 3)
}

func TestControllerEmptySiteCompletesNotFails(t *testing.T) {
	pages := map[string]string{
		"https://example.com/": `<html><body>no links here</body></html>`,
	}
	ctrl, jq, cleanup := newTestController(t, pages)
	defer cleanup()

	pool := queue.NewWorkerPool(jq, 1, 5*time.Millisecond, fakeAdmitter{}, arbor.NewLogger())
	pool.RegisterHandler(models.JobKindCrawlPage, ctrl.HandleCrawlPage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	state, err := ctrl.StartCrawl(context.Background(), "tenant-1", "https://example.com/", models.DefaultCrawlOptions())
	require.NoError(t, err)

	waitForStatus(t, state, models.CrawlCompleted, 5*time.Second)
}

func TestControllerAllPagesFailingStillCompletes(t *testing.T) {
	// No pages registered in the fetcher's map at all: every fetch 404s.
	ctrl, jq, cleanup := newTestController(t, map[string]string{})
	defer cleanup()

	pool := queue.NewWorkerPool(jq, 1, 5*time.Millisecond, fakeAdmitter{}, arbor.NewLogger())
	pool.RegisterHandler(models.JobKindCrawlPage, ctrl.HandleCrawlPage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	state, err := ctrl.StartCrawl(context.Background(), "tenant-1", "https://example.com/", models.DefaultCrawlOptions())
	require.NoError(t, err)

	waitForStatus(t, state, models.CrawlCompleted, 5*time.Second)

	completed, failed, _ := state.Counts()
	require.Equal(t, 0, completed)
	require.Equal(t, 1, failed)
}

// TestControllerRespectsPageLimit exercises Testable Property 3 (crawl
// bound): a root page discovering far more admissible links than the
// crawl's limit must never hand more than limit jobs to the queue, even
// though enqueue races ahead of completion.
func TestControllerRespectsPageLimit(t *testing.T) {
	var links strings.Builder
	pages := map[string]string{}
	for i := 1; i <= 50; i++ {
		path := fmt.Sprintf("/p%d", i)
		links.WriteString(fmt.Sprintf(`<a href="%s">x</a>`, path))
		pages["https://example.com"+path] = "<html><body>leaf</body></html>"
	}
	pages["https://example.com/"] = "<html><body>" + links.String() + "</body></html>"

	ctrl, jq, cleanup := newTestController(t, pages)
	defer cleanup()

	pool := queue.NewWorkerPool(jq, 8, 5*time.Millisecond, fakeAdmitter{}, arbor.NewLogger())
	pool.RegisterHandler(models.JobKindCrawlPage, ctrl.HandleCrawlPage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	opts := models.DefaultCrawlOptions()
	opts.MaxDepth = 5
	opts.Limit = 5
	state, err := ctrl.StartCrawl(context.Background(), "tenant-1", "https://example.com/", opts)
	require.NoError(t, err)

	waitForStatus(t, state, models.CrawlCompleted, 5*time.Second)

	completed, failed, enqueued := state.Counts()
	require.LessOrEqual(t, enqueued, opts.Limit)
	require.LessOrEqual(t, completed+failed, opts.Limit)
}

func TestControllerCancelStopsFurtherWork(t *testing.T) {
	pages := map[string]string{
		"https://example.com/": `<html><body><a href="/a">a</a></body></html>`,
		"https://example.com/a": `<html><body>leaf</body></html>`,
	}
	ctrl, _, cleanup := newTestController(t, pages)
	defer cleanup()

	state, err := ctrl.StartCrawl(context.Background(), "tenant-1", "https://example.com/", models.DefaultCrawlOptions())
	require.NoError(t, err)

	require.NoError(t, ctrl.Cancel(state.ID))
	waitForStatus(t, state, models.CrawlCancelled, time.Second)
}

package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/models"
)

func newTestQueue(t *testing.T) *JobQueue {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	jq, err := NewJobQueue(db, "test", 50*time.Millisecond, 3, NewRetryPolicy(), logger)
	require.NoError(t, err)
	return jq
}

func TestJobQueueEnqueueReceiveComplete(t *testing.T) {
	jq := newTestQueue(t)
	ctx := context.Background()

	job := models.NewJob(models.JobKindScrape, models.JobPayload{URL: "https://example.com"}, models.PriorityScrape)
	require.NoError(t, jq.Enqueue(ctx, job))

	lease, err := jq.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, job.ID, lease.Job.ID)

	require.NoError(t, jq.Complete(ctx, lease))

	_, err = jq.Receive(ctx)
	require.Equal(t, ErrNoMessage, err)
}

func TestJobQueuePriorityOrdering(t *testing.T) {
	jq := newTestQueue(t)
	ctx := context.Background()

	crawlJob := models.NewCrawlPageJob("crawl-1", "https://example.com/page", 1, models.DefaultScrapeOptions())
	require.NoError(t, jq.Enqueue(ctx, crawlJob))

	scrapeJob := models.NewJob(models.JobKindScrape, models.JobPayload{URL: "https://example.com/scrape"}, models.PriorityScrape)
	require.NoError(t, jq.Enqueue(ctx, scrapeJob))

	lease, err := jq.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, scrapeJob.ID, lease.Job.ID, "scrape jobs must preempt crawl page jobs")
}

func TestJobQueueFailRetriesThenDeadLetters(t *testing.T) {
	jq := newTestQueue(t)
	jq.retry = &RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffMultiplier: 2}
	ctx := context.Background()

	job := models.NewJob(models.JobKindScrape, models.JobPayload{URL: "https://example.com"}, models.PriorityScrape)
	require.NoError(t, jq.Enqueue(ctx, job))

	lease, err := jq.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, jq.Fail(ctx, lease, models.NewError(models.ErrFetchFailed, "boom")))

	time.Sleep(5 * time.Millisecond)
	lease2, err := jq.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, job.ID, lease2.Job.ID)
	require.Equal(t, 1, lease2.Job.Attempts)

	require.NoError(t, jq.Fail(ctx, lease2, models.NewError(models.ErrFetchFailed, "boom again")))
	require.True(t, lease2.Job.IsTerminal())
}

package queue

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/models"
)

type fakeAdmitter struct {
	mu      sync.Mutex
	denyAll bool
}

func (f *fakeAdmitter) TryAdmit(crawlID, host string) (func(), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyAll {
		return nil, false
	}
	return func() {}, true
}

func TestWorkerPoolProcessesJob(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
	require.NoError(t, err)
	defer db.Close()

	jq, err := NewJobQueue(db, "test", time.Minute, 3, NewRetryPolicy(), logger)
	require.NoError(t, err)

	processed := make(chan string, 1)
	pool := NewWorkerPool(jq, 2, 5*time.Millisecond, &fakeAdmitter{}, logger)
	pool.RegisterHandler(models.JobKindScrape, func(ctx context.Context, job *models.Job) error {
		processed <- job.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() { cancel(); pool.Stop(time.Second) }()

	job := models.NewJob(models.JobKindScrape, models.JobPayload{URL: "https://example.com"}, models.PriorityScrape)
	require.NoError(t, jq.Enqueue(context.Background(), job))

	select {
	case id := <-processed:
		require.Equal(t, job.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never processed")
	}
}

func TestWorkerPoolSkipsUnadmittedJob(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
	require.NoError(t, err)
	defer db.Close()

	jq, err := NewJobQueue(db, "test", time.Minute, 3, NewRetryPolicy(), logger)
	require.NoError(t, err)

	admitter := &fakeAdmitter{denyAll: true}
	processed := make(chan string, 1)
	pool := NewWorkerPool(jq, 1, 5*time.Millisecond, admitter, logger)
	pool.RegisterHandler(models.JobKindScrape, func(ctx context.Context, job *models.Job) error {
		processed <- job.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() { cancel(); pool.Stop(time.Second) }()

	job := models.NewJob(models.JobKindScrape, models.JobPayload{URL: "https://example.com"}, models.PriorityScrape)
	require.NoError(t, jq.Enqueue(context.Background(), job))

	select {
	case <-processed:
		t.Fatal("job should not have been processed while admitter denies all")
	case <-time.After(50 * time.Millisecond):
	}
}

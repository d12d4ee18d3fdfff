package queue

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/common"
	"github.com/ternarybob/crawlkit/internal/models"
)

// Handler processes one leased job and returns an error if the job failed.
// Implementations check ctx between phases (fetch, transform, link
// discovery) so a cancelled crawl stops promptly instead of running every
// phase to completion.
type Handler func(ctx context.Context, job *models.Job) error

// Admitter caps how many jobs of a given crawl/host may run concurrently,
// on top of the pool's own fixed worker count. A nil Admitter admits
// everything (used for plain scrape-only deployments with no crawl caps).
type Admitter interface {
	// TryAdmit reserves a slot for (crawlID, host); release() must be
	// called exactly once when the job finishes, regardless of outcome.
	TryAdmit(crawlID, host string) (release func(), ok bool)
}

// WorkerPool runs a fixed number of worker goroutines that lease jobs from
// a JobQueue and dispatch them to a per-kind Handler, grounded on the
// teacher's ticker-polling WorkerPool generalized with a per-crawl/per-host
// admission gate (the teacher's own pool has no concept of shared resource
// caps across job types, since every queue entry there is independent).
type WorkerPool struct {
	jobQueue     *JobQueue
	handlers     map[models.JobKind]Handler
	pollInterval time.Duration
	concurrency  int
	admitter     Admitter
	logger       arbor.ILogger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewWorkerPool(jobQueue *JobQueue, concurrency int, pollInterval time.Duration, admitter Admitter, logger arbor.ILogger) *WorkerPool {
	return &WorkerPool{
		jobQueue:     jobQueue,
		handlers:     make(map[models.JobKind]Handler),
		pollInterval: pollInterval,
		concurrency:  concurrency,
		admitter:     admitter,
		logger:       logger,
	}
}

func (wp *WorkerPool) RegisterHandler(kind models.JobKind, handler Handler) {
	wp.handlers[kind] = handler
}

// Start launches the worker goroutines; it returns immediately.
func (wp *WorkerPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	wp.cancel = cancel

	for i := 0; i < wp.concurrency; i++ {
		wp.wg.Add(1)
		workerID := i
		common.SafeGo(wp.logger, fmt.Sprintf("worker-pool-%d", workerID), func() {
			defer wp.wg.Done()
			wp.worker(ctx, workerID)
		})
	}
}

// Stop cancels all worker goroutines and waits up to drain for them to
// finish their current job before returning.
func (wp *WorkerPool) Stop(drain time.Duration) {
	if wp.cancel == nil {
		return
	}
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drain):
		wp.logger.Warn().Dur("drain", drain).Msg("worker pool drain timed out, exiting with workers still in flight")
	}
}

func (wp *WorkerPool) worker(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wp.pollOnce(ctx, workerID)
		}
	}
}

func (wp *WorkerPool) pollOnce(ctx context.Context, workerID int) {
	lease, err := wp.jobQueue.Receive(ctx)
	if err != nil {
		if err != ErrNoMessage {
			wp.logger.Warn().Err(err).Int("workerId", workerID).Msg("failed to receive job")
		}
		return
	}

	job := lease.Job
	host := ""
	if parsed, err := url.Parse(job.Payload.URL); err == nil {
		host = parsed.Hostname()
	}
	var release func()
	if wp.admitter != nil {
		var ok bool
		release, ok = wp.admitter.TryAdmit(job.Payload.ParentCrawlID, host)
		if !ok {
			// Couldn't admit right now; extend the lease by two poll intervals
			// so another worker (or this one, later) can pick it back up
			// once capacity frees, instead of letting it sit invisible for
			// the full visibility timeout.
			_ = lease.Extend(ctx, wp.pollInterval*2)
			return
		}
	}
	if release != nil {
		defer release()
	}

	handler, ok := wp.handlers[job.Kind]
	if !ok {
		wp.logger.Error().Str("jobId", job.ID).Str("kind", string(job.Kind)).Msg("no handler registered for job kind")
		_ = wp.jobQueue.Fail(ctx, lease, models.NewError(models.ErrInternal, "no handler for job kind %q", job.Kind))
		return
	}

	job.MarkActive()
	if err := handler(ctx, job); err != nil {
		if failErr := wp.jobQueue.Fail(ctx, lease, models.NewError(models.ErrFetchFailed, "%v", err)); failErr != nil {
			wp.logger.Error().Err(failErr).Str("jobId", job.ID).Msg("failed to record job failure")
		}
		return
	}

	if err := wp.jobQueue.Complete(ctx, lease); err != nil {
		wp.logger.Error().Err(err).Str("jobId", job.ID).Msg("failed to ack completed job")
	}
}

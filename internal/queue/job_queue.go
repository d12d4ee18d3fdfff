package queue

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/models"
)

// ErrJobNotFound is returned by Cancel when the job is no longer leased or
// queued (already completed, failed, or never existed).
var ErrJobNotFound = errors.New("job not found")

// JobQueue is the priority/lease/retry contract the worker pool and crawl
// controller drive jobs through. It wraps a single BadgerManager; priority
// ordering (scrape ahead of crawlPage) is carried entirely in the manager's
// index key, so this type only adds retry bookkeeping and lease handles on
// top of the raw enqueue/receive/extend primitives.
type JobQueue struct {
	manager *BadgerManager
	retry   *RetryPolicy
	logger  arbor.ILogger
}

// RetryPolicy mirrors the fetch package's policy shape; the job queue uses
// it to decide whether a failed job is re-enqueued or dead-lettered.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		d *= p.BackoffMultiplier
	}
	d *= 0.75 + rand.Float64()*0.5 // ±25% jitter
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	return time.Duration(d)
}

func NewJobQueue(db *BadgerDB, queueName string, visibilityTimeout time.Duration, maxReceive int, retry *RetryPolicy, logger arbor.ILogger) (*JobQueue, error) {
	manager, err := NewBadgerManager(db.Raw(), queueName, visibilityTimeout, maxReceive)
	if err != nil {
		return nil, err
	}
	if retry == nil {
		retry = NewRetryPolicy()
	}
	return &JobQueue{manager: manager, retry: retry, logger: logger}, nil
}

// Enqueue persists a job for immediate delivery, ordered by its Priority.
func (q *JobQueue) Enqueue(ctx context.Context, job *models.Job) error {
	return q.manager.Enqueue(ctx, *job)
}

// Lease is a handle on a received job plus the functions needed to resolve
// its delivery (ack on success, requeue-or-deadletter on failure).
type Lease struct {
	Job    *models.Job
	ack    func() error
	extend func(time.Duration) error
}

func (l *Lease) Complete(ctx context.Context) error {
	return l.ack()
}

func (l *Lease) Extend(ctx context.Context, d time.Duration) error {
	return l.extend(d)
}

// Receive leases the next ready job, highest priority first. Returns
// ErrNoMessage when nothing is currently visible.
func (q *JobQueue) Receive(ctx context.Context) (*Lease, error) {
	job, ack, err := q.manager.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return &Lease{
		Job: job,
		ack: ack,
		extend: func(d time.Duration) error {
			// job is the same pointer as the returned Lease.Job, so any
			// mutation made to it before Extend (e.g. Fail's Attempts++)
			// is carried into the durable record here rather than lost.
			return q.manager.ExtendWithBody(ctx, job.ID, *job, d)
		},
	}, nil
}

// Fail records a failed attempt. Jobs under the retry ceiling are
// re-enqueued with jittered exponential backoff before becoming visible
// again; jobs at the ceiling are marked failed on the leased Job and then
// acked, which deletes the stored record (the BadgerManager's own
// maxReceive also drops poison messages, without marking the Job at all).
func (q *JobQueue) Fail(ctx context.Context, lease *Lease, failure *models.Error) error {
	lease.Job.Attempts++
	if lease.Job.Attempts >= q.retry.MaxAttempts {
		lease.Job.MarkFailed(failure)
		if q.logger != nil {
			q.logger.Warn().Str("jobId", lease.Job.ID).Int("attempts", lease.Job.Attempts).Msg("job exhausted retries, marking failed")
		}
		return lease.Complete(ctx)
	}

	backoff := q.retry.backoff(lease.Job.Attempts - 1)
	if err := lease.Extend(ctx, backoff); err != nil {
		return err
	}
	if q.logger != nil {
		q.logger.Debug().Str("jobId", lease.Job.ID).Dur("backoff", backoff).Msg("job failed transiently, retrying")
	}
	return nil
}

// Complete acks a successfully finished job off the queue.
func (q *JobQueue) Complete(ctx context.Context, lease *Lease) error {
	lease.Job.MarkCompleted()
	return lease.Complete(ctx)
}

// Cancel removes a job from the queue whether it is still waiting or
// currently leased, so a drained crawl doesn't leave its unstarted
// crawlPage jobs to be delivered after the crawl has already moved to
// cancelled.
func (q *JobQueue) Cancel(ctx context.Context, jobID string) error {
	if err := q.manager.Delete(ctx, jobID); err != nil {
		if err == ErrNoMessage {
			return ErrJobNotFound
		}
		return err
	}
	return nil
}

func (q *JobQueue) Close() error {
	return q.manager.Close()
}

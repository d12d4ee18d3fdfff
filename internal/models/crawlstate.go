package models

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/crawlkit/internal/frontier"
)

// CrawlStatus is the Crawl Controller's state-machine position.
type CrawlStatus string

const (
	CrawlCreated   CrawlStatus = "created"
	CrawlActive    CrawlStatus = "active"
	CrawlDraining  CrawlStatus = "draining"
	CrawlCompleted CrawlStatus = "completed"
	CrawlCancelled CrawlStatus = "cancelled"
	CrawlFailed    CrawlStatus = "failed"
)

// FrontierEntry is one pending (URL, depth) pair.
type FrontierEntry struct {
	URL   string
	Depth int
}

// CrawlState is the per-crawl record owned exclusively by one Crawl
// Controller instance. All mutation goes through its methods, which hold
// the embedded mutex; the Frontier is internal to this state.
type CrawlState struct {
	mu sync.RWMutex

	ID       string
	TenantID string
	Root     string
	Options  CrawlOptions

	enqueued  map[string]struct{}
	completed map[string]struct{}
	failed    map[string]*Error

	queue *frontier.Queue

	Status     CrawlStatus
	StartedAt  time.Time
	FinishedAt time.Time
	InFlight   int

	documentIDs []string
}

func NewCrawlState(tenantID, root string, opts CrawlOptions) *CrawlState {
	return &CrawlState{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Root:      root,
		Options:   opts,
		enqueued:  make(map[string]struct{}),
		completed: make(map[string]struct{}),
		failed:    make(map[string]*Error),
		queue:     frontier.New(),
		Status:    CrawlCreated,
	}
}

func (s *CrawlState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = CrawlActive
	s.StartedAt = time.Now()
}

// PushFrontier enqueues a (url, depth) pair if not already seen in this
// crawl's lifetime. Returns false if it was a duplicate.
func (s *CrawlState) PushFrontier(url string, depth, priority int) bool {
	return s.queue.Push(url, depth, priority)
}

// PopFrontier blocks until an entry is available, ctx is cancelled, or the
// frontier is closed.
func (s *CrawlState) PopFrontier(ctx context.Context) (FrontierEntry, bool, error) {
	e, ok, err := s.queue.Pop(ctx)
	if err != nil || !ok {
		return FrontierEntry{}, false, err
	}
	return FrontierEntry{URL: e.URL, Depth: e.Depth}, true, nil
}

func (s *CrawlState) FrontierLen() int {
	return s.queue.Len()
}

// CloseFrontier unblocks any worker waiting on PopFrontier; called once a
// crawl moves to draining/cancelled/completed/failed so idle workers exit.
func (s *CrawlState) CloseFrontier() {
	s.queue.Close()
}

func (s *CrawlState) MarkEnqueued(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued[url] = struct{}{}
	s.InFlight++
}

func (s *CrawlState) MarkCompleted(url string, docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[url] = struct{}{}
	if docID != "" {
		s.documentIDs = append(s.documentIDs, docID)
	}
	s.InFlight--
}

func (s *CrawlState) MarkFailed(url string, err *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[url] = err
	s.InFlight--
}

// InFlightCount reports how many pages have been enqueued but not yet
// completed or failed, used to decide whether a crawl with an empty
// frontier is actually finished or just waiting on in-progress pages that
// may still discover more links.
func (s *CrawlState) InFlightCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.InFlight
}

func (s *CrawlState) Counts() (completed, failed, enqueued int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.completed), len(s.failed), len(s.enqueued)
}

func (s *CrawlState) DocumentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.documentIDs))
	copy(out, s.documentIDs)
	return out
}

func (s *CrawlState) FailedMap() map[string]*Error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Error, len(s.failed))
	for k, v := range s.failed {
		out[k] = v
	}
	return out
}

// AtLimit reports whether the number of pages already handed to the job
// queue has reached the crawl's page limit. Gated on enqueued rather than
// completed+failed: completion is asynchronous and lags enqueue by an
// arbitrary amount, so gating on the lagging count would let a single
// page's link discovery drain the whole frontier into the queue - one
// admissible link at a time, unboundedly - before a single completion
// landed to stop it.
func (s *CrawlState) AtLimit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.enqueued) >= s.Options.Limit
}

// EnqueuedCount reports how many URLs have been handed to the job queue
// for this crawl, including ones already completed or failed.
func (s *CrawlState) EnqueuedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.enqueued)
}

func (s *CrawlState) SetStatus(status CrawlStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	if status == CrawlCompleted || status == CrawlCancelled || status == CrawlFailed {
		s.FinishedAt = time.Now()
	}
}

func (s *CrawlState) GetStatus() CrawlStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// IsCancelled is the fast check workers poll between phases.
func (s *CrawlState) IsCancelled() bool {
	return s.GetStatus() == CrawlCancelled
}

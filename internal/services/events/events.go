// Package events implements per-job progress pub/sub: a crawl or scrape
// publishes Events under its own job ID, and a status endpoint (polling or
// websocket-streamed) subscribes to just that ID rather than a global bus.
package events

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Event is one progress update for a single job.
type Event struct {
	JobID      string    `json:"jobId"`
	Status     string    `json:"status"`
	Progress   *float64  `json:"progress,omitempty"`
	Message    string    `json:"message,omitempty"`
	DocumentID string    `json:"documentId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Service is a pub/sub bus keyed by job ID, generalized from the teacher's
// `event_service.go` (subscriber lists keyed by a closed EventType enum)
// to an open job-ID key, since job IDs are generated at runtime rather
// than known ahead of time.
type Service struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	logger arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		subs:   make(map[string][]chan Event),
		logger: logger,
	}
}

// Subscribe returns a channel of progress events for jobID and an
// unsubscribe function the caller must call exactly once when done
// listening (e.g. the websocket connection closing).
func (s *Service) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subs[jobID] = append(s.subs[jobID], ch)
	s.mu.Unlock()

	once := sync.Once{}
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			chans := s.subs[jobID]
			for i, c := range chans {
				if c == ch {
					s.subs[jobID] = append(chans[:i], chans[i+1:]...)
					break
				}
			}
			if len(s.subs[jobID]) == 0 {
				delete(s.subs, jobID)
			}
			close(ch)
		})
	}

	return ch, unsubscribe
}

// Publish fans an event out to every current subscriber of its job ID. A
// subscriber whose channel is full is skipped rather than blocked on, the
// same non-blocking-delivery choice the teacher's Publish makes by handing
// each handler its own goroutine — here a buffered channel plays that role
// instead, since the receiver is a websocket writer loop, not a handler
// function the service itself invokes.
func (s *Service) Publish(event Event) {
	s.mu.RLock()
	subs := s.subs[event.JobID]
	s.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			if s.logger != nil {
				s.logger.Warn().Str("jobId", event.JobID).Msg("progress subscriber channel full, dropping event")
			}
		}
	}
}

// Close drops every subscriber, closing their channels so any websocket
// writer loop ranging over one exits cleanly.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chans := range s.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	s.subs = make(map[string][]chan Event)
	return nil
}

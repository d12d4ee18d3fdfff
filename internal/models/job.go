package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes the three shapes of work the queue carries.
type JobKind string

const (
	JobKindScrape    JobKind = "scrape"
	JobKindCrawl     JobKind = "crawl"
	JobKindCrawlPage JobKind = "crawlPage"
)

// Default priorities, lower is more urgent. Scrape jobs preempt crawl pages
// so a synchronous caller waiting on the connection is never starved by a
// background crawl.
const (
	PriorityScrape    = 100
	PriorityCrawlPage = 200
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobPayload is the job-specific instruction snapshotted at creation time.
type JobPayload struct {
	URL           string        `json:"url"`
	TenantID      string        `json:"tenantId,omitempty"`
	ParentCrawlID string        `json:"parentCrawlId,omitempty"`
	Depth         int           `json:"depth,omitempty"`
	ScrapeOptions ScrapeOptions `json:"scrapeOptions,omitempty"`
	CrawlOptions  CrawlOptions  `json:"crawlOptions,omitempty"`
}

// Job is a unit of work on the queue.
type Job struct {
	ID        string     `json:"id"`
	Kind      JobKind    `json:"kind"`
	Payload   JobPayload `json:"payload"`
	Priority  int        `json:"priority"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"createdAt"`

	Status      JobStatus  `json:"status"`
	Progress    *float64   `json:"progress,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       *Error     `json:"error,omitempty"`
}

// NewJob creates a queued root job (scrape, or the root crawl job).
func NewJob(kind JobKind, payload JobPayload, priority int) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now(),
		Status:    JobStatusQueued,
	}
}

// NewCrawlPageJob creates a child crawlPage job belonging to a crawl.
func NewCrawlPageJob(crawlID, url string, depth int, opts ScrapeOptions) *Job {
	return NewJob(JobKindCrawlPage, JobPayload{
		URL:           url,
		ParentCrawlID: crawlID,
		Depth:         depth,
		ScrapeOptions: opts,
	}, PriorityCrawlPage)
}

func (j *Job) MarkActive() {
	j.Status = JobStatusActive
	now := time.Now()
	j.StartedAt = &now
}

func (j *Job) MarkCompleted() {
	j.Status = JobStatusCompleted
	now := time.Now()
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(err *Error) {
	j.Status = JobStatusFailed
	j.Error = err
	now := time.Now()
	j.CompletedAt = &now
}

func (j *Job) MarkCancelled() {
	j.Status = JobStatusCancelled
	now := time.Now()
	j.CompletedAt = &now
}

func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return data, nil
}

func JobFromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &j, nil
}

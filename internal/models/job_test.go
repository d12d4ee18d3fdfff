package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCrawlPageJobPriority(t *testing.T) {
	j := NewCrawlPageJob("crawl-1", "https://example.com/a", 2, DefaultScrapeOptions())
	assert.Equal(t, JobKindCrawlPage, j.Kind)
	assert.Equal(t, PriorityCrawlPage, j.Priority)
	assert.Equal(t, "crawl-1", j.Payload.ParentCrawlID)
	assert.Equal(t, JobStatusQueued, j.Status)
}

func TestJobLifecycle(t *testing.T) {
	j := NewJob(JobKindScrape, JobPayload{URL: "https://example.com"}, PriorityScrape)
	j.MarkActive()
	assert.Equal(t, JobStatusActive, j.Status)
	require.NotNil(t, j.StartedAt)
	assert.False(t, j.IsTerminal())

	j.MarkCompleted()
	assert.True(t, j.IsTerminal())
	require.NotNil(t, j.CompletedAt)
}

func TestJobJSONRoundTrip(t *testing.T) {
	j := NewJob(JobKindScrape, JobPayload{URL: "https://example.com"}, PriorityScrape)
	data, err := j.ToJSON()
	require.NoError(t, err)

	got, err := JobFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, j.Payload.URL, got.Payload.URL)
}

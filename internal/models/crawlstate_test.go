package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlStateFrontierDedup(t *testing.T) {
	s := NewCrawlState("tenant-1", "https://example.com/", DefaultCrawlOptions())
	assert.True(t, s.PushFrontier("https://example.com/a", 1, 0))
	assert.False(t, s.PushFrontier("https://example.com/a", 1, 0))
	assert.Equal(t, 1, s.FrontierLen())
}

func TestCrawlStatePopTimesOut(t *testing.T) {
	s := NewCrawlState("tenant-1", "https://example.com/", DefaultCrawlOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok, err := s.PopFrontier(ctx)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestCrawlStateCompletionInvariants(t *testing.T) {
	opts := DefaultCrawlOptions()
	opts.Limit = 2
	s := NewCrawlState("tenant-1", "https://example.com/", opts)

	s.MarkEnqueued("https://example.com/a")
	s.MarkCompleted("https://example.com/a", "doc-1")
	assert.False(t, s.AtLimit())

	s.MarkEnqueued("https://example.com/b")
	s.MarkFailed("https://example.com/b", NewError(ErrFetchFailed, "boom"))
	assert.True(t, s.AtLimit())

	completed, failed, _ := s.Counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
	require.Len(t, s.DocumentIDs(), 1)
	assert.Equal(t, "doc-1", s.DocumentIDs()[0])
}

func TestCrawlStateStatusTransitions(t *testing.T) {
	s := NewCrawlState("tenant-1", "https://example.com/", DefaultCrawlOptions())
	s.Start()
	assert.Equal(t, CrawlActive, s.GetStatus())
	assert.False(t, s.IsCancelled())

	s.SetStatus(CrawlCancelled)
	assert.True(t, s.IsCancelled())
	assert.False(t, s.FinishedAt.IsZero())
}

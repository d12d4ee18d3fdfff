package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/crawlkit/internal/models"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, models.FailureNotFound, classifyStatus(404))
	assert.Equal(t, models.FailureBlocked, classifyStatus(403))
	assert.Equal(t, models.FailureBlocked, classifyStatus(429))
	assert.Equal(t, models.FailureTransient, classifyStatus(503))
	assert.Equal(t, models.FailureInvalidContent, classifyStatus(400))
	assert.Equal(t, models.FailureNone, classifyStatus(200))
}

func TestClassifyErrorContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, models.FailureTransient, classifyError(ctx.Err()))
}

func TestIsRetryableAndFallForward(t *testing.T) {
	assert.True(t, IsRetryable(models.FailureTransient))
	assert.False(t, IsRetryable(models.FailureBlocked))
	assert.True(t, ShouldFallForward(models.FailureBlocked))
	assert.True(t, ShouldFallForward(models.FailureInvalidContent))
	assert.False(t, ShouldFallForward(models.FailureTransient))
}

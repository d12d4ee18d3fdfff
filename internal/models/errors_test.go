package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorFormats(t *testing.T) {
	err := NewError(ErrFetchFailed, "fetch %s failed: %d", "https://x", 503)
	assert.Equal(t, ErrFetchFailed, err.Kind)
	assert.Contains(t, err.Error(), "503")
}

func TestErrorRetryable(t *testing.T) {
	assert.True(t, NewError(ErrTimeout, "x").Retryable())
	assert.True(t, NewError(ErrFetchFailed, "x").Retryable())
	assert.True(t, NewError(ErrRateLimited, "x").Retryable())
	assert.True(t, NewError(ErrInternal, "x").Retryable())
	assert.False(t, NewError(ErrNotFound, "x").Retryable())
	assert.False(t, NewError(ErrBadRequest, "x").Retryable())
}

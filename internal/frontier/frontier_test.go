package frontier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushDedup(t *testing.T) {
	q := New()
	assert.True(t, q.Push("https://example.com/a", 1, 0))
	assert.False(t, q.Push("https://example.com/a", 1, 0))
	assert.Equal(t, 1, q.Len())
}

func TestPopBFSOrder(t *testing.T) {
	q := New()
	q.Push("https://example.com/deep", 2, 0)
	q.Push("https://example.com/shallow", 1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e1, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/shallow", e1.URL)

	e2, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/deep", e2.URL)
}

func TestPopBlocksThenUnblocksOnPush(t *testing.T) {
	q := New()
	done := make(chan Entry, 1)
	go func() {
		e, ok, err := q.Pop(context.Background())
		if err == nil && ok {
			done <- e
		}
	}()

	time.Sleep(50 * time.Millisecond)
	q.Push("https://example.com/x", 0, 0)

	select {
	case e := <-done:
		assert.Equal(t, "https://example.com/x", e.URL)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestCloseUnblocksPop(t *testing.T) {
	q := New()
	done := make(chan bool, 1)
	go func() {
		_, ok, err := q.Pop(context.Background())
		done <- ok && err == nil
	}()

	time.Sleep(50 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
}

func TestPopContextCancelled(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := q.Pop(ctx)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestSeen(t *testing.T) {
	q := New()
	assert.False(t, q.Seen("https://example.com/a"))
	q.Push("https://example.com/a", 0, 0)
	assert.True(t, q.Seen("https://example.com/a"))
}

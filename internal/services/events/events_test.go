package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestSubscribeReceivesOnlyOwnJobEvents(t *testing.T) {
	s := NewService(arbor.NewLogger())

	ch, unsubscribe := s.Subscribe("job-1")
	defer unsubscribe()

	s.Publish(Event{JobID: "job-2", Status: "active"})
	s.Publish(Event{JobID: "job-1", Status: "active"})

	select {
	case e := <-ch:
		assert.Equal(t, "job-1", e.JobID)
	case <-time.After(time.Second):
		t.Fatal("expected event for job-1")
	}

	select {
	case e := <-ch:
		t.Fatalf("unexpected second event: %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewService(arbor.NewLogger())
	ch, unsubscribe := s.Subscribe("job-1")
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	s := NewService(arbor.NewLogger())
	assert.NotPanics(t, func() {
		s.Publish(Event{JobID: "nobody-listening"})
	})
}

package queue

import (
	"errors"

	"github.com/ternarybob/crawlkit/internal/models"
)

// Message is the payload type BadgerManager persists. The queue has no
// opinion on job semantics; it just stores and leases whatever is handed
// to Enqueue.
type Message = models.Job

// ErrNoMessage is returned by Receive when no message is currently visible.
var ErrNoMessage = errors.New("no messages in queue")

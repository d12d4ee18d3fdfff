package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// QueueMessage represents the internal structure stored in Badger
type QueueMessage struct {
	ID           string    `json:"id"`
	Body         Message   `json:"body"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	VisibleAt    time.Time `json:"visible_at"`
	ReceiveCount int       `json:"receive_count"`
	DedupID      string    `json:"dedup_id,omitempty"` // Optional deduplication ID
}

// BadgerManager implements a persistent queue using BadgerDB
type BadgerManager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
}

// NewBadgerManager creates a new Badger-backed queue manager
func NewBadgerManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (*BadgerManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute // Default
	}
	if maxReceive <= 0 {
		maxReceive = 3 // Default
	}

	return &BadgerManager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// Enqueue adds a message to the queue
func (m *BadgerManager) Enqueue(ctx context.Context, msg Message) error {
	// The message is stored under the job's own ID so Extend and Delete can
	// address it by that ID; a fresh uuid is used only when the job has none.
	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}

	// Create internal message wrapper
	qMsg := QueueMessage{
		ID:           id,
		Body:         msg,
		EnqueuedAt:   time.Now(),
		VisibleAt:    time.Now(), // Immediately visible
		ReceiveCount: 0,
	}

	// Serialize
	data, err := json.Marshal(qMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	// Message body lives at queue:{name}:msg:{id}; a separate visibility
	// index at queue:{name}:index:{priority10}:{ts20}:{id} keeps ready
	// messages ordered by urgency then time without scanning every key on
	// each Receive.
	return m.db.Update(func(txn *badger.Txn) error {
		// 1. Store message data
		msgKey := m.msgKey(id)
		if err := txn.Set(msgKey, data); err != nil {
			return err
		}

		// 2. Add to visibility index
		indexKey := m.indexKey(msg.Priority, qMsg.VisibleAt, id)
		if err := txn.Set(indexKey, []byte{}); err != nil {
			return err
		}

		return nil
	})
}

// Receive pulls the next visible message from the queue
func (m *BadgerManager) Receive(ctx context.Context) (*Message, func() error, error) {
	var qMsg QueueMessage
	var msgID string
	var oldIndexKey []byte

	err := m.db.Update(func(txn *badger.Txn) error {
		// Iterate over visibility index to find a ready message
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}

			if ts.After(now) {
				// not yet visible; priority tiers interleave with timestamp within a
				// tier, so a later key in a different tier may still be ready
				continue
			}

			msgKey := m.msgKey(id)
			itemMsg, err := txn.Get(msgKey)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := itemMsg.Value(func(val []byte) error {
				return json.Unmarshal(val, &qMsg)
			}); err != nil {
				return err
			}

			// Check max receive count
			if qMsg.ReceiveCount >= m.maxReceive {
				// Move to DLQ or delete? For now, just delete/log and skip
				// In a real system, we'd move to DLQ.
				// Here we'll just delete it to prevent poison pill loops
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(msgKey); err != nil {
					return err
				}
				continue
			}

			// Claim this message
			found = true
			msgID = id
			oldIndexKey = key // Copy key bytes
			break
		}

		if !found {
			return ErrNoMessage
		}

		// Update message: increment receive count, update visibility
		qMsg.ReceiveCount++
		qMsg.VisibleAt = time.Now().Add(m.visibilityTimeout)

		// 1. Update message data
		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(msgID), newData); err != nil {
			return err
		}

		// 2. Update index: delete old key, add new key
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		newIndexKey := m.indexKey(qMsg.Body.Priority, qMsg.VisibleAt, msgID)
		if err := txn.Set(newIndexKey, []byte{}); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		return nil, nil, err
	}

	// Return message and delete function
	deleteFn := func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			// To delete, we need to find the current index key.
			// Since visibility might have changed (if extended), or we just know the ID.
			// We can look up the message to get the current VisibleAt.

			msgKey := m.msgKey(msgID)
			item, err := txn.Get(msgKey)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return nil // Already deleted
				}
				return err
			}

			var currentMsg QueueMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &currentMsg)
			}); err != nil {
				return err
			}

			// Delete index
			idxKey := m.indexKey(currentMsg.Body.Priority, currentMsg.VisibleAt, msgID)
			if err := txn.Delete(idxKey); err != nil {
				// If not found, maybe it was moved/updated?
				// Ignore not found for index deletion to be safe
				if err != badger.ErrKeyNotFound {
					return err
				}
			}

			// Delete data
			return txn.Delete(msgKey)
		})
	}

	return &qMsg.Body, deleteFn, nil
}

// Extend extends the visibility timeout for a message
func (m *BadgerManager) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return m.extend(ctx, messageID, duration, nil)
}

// ExtendWithBody extends the visibility timeout like Extend, but also
// overwrites the stored message body with body first. Used to persist a
// job's incremented Attempts alongside its retry backoff, so the lease's
// in-memory retry count and the durable record never drift apart.
func (m *BadgerManager) ExtendWithBody(ctx context.Context, messageID string, body Message, duration time.Duration) error {
	return m.extend(ctx, messageID, duration, &body)
}

func (m *BadgerManager) extend(ctx context.Context, messageID string, duration time.Duration, body *Message) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(messageID)
		item, err := txn.Get(msgKey)
		if err != nil {
			return err
		}

		var qMsg QueueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &qMsg)
		}); err != nil {
			return err
		}

		if body != nil {
			qMsg.Body = *body
		}

		// Calculate new visibility
		oldVisibleAt := qMsg.VisibleAt
		qMsg.VisibleAt = time.Now().Add(duration)

		// Update data
		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey, newData); err != nil {
			return err
		}

		// Update index
		oldIndexKey := m.indexKey(qMsg.Body.Priority, oldVisibleAt, messageID)
		if err := txn.Delete(oldIndexKey); err != nil {
			// If old index key not found, it's weird but proceed
			if err != badger.ErrKeyNotFound {
				return err
			}
		}

		newIndexKey := m.indexKey(qMsg.Body.Priority, qMsg.VisibleAt, messageID)
		if err := txn.Set(newIndexKey, []byte{}); err != nil {
			return err
		}

		return nil
	})
}

// Delete removes a message by ID regardless of its current visibility state,
// used to cancel a queued or in-flight job before it is delivered again.
func (m *BadgerManager) Delete(ctx context.Context, id string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(id)
		item, err := txn.Get(msgKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNoMessage
			}
			return err
		}

		var qMsg QueueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &qMsg)
		}); err != nil {
			return err
		}

		idxKey := m.indexKey(qMsg.Body.Priority, qMsg.VisibleAt, id)
		if err := txn.Delete(idxKey); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(msgKey)
	})
}

// Close closes the queue manager (no-op for BadgerManager as DB is managed externally)
func (m *BadgerManager) Close() error {
	return nil
}

// Helpers

func (m *BadgerManager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

// indexKey orders ready messages by priority first, then visibility time, so
// a lower-priority-number job (more urgent) always surfaces ahead of a
// higher-priority-number one regardless of enqueue order.
func (m *BadgerManager) indexKey(priority int, visibleAt time.Time, id string) []byte {
	ts := visibleAt.UnixNano()
	return []byte(fmt.Sprintf("queue:%s:index:%010d:%020d:%s", m.queueName, priority, ts, id))
}

func (m *BadgerManager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefixStr := fmt.Sprintf("queue:%s:index:", m.queueName)
	if len(key) <= len(prefixStr) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	suffix := string(key[len(prefixStr):])
	// Suffix is "{10-digit-priority}:{20-digit-ts}:{id}"

	if len(suffix) < 32 { // 10 digits + ':' + 20 digits + ':'
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	tsStr := suffix[11:31]
	id := suffix[32:]

	var ts int64
	_, err := fmt.Sscanf(tsStr, "%d", &ts)
	if err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), id, nil
}

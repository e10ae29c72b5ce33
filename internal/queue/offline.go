// Package queue holds notifications for users with no live connection.
package queue

import (
	"sync"
	"time"

	"hms-notification-service/internal/domain"
)

const DefaultCap = 100

// OfflineQueue is a per-user bounded FIFO. Enqueuing onto a full queue drops
// the oldest entry, so total memory stays within users x cap.
type OfflineQueue struct {
	mu     sync.Mutex
	cap    int
	queues map[string][]domain.NotificationMessage
}

func New(capacity int) *OfflineQueue {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &OfflineQueue{
		cap:    capacity,
		queues: make(map[string][]domain.NotificationMessage),
	}
}

func (q *OfflineQueue) Cap() int { return q.cap }

// Enqueue appends msg and returns how many old entries were evicted to make
// room.
func (q *OfflineQueue) Enqueue(userID string, msg domain.NotificationMessage) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.queues[userID]
	evicted := 0
	for len(entries) >= q.cap {
		entries[0] = domain.NotificationMessage{}
		entries = entries[1:]
		evicted++
	}
	q.queues[userID] = append(entries, msg)
	return evicted
}

// DrainAndClear returns the user's backlog oldest first and empties it.
func (q *OfflineQueue) DrainAndClear(userID string) []domain.NotificationMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.queues[userID]
	delete(q.queues, userID)
	return entries
}

// GCExpired drops every entry whose expiry has passed and reports how many
// were removed. Entries without an expiry are kept.
func (q *OfflineQueue) GCExpired(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for userID, entries := range q.queues {
		kept := entries[:0]
		for _, m := range entries {
			if m.Expired(now) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		for i := len(kept); i < len(entries); i++ {
			entries[i] = domain.NotificationMessage{}
		}
		if len(kept) == 0 {
			delete(q.queues, userID)
			continue
		}
		q.queues[userID] = kept
	}
	return removed
}

func (q *OfflineQueue) Len(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[userID])
}

// Total counts queued messages across all users.
func (q *OfflineQueue) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, entries := range q.queues {
		n += len(entries)
	}
	return n
}

func (q *OfflineQueue) Clear() {
	q.mu.Lock()
	q.queues = make(map[string][]domain.NotificationMessage)
	q.mu.Unlock()
}

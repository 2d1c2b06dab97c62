package transport

import (
	"sync"
	"time"
)

const (
	// MaxQueueSize bounds the number of buffered notifications.
	MaxQueueSize = 100
	// MaxResponseSize bounds a single notification payload.
	MaxResponseSize = 4096
)

// NotificationQueue is a bounded FIFO between the platform notification
// callback and readers. Push never blocks: when full it evicts the oldest entry.
type NotificationQueue struct {
	mu       sync.Mutex
	items    [][]byte
	capacity int
	evicted  int
	// ready holds a token whenever items may be non-empty
	ready chan struct{}
}

func NewNotificationQueue(capacity int) *NotificationQueue {
	if capacity <= 0 {
		capacity = MaxQueueSize
	}
	return &NotificationQueue{
		items:    make([][]byte, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends data, evicting the oldest entry first if the queue is full.
// It reports whether an entry was evicted.
func (q *NotificationQueue) Push(data []byte) bool {
	q.mu.Lock()
	evicted := false
	if len(q.items) >= q.capacity {
		q.items[0] = nil
		q.items = q.items[1:]
		q.evicted++
		evicted = true
	}
	q.items = append(q.items, data)
	q.mu.Unlock()

	q.signal()
	return evicted
}

// Pop removes the oldest entry, waiting up to timeout for one to arrive.
// A timeout of zero or less only checks what is already queued.
func (q *NotificationQueue) Pop(timeout time.Duration) ([]byte, bool) {
	if data, ok := q.tryPop(); ok || timeout <= 0 {
		return data, ok
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.ready:
			if data, ok := q.tryPop(); ok {
				return data, true
			}
		case <-timer.C:
			return q.tryPop()
		}
	}
}

func (q *NotificationQueue) tryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	data := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return data, true
}

func (q *NotificationQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *NotificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Evicted counts entries dropped to make room since the queue was created.
func (q *NotificationQueue) Evicted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Snapshot returns the queued entries oldest first without removing them.
func (q *NotificationQueue) Snapshot() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, len(q.items))
	copy(out, q.items)
	return out
}

func (q *NotificationQueue) Clear() {
	q.mu.Lock()
	clear(q.items)
	q.items = q.items[:0]
	q.mu.Unlock()

	select {
	case <-q.ready:
	default:
	}
}

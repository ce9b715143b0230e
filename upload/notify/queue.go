// Package notify buffers user-facing messages for the host's polling loop.
package notify

import (
	"fmt"
	"sync"
	"time"
)

// Kind classifies a notification for the host's rendering.
type Kind string

const (
	// KindInfo ...
	KindInfo Kind = "info"
	// KindSuccess ...
	KindSuccess Kind = "success"
	// KindFailure ...
	KindFailure Kind = "failure"
)

// Notification is one message for the user-visible surface.
type Notification struct {
	Kind      Kind
	Message   string
	Timestamp time.Time
}

// Capacity bounds the queue; the oldest entries are dropped beyond it. The
// host is expected to drain every 250-500 ms, so the bound only matters when
// polling stops.
const Capacity = 50

// Queue is a bounded FIFO of notifications, drained by the host's poll loop.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
}

// NewQueue ...
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// Info enqueues an informational message.
func (q *Queue) Info(format string, args ...interface{}) {
	q.push(KindInfo, format, args...)
}

// Success enqueues a success message.
func (q *Queue) Success(format string, args ...interface{}) {
	q.push(KindSuccess, format, args...)
}

// Failure enqueues a failure message.
func (q *Queue) Failure(format string, args ...interface{}) {
	q.push(KindFailure, format, args...)
}

// Drain returns all queued notifications in arrival order and empties the
// queue in one atomic step.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items
	q.items = nil
	return drained
}

func (q *Queue) push(kind Kind, format string, args ...interface{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, Notification{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: q.now(),
	})
	if len(q.items) > Capacity {
		q.items = q.items[len(q.items)-Capacity:]
	}
}

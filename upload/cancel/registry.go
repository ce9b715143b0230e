// Package cancel tracks the abort capability of in-flight upload tasks.
package cancel

import "sync"

// Registry maps task IDs to their abort functions. Cancelling a task both
// invokes the abort (force-closing the in-flight connection) and latches a
// cancelled flag that the transport polls at chunk boundaries, so cancellation
// takes effect regardless of which side observes it first.
type Registry struct {
	mu        sync.Mutex
	aborts    map[string]func()
	cancelled map[string]bool
}

// NewRegistry ...
func NewRegistry() *Registry {
	return &Registry{
		aborts:    map[string]func(){},
		cancelled: map[string]bool{},
	}
}

// Register stores the abort function for a task. If the task was already
// cancelled before registration, abort is invoked immediately.
func (r *Registry) Register(taskID string, abort func()) {
	r.mu.Lock()
	alreadyCancelled := r.cancelled[taskID]
	if !alreadyCancelled {
		r.aborts[taskID] = abort
	}
	r.mu.Unlock()

	if alreadyCancelled && abort != nil {
		abort()
	}
}

// Cancel marks the task cancelled and invokes its abort function if one is
// registered. It reports whether the task was known to the registry.
func (r *Registry) Cancel(taskID string) bool {
	r.mu.Lock()
	abort, known := r.aborts[taskID]
	r.cancelled[taskID] = true
	delete(r.aborts, taskID)
	r.mu.Unlock()

	if abort != nil {
		abort()
	}
	return known
}

// IsCancelled reports whether Cancel was called for the task.
func (r *Registry) IsCancelled(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled[taskID]
}

// Unregister removes all state for a finished task.
func (r *Registry) Unregister(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.aborts, taskID)
	delete(r.cancelled, taskID)
}

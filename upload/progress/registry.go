// Package progress is the process-wide table of in-flight upload state, written
// by the active transport for each task and read by a polling host UI.
package progress

import (
	"sync"
	"time"
)

// Samples with no update for this long are assumed to belong to a crashed
// transport and are evicted on the next read.
const staleSampleTimeout = 5 * time.Minute

// Sample is the latest known transfer state of one task. Samples are replaced
// whole on every update; readers always receive a copy.
type Sample struct {
	TaskID           string
	FileName         string
	BytesTransferred int64
	BytesTotal       int64
	Percent          float64
	ThroughputBPS    float64
	ETASeconds       float64
	SampleTime       time.Time
}

// Batch aggregates completion state over tasks started together.
type Batch struct {
	ID                 string
	TotalTaskCount     int
	CompletedTaskCount int
	IsComplete         bool
	// IsDispatched records that the batch result reached the user-visible
	// surface. It never becomes true before IsComplete; CompleteAndDispatch
	// sets both under one lock so pollers cannot observe the half-done state.
	IsDispatched bool
}

// Registry tracks samples and batches. All mutation replaces whole records
// under the registry mutex, never field-level partial updates visible to
// readers.
type Registry struct {
	mu        sync.Mutex
	samples   map[string]Sample
	batches   map[string]*Batch
	taskBatch map[string]string
	active    []string // still-active task IDs in registration order
	displayed string
	now       func() time.Time
}

// NewRegistry ...
func NewRegistry() *Registry {
	return &Registry{
		samples:   map[string]Sample{},
		batches:   map[string]*Batch{},
		taskBatch: map[string]string{},
		now:       time.Now,
	}
}

// RegisterBatch creates the bookkeeping record for a group of tasks started
// together.
func (r *Registry) RegisterBatch(batchID string, taskCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batchID] = &Batch{ID: batchID, TotalTaskCount: taskCount}
}

// RegisterTask adds a task to the table with a zeroed sample. The first
// registered task becomes the displayed one.
func (r *Registry) RegisterTask(taskID, batchID, fileName string, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[taskID] = Sample{
		TaskID:     taskID,
		FileName:   fileName,
		BytesTotal: totalBytes,
		SampleTime: r.now(),
	}
	r.taskBatch[taskID] = batchID
	r.active = append(r.active, taskID)
	if r.displayed == "" {
		r.displayed = taskID
	}
}

// Update replaces the task's sample. Transferred bytes are monotonic within an
// attempt: a regressing update is dropped. Percent is clamped to [0, 100].
func (r *Registry) Update(sample Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.samples[sample.TaskID]
	if !ok {
		return
	}
	if sample.BytesTransferred < existing.BytesTransferred {
		return
	}
	if sample.FileName == "" {
		sample.FileName = existing.FileName
	}
	if sample.BytesTotal == 0 {
		sample.BytesTotal = existing.BytesTotal
	}
	sample.Percent = clampPercent(sample.Percent)
	if sample.SampleTime.IsZero() {
		sample.SampleTime = r.now()
	}
	r.samples[sample.TaskID] = sample
}

// ResetAttempt zeroes the task's transfer state. Switching to a fallback
// service means a new transfer from byte 0.
func (r *Registry) ResetAttempt(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.samples[taskID]
	if !ok {
		return
	}
	r.samples[taskID] = Sample{
		TaskID:     taskID,
		FileName:   existing.FileName,
		BytesTotal: existing.BytesTotal,
		SampleTime: r.now(),
	}
}

// CompleteTask marks one task done, advances its batch's completed count and
// re-points the displayed task to another still-active one if needed.
func (r *Registry) CompleteTask(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeTaskLocked(taskID)
}

// MarkDispatched flags a completed batch as delivered to the user-visible
// surface. It has no effect on a batch that is not complete yet.
func (r *Registry) MarkDispatched(batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if batch, ok := r.batches[batchID]; ok && batch.IsComplete {
		batch.IsDispatched = true
	}
}

// CompleteAndDispatch completes the task and, if its batch thereby finishes,
// sets the batch's completion and dispatch flags in the same critical section.
// This removes the window where a poller could observe a stable
// complete-but-not-dispatched batch and prematurely act on it.
func (r *Registry) CompleteAndDispatch(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completeTaskLocked(taskID)
	if batch, ok := r.batches[r.taskBatch[taskID]]; ok && batch.IsComplete {
		batch.IsDispatched = true
	}
}

// TaskSample returns a copy of the task's sample, if present and not stale.
func (r *Registry) TaskSample(taskID string) (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireStaleLocked()
	sample, ok := r.samples[taskID]
	return sample, ok
}

// DisplayedSample returns a copy of the currently displayed task's sample.
func (r *Registry) DisplayedSample() (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireStaleLocked()
	sample, ok := r.samples[r.displayed]
	return sample, ok
}

// BatchState returns a copy of the batch record.
func (r *Registry) BatchState(batchID string) (Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, ok := r.batches[batchID]
	if !ok {
		return Batch{}, false
	}
	return *batch, true
}

// Remove evicts one task entirely, re-pointing the displayed task if needed.
func (r *Registry) Remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(taskID)
}

// Clear drops every sample and batch, for error recovery or explicit dismissal.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples = map[string]Sample{}
	r.batches = map[string]*Batch{}
	r.taskBatch = map[string]string{}
	r.active = nil
	r.displayed = ""
}

func (r *Registry) completeTaskLocked(taskID string) {
	sample, ok := r.samples[taskID]
	if !ok {
		return
	}
	sample.BytesTransferred = sample.BytesTotal
	sample.Percent = 100
	sample.SampleTime = r.now()
	r.samples[taskID] = sample

	r.dropActiveLocked(taskID)

	if batch, ok := r.batches[r.taskBatch[taskID]]; ok {
		if batch.CompletedTaskCount < batch.TotalTaskCount {
			batch.CompletedTaskCount++
		}
		if batch.CompletedTaskCount == batch.TotalTaskCount {
			batch.IsComplete = true
		}
	}
}

func (r *Registry) removeLocked(taskID string) {
	batchID := r.taskBatch[taskID]
	delete(r.samples, taskID)
	delete(r.taskBatch, taskID)
	r.dropActiveLocked(taskID)

	// A dispatched batch that just lost its last task can never change again.
	if batch, ok := r.batches[batchID]; ok && batch.IsDispatched && !r.batchReferencedLocked(batchID) {
		delete(r.batches, batchID)
	}
}

// batchReferencedLocked reports whether any registered task still belongs to
// the batch.
func (r *Registry) batchReferencedLocked(batchID string) bool {
	for _, id := range r.taskBatch {
		if id == batchID {
			return true
		}
	}
	return false
}

// dropActiveLocked removes taskID from the active list and re-points the
// displayed task to the earliest-registered still-active one.
func (r *Registry) dropActiveLocked(taskID string) {
	for i, id := range r.active {
		if id == taskID {
			r.active = append(r.active[:i], r.active[i+1:]...)
			break
		}
	}
	if r.displayed == taskID {
		r.displayed = ""
		if len(r.active) > 0 {
			r.displayed = r.active[0]
		}
	}
}

func (r *Registry) expireStaleLocked() {
	cutoff := r.now().Add(-staleSampleTimeout)
	for taskID, sample := range r.samples {
		if sample.SampleTime.Before(cutoff) {
			r.removeLocked(taskID)
		}
	}
	// Completed batches stop mutating once their tasks are gone; drop the
	// records so they cannot pile up over the process lifetime.
	for batchID, batch := range r.batches {
		if batch.IsComplete && !r.batchReferencedLocked(batchID) {
			delete(r.batches, batchID)
		}
	}
}

func clampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

package cancel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelInvokesAbort(t *testing.T) {
	registry := NewRegistry()

	aborted := false
	registry.Register("task-1", func() { aborted = true })

	known := registry.Cancel("task-1")

	assert.True(t, known)
	assert.True(t, aborted)
	assert.True(t, registry.IsCancelled("task-1"))
}

func TestCancelUnknownTask(t *testing.T) {
	registry := NewRegistry()

	known := registry.Cancel("never-registered")

	assert.False(t, known)
	// the cancelled flag still latches so a late registration aborts immediately
	assert.True(t, registry.IsCancelled("never-registered"))
}

func TestRegisterAfterCancelAbortsImmediately(t *testing.T) {
	registry := NewRegistry()
	registry.Cancel("task-1")

	aborted := false
	registry.Register("task-1", func() { aborted = true })

	assert.True(t, aborted)
}

func TestCancelIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	abortCount := 0
	registry.Register("task-1", func() { abortCount++ })

	registry.Cancel("task-1")
	registry.Cancel("task-1")

	assert.Equal(t, 1, abortCount)
}

func TestUnregisterClearsState(t *testing.T) {
	registry := NewRegistry()
	registry.Register("task-1", func() {})
	registry.Cancel("task-1")

	registry.Unregister("task-1")

	assert.False(t, registry.IsCancelled("task-1"))
}

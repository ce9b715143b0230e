package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainReturnsInOrderAndEmpties(t *testing.T) {
	queue := NewQueue()
	queue.Info("starting %s", "photo.png")
	queue.Failure("upload to %s failed", "catbox")
	queue.Success("uploaded to %s", "gofile")

	drained := queue.Drain()

	require.Len(t, drained, 3)
	assert.Equal(t, KindInfo, drained[0].Kind)
	assert.Equal(t, "starting photo.png", drained[0].Message)
	assert.Equal(t, KindFailure, drained[1].Kind)
	assert.Equal(t, KindSuccess, drained[2].Kind)
	assert.False(t, drained[0].Timestamp.IsZero())

	assert.Empty(t, queue.Drain())
}

func TestQueueDropsOldestBeyondCapacity(t *testing.T) {
	queue := NewQueue()
	for i := 0; i < Capacity+10; i++ {
		queue.Info("message %d", i)
	}

	drained := queue.Drain()

	require.Len(t, drained, Capacity)
	assert.Equal(t, "message 10", drained[0].Message)
	assert.Equal(t, fmt.Sprintf("message %d", Capacity+9), drained[len(drained)-1].Message)
}

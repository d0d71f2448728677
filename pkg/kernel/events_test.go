package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueFIFOOrder(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Kind: EventKeyDown, Key: 1})
	q.Push(Event{Kind: EventKeyUp, Key: 1})
	q.Push(Event{Kind: EventResize, Width: 80, Height: 24})

	assert.Equal(t, 3, q.Len())

	ev, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, EventKeyDown, ev.Kind)

	ev, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, EventKeyUp, ev.Kind)

	assert.Equal(t, 1, q.Len())
}

func TestEventQueueDrainEmptiesInPushOrder(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Kind: EventFrameTick, Timestamp: 1})
	q.Push(Event{Kind: EventFrameTick, Timestamp: 2})

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, float64(1), drained[0].Timestamp)
	assert.Equal(t, float64(2), drained[1].Timestamp)
	assert.True(t, q.IsEmpty())
}

func TestEventQueuePopOnEmptyReportsFalse(t *testing.T) {
	q := NewEventQueue()
	_, ok := q.Pop()
	assert.False(t, ok)
}

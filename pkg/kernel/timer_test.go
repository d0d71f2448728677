package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueueFiresInOrder(t *testing.T) {
	q := NewTimerQueue()
	idA := q.Schedule(10, 0, nil)
	idB := q.Schedule(5, 0, nil)

	fired := q.TickDetailed(3)
	assert.Empty(t, fired)

	fired = q.TickDetailed(5)
	require.Len(t, fired, 1)
	assert.Equal(t, idB, fired[0].ID)

	fired = q.TickDetailed(10)
	require.Len(t, fired, 1)
	assert.Equal(t, idA, fired[0].ID)
}

func TestTimerQueueCancel(t *testing.T) {
	q := NewTimerQueue()
	id := q.Schedule(10, 0, nil)
	assert.True(t, q.IsPending(id))
	assert.True(t, q.Cancel(id))
	assert.False(t, q.IsPending(id))

	fired := q.TickDetailed(100)
	assert.Empty(t, fired)
}

func TestIntervalTimerSkipsToLatest(t *testing.T) {
	q := NewTimerQueue()
	id := q.ScheduleInterval(10, 0, nil)

	// A long stall: the host only ticks again at t=105, well past several
	// periods. The timer should fire once, catching up to the next
	// boundary strictly after now, not once per missed period.
	fired := q.TickDetailed(105)
	require.Len(t, fired, 1)
	assert.Equal(t, id, fired[0].ID)
	assert.True(t, q.IsPending(id), "interval timer re-arms itself")

	next, ok := q.TimeUntilNext(105)
	require.True(t, ok)
	assert.GreaterOrEqual(t, next, 0.0)
}

func TestTimerQueuePendingCount(t *testing.T) {
	q := NewTimerQueue()
	q.Schedule(10, 0, nil)
	q.Schedule(20, 0, nil)
	assert.Equal(t, 2, q.PendingCount())
}

package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingComputation struct {
	remaining int
	polls     *[]TaskId
	id        TaskId
}

func (c *countingComputation) Poll(waker *Waker) bool {
	*c.polls = append(*c.polls, c.id)
	c.remaining--
	if c.remaining > 0 {
		waker.Wake()
		return false
	}
	return true
}

func TestExecutorPollsReadyTaskToCompletion(t *testing.T) {
	e := NewExecutor()
	var order []TaskId
	done := false
	id := e.Spawn(ComputationFunc(func() { done = true }))
	_ = id

	polled := e.Tick()
	assert.Equal(t, 1, polled)
	assert.True(t, done)
	assert.False(t, e.HasTasks())
	_ = order
}

func TestExecutorRespectsPriorityOrder(t *testing.T) {
	e := NewExecutor()
	var order []Priority

	e.SpawnWithPriority(ComputationFunc(func() { order = append(order, PriorityBackground) }), PriorityBackground)
	e.SpawnWithPriority(ComputationFunc(func() { order = append(order, PriorityNormal) }), PriorityNormal)
	e.SpawnWithPriority(ComputationFunc(func() { order = append(order, PriorityCritical) }), PriorityCritical)

	e.Tick()
	require.Len(t, order, 3)
	assert.Equal(t, []Priority{PriorityCritical, PriorityNormal, PriorityBackground}, order)
}

func TestExecutorSelfWakingTaskIsRepolledWithinTick(t *testing.T) {
	e := NewExecutor()
	var polls []TaskId
	c := &countingComputation{remaining: 2, polls: &polls}
	c.id = e.Spawn(c)

	n := e.Tick()
	assert.Equal(t, 2, n, "a task that re-wakes itself is polled again within the same tick until it completes")
	assert.False(t, e.HasTasks())
}

func TestExecutorFuelBoundsSinglePoll(t *testing.T) {
	e := NewExecutor()
	e.SetFuel(1)

	polls := 0
	var id TaskId
	id = e.Spawn(ComputationFunc(func() {}))
	_ = id

	second := e.Spawn(ComputationFunc(func() { polls++ }))
	_ = second

	n := e.Tick()
	assert.LessOrEqual(t, n, 1)
}

func TestExecutorWakeOfUnknownTaskIsNoOp(t *testing.T) {
	e := NewExecutor()
	assert.NotPanics(t, func() { e.Wake(TaskId(99999)) })
}

func TestExecutorNilWakerIsSafe(t *testing.T) {
	var w *Waker
	assert.NotPanics(t, func() { w.Wake() })
}

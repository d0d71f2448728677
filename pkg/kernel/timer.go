package kernel

import (
	"math"

	"github.com/google/btree"
)

// TimerId identifies a scheduled one-shot or interval timer.
type TimerId uint64

type timerKey struct {
	fireAt float64
	id     TimerId
}

func timerKeyLess(a, b timerKey) bool {
	if a.fireAt != b.fireAt {
		return a.fireAt < b.fireAt
	}
	return a.id < b.id
}

type timer struct {
	id       TimerId
	fireAt   float64
	periodMs float64 // 0 => one-shot
	wake     *TaskId
}

// TimerQueue is a monotonic earliest-deadline queue of one-shot and
// interval timers (spec.md §4.2), backed by a google/btree.BTreeG ordered
// by (fire_at, id) for O(log n) schedule/cancel/earliest-deadline lookup.
type TimerQueue struct {
	tree   *btree.BTreeG[timerKey]
	timers map[TimerId]*timer
	nextID TimerId
}

// NewTimerQueue creates an empty timer queue.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{
		tree:   btree.NewG(32, timerKeyLess),
		timers: make(map[TimerId]*timer),
	}
}

// Schedule arranges for wake (if non-nil) to be returned from a future
// Tick once now+delayMs has elapsed.
func (q *TimerQueue) Schedule(delayMs, now float64, wake *TaskId) TimerId {
	return q.insert(delayMs, now, 0, wake)
}

// ScheduleInterval is like Schedule but reschedules every periodMs after
// firing (catch-up policy: see TimerQueue.Tick). periodMs must be > 0;
// callers are expected to validate this at the syscall boundary.
func (q *TimerQueue) ScheduleInterval(periodMs, now float64, wake *TaskId) TimerId {
	return q.insert(periodMs, now, periodMs, wake)
}

func (q *TimerQueue) insert(delayMs, now, periodMs float64, wake *TaskId) TimerId {
	q.nextID++
	id := q.nextID
	t := &timer{id: id, fireAt: now + delayMs, periodMs: periodMs, wake: wake}
	q.timers[id] = t
	q.tree.ReplaceOrInsert(timerKey{fireAt: t.fireAt, id: id})
	return id
}

// Cancel removes id if it is still pending. It returns true on the first
// successful cancellation and false on every subsequent call (T4).
func (q *TimerQueue) Cancel(id TimerId) bool {
	t, ok := q.timers[id]
	if !ok {
		return false
	}
	q.tree.Delete(timerKey{fireAt: t.fireAt, id: id})
	delete(q.timers, id)
	return true
}

// FiredTimer is one timer that fired during a Tick/TickDetailed call.
type FiredTimer struct {
	ID   TimerId
	Wake *TaskId
}

// Tick fires every timer whose fire_at <= now, in ascending fire_at order
// (T1), reschedules interval timers, and returns the wake targets
// (skipping timers with no attached task).
//
// Interval catch-up policy (documented as an Open-Question resolution in
// SPEC_FULL.md §6.2): an overdue interval timer fires exactly once per
// Tick call and its fire_at is advanced directly to the smallest multiple
// of period_ms that lands strictly after now, so Tick stays O(active
// timers) no matter how long the host stalled (T3).
func (q *TimerQueue) Tick(now float64) []TaskId {
	fired := q.TickDetailed(now)
	wakes := make([]TaskId, 0, len(fired))
	for _, f := range fired {
		if f.Wake != nil {
			wakes = append(wakes, *f.Wake)
		}
	}
	return wakes
}

// TickDetailed is Tick but also reports which TimerId fired for each wake,
// letting callers (e.g. Kernel.Alarm) correlate a firing back to
// kernel-level bookkeeping without the TimerQueue itself knowing about
// alarms or signals.
func (q *TimerQueue) TickDetailed(now float64) []FiredTimer {
	var due []timerKey
	for {
		min, ok := q.tree.Min()
		if !ok || min.fireAt > now {
			break
		}
		q.tree.Delete(min)
		due = append(due, min)
	}

	fired := make([]FiredTimer, 0, len(due))
	for _, key := range due {
		t, ok := q.timers[key.id]
		if !ok {
			continue
		}
		fired = append(fired, FiredTimer{ID: t.id, Wake: t.wake})
		if t.periodMs > 0 {
			gap := now - t.fireAt
			steps := math.Floor(gap/t.periodMs) + 1
			t.fireAt += steps * t.periodMs
			q.tree.ReplaceOrInsert(timerKey{fireAt: t.fireAt, id: t.id})
		} else {
			delete(q.timers, t.id)
		}
	}
	return fired
}

// TimeUntilNext returns the number of milliseconds until the earliest
// pending timer fires (possibly negative/zero if already due), or false
// if no timer is pending.
func (q *TimerQueue) TimeUntilNext(now float64) (float64, bool) {
	min, ok := q.tree.Min()
	if !ok {
		return 0, false
	}
	return min.fireAt - now, true
}

// PendingCount returns the number of timers not yet fired/cancelled.
func (q *TimerQueue) PendingCount() int {
	return len(q.timers)
}

// IsPending reports whether id is still scheduled.
func (q *TimerQueue) IsPending(id TimerId) bool {
	_, ok := q.timers[id]
	return ok
}

package kernel

import "sync"

// Priority orders how the Executor polls ready tasks within one tick: all
// ready Critical tasks are polled before any Normal task, and all ready
// Normal tasks before any Background task (spec.md §4.1, contract E1).
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityNormal
	PriorityBackground
)

var priorityOrder = [...]Priority{PriorityCritical, PriorityNormal, PriorityBackground}

// TaskId uniquely identifies a spawned task for the lifetime of the
// Executor that created it.
type TaskId uint64

// Waker is handed to a Computation's Poll call. Invoking Wake sets the
// task's ready bit so a future tick polls it again. Wake never panics and
// is safe to call after the task has completed (it is simply a no-op).
type Waker struct {
	exec *Executor
	id   TaskId
}

// Wake re-arms the owning task so the next Tick polls it.
func (w *Waker) Wake() {
	if w == nil || w.exec == nil {
		return
	}
	w.exec.Wake(w.id)
}

// Computation is a resumable, boxed unit of cooperative work. Poll is
// called at most once per Tick pass; it must return quickly and either
// complete or arrange (via waker, or any other mechanism) to eventually be
// woken, or it will never be polled again (spec.md's "no busy waiting").
type Computation interface {
	// Poll drives the computation forward once. It returns true when the
	// computation has completed and should be removed from the executor.
	Poll(waker *Waker) bool
}

// ComputationFunc adapts a plain func to Computation, polling to
// completion unconditionally on first call — useful for "append my label
// and finish" style tasks exercised by tests and §8 scenario 1.
type ComputationFunc func()

// Poll implements Computation.
func (f ComputationFunc) Poll(*Waker) bool {
	f()
	return true
}

type taskEntry struct {
	id        TaskId
	priority  Priority
	comp      Computation
	ready     bool
	completed bool
	seq       uint64
}

// Executor holds every live task and polls the ready subset in priority
// order until none remain ready, or until a per-tick fuel limit is hit
// (spec.md §4.1).
type Executor struct {
	mu      sync.Mutex
	tasks   map[TaskId]*taskEntry
	byPrio  [3][]*taskEntry
	nextID  TaskId
	nextSeq uint64
	fuel    int
}

// DefaultFuel bounds the number of polls a single Tick performs before
// returning, guaranteeing tick() is bounded even if tasks keep re-waking
// themselves (spec.md §5 "Liveness").
const DefaultFuel = 100000

// NewExecutor creates an empty Executor with the default fuel limit.
func NewExecutor() *Executor {
	return &Executor{
		tasks: make(map[TaskId]*taskEntry),
		fuel:  DefaultFuel,
	}
}

// SetFuel overrides the per-tick poll budget.
func (e *Executor) SetFuel(fuel int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fuel = fuel
}

// Spawn inserts c at PriorityNormal, marks it ready, and returns its id.
func (e *Executor) Spawn(c Computation) TaskId {
	return e.SpawnWithPriority(c, PriorityNormal)
}

// SpawnWithPriority inserts c at the given priority, marks it ready, and
// returns its id.
func (e *Executor) SpawnWithPriority(c Computation, p Priority) TaskId {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.nextSeq++
	t := &taskEntry{id: id, priority: p, comp: c, ready: true, seq: e.nextSeq}
	e.tasks[id] = t
	e.byPrio[p] = append(e.byPrio[p], t)
	return id
}

// Wake sets id's ready bit. Unknown ids are silently ignored.
func (e *Executor) Wake(id TaskId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tasks[id]; ok && !t.completed {
		t.ready = true
	}
}

// Tick polls each ready task once, in priority order, repeating passes
// until the ready set is drained or fuel runs out, then returns the number
// of polls performed.
func (e *Executor) Tick() int {
	e.mu.Lock()
	fuel := e.fuel
	e.mu.Unlock()

	polled := 0
	for polled < fuel {
		progressed := false
		for _, p := range priorityOrder {
			e.mu.Lock()
			queue := append([]*taskEntry(nil), e.byPrio[p]...)
			e.mu.Unlock()

			for _, t := range queue {
				if polled >= fuel {
					return polled
				}
				e.mu.Lock()
				if t.completed || !t.ready {
					e.mu.Unlock()
					continue
				}
				t.ready = false
				e.mu.Unlock()

				waker := &Waker{exec: e, id: t.id}
				done := t.comp.Poll(waker)
				polled++
				progressed = true

				if done {
					e.remove(t.id)
				}
			}
		}
		if !progressed {
			break
		}
	}
	return polled
}

func (e *Executor) remove(id TaskId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return
	}
	t.completed = true
	delete(e.tasks, id)
	slice := e.byPrio[t.priority]
	for i, cand := range slice {
		if cand.id == id {
			e.byPrio[t.priority] = append(slice[:i], slice[i+1:]...)
			break
		}
	}
}

// TaskCount returns the number of tasks that have not yet completed.
func (e *Executor) TaskCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// HasTasks reports whether any task remains.
func (e *Executor) HasTasks() bool {
	return e.TaskCount() > 0
}

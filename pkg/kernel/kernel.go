package kernel

import (
	"github.com/sirupsen/logrus"
)

// Kernel is the process-wide singleton described in spec.md §9: it owns
// the executor, object table, process table, VFS-adjacent bookkeeping,
// signal machinery, timer queue, event queue, and tracer, and is driven by
// repeated calls to Tick from a host-supplied frame loop.
type Kernel struct {
	Executor  *Executor
	Timers    *TimerQueue
	Events    *EventQueue
	Objects   *ObjectTable
	Processes *ProcessTable
	Shm       *ShmTable
	Users     *UserDb
	Tracer    *Tracer

	now float64

	// FileSync, if set, is invoked when a writable FileObject's last
	// reference is released, persisting its buffered bytes back to the
	// VFS. The syscall dispatcher installs it; a nil hook means freed
	// file buffers are simply discarded.
	FileSync func(path string, data []byte) error

	console       *ConsoleObject
	consoleHandle Handle

	alarms map[TimerId]Pid

	eventSubscribers []func(Event)
}

// Config bundles the few host-supplied knobs Init needs.
type Config struct {
	Log           logrus.FieldLogger
	MemoryLimit   *uint64 // per-process byte limit; nil = unlimited
}

// Init constructs a fresh Kernel: an empty process/object/fd world plus
// the shared console object. The console's object-table handle and the
// pre-bound stdio fds are created when the first process spawns (see
// SpawnInitProcess).
func Init(cfg Config) *Kernel {
	k := &Kernel{
		Executor:  NewExecutor(),
		Timers:    NewTimerQueue(),
		Events:    NewEventQueue(),
		Objects:   NewObjectTable(),
		Processes: NewProcessTable(cfg.MemoryLimit),
		Shm:       NewShmTable(),
		Users:     NewUserDb(),
		Tracer:    NewTracer(cfg.Log),
		alarms:    make(map[TimerId]Pid),
	}
	k.console = &ConsoleObject{}
	k.Processes.OnZombie(func(p *Process) { k.CloseAllFds(p) })
	return k
}

// ReleaseHandle drops one reference to h. When the refcount hits zero the
// freed object's per-variant cleanup runs: a writable file's buffer is
// written back through FileSync, and a pipe end marks its side of the
// shared pipe closed.
func (k *Kernel) ReleaseHandle(h Handle) error {
	obj, freed := k.Objects.Release(h)
	if !freed || obj == nil {
		return nil
	}
	switch obj.Kind {
	case ObjectFile:
		if obj.File.Writable && k.FileSync != nil {
			return k.FileSync(obj.File.Path, obj.File.Bytes)
		}
	case ObjectPipe:
		obj.Pipe.State.CloseEnd(obj.Pipe.WriteEnd)
	}
	return nil
}

// CloseAllFds closes every fd in p's table, releasing each referenced
// handle (spec.md §3: "process teardown closes every fd"). The first
// write-back failure is reported after all fds have been released.
func (k *Kernel) CloseAllFds(p *Process) error {
	var firstErr error
	for _, slot := range p.Files.All() {
		p.Files.Remove(slot.Fd)
		if err := k.ReleaseHandle(slot.Handle); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Teardown releases kernel-held resources. The VFS and process table are
// garbage-collected with the Kernel value itself; Teardown exists for
// symmetry with Init and for host adapters that hold OS resources (ptys,
// file locks) to release on shutdown.
func (k *Kernel) Teardown() {}

// Now returns the most recent monotonic time (ms) observed via Tick.
func (k *Kernel) Now() float64 { return k.now }

// ConsoleHandle returns the handle of the single shared Console object
// every process's stdio fds point at. The handle only exists while at
// least one fd (or transient kernel holder) references it; Console gives
// direct access to the device regardless.
func (k *Kernel) ConsoleHandle() Handle { return k.consoleHandle }

// Console returns the shared console device.
func (k *Kernel) Console() *ConsoleObject { return k.console }

// RetainConsole takes one reference to the shared console, re-inserting
// it into the object table if every prior reference has been released.
func (k *Kernel) RetainConsole() Handle {
	if !k.Objects.Retain(k.consoleHandle) {
		k.consoleHandle = k.Objects.Insert(NewConsoleObject(k.console))
	}
	return k.consoleHandle
}

// SpawnInitProcess creates the first process in the table, with no parent,
// its stdio fds bound to the shared console (each contributing one
// refcount, so the console starts at refcount 3, per spec.md §4.5).
func (k *Kernel) SpawnInitProcess(name string) (*Process, error) {
	return k.spawnWithStdio(name, nil)
}

// SpawnChildProcess creates a process parented to parent with its own
// stdio fds bound to the shared console.
func (k *Kernel) SpawnChildProcess(name string, parent Pid) (*Process, error) {
	return k.spawnWithStdio(name, &parent)
}

func (k *Kernel) spawnWithStdio(name string, parent *Pid) (*Process, error) {
	p, err := k.Processes.SpawnProcess(name, parent)
	if err != nil {
		return nil, err
	}
	for _, fd := range []Fd{Stdin, Stdout, Stderr} {
		p.Files.AllocAt(fd, k.RetainConsole())
	}
	return p, nil
}

// BindTask associates p with the TaskId backing its cooperative
// execution, so the executor completing that task corresponds to the
// process's "virtual CPU" stopping.
func (k *Kernel) BindTask(p *Process, id TaskId) { p.Task = &id }

// SubscribeEvents registers fn to be invoked, in push order, for every
// event drained during Tick.
func (k *Kernel) SubscribeEvents(fn func(Event)) {
	k.eventSubscribers = append(k.eventSubscribers, fn)
}

// Alarm schedules SIGALRM delivery to pid after delayMs, additionally
// waking wake (if non-nil) the way spec.md §4.2 describes: "alarm(delay)
// is schedule(delay, now, current_task), plus the kernel arranges that
// when the timer wakes, SIGALRM is delivered to the current process."
func (k *Kernel) Alarm(pid Pid, delayMs float64, wake *TaskId) TimerId {
	id := k.Timers.Schedule(delayMs, k.now, wake)
	k.alarms[id] = pid
	return id
}

// Tick advances the kernel by one host frame (spec.md §5):
//  1. ingest monotonic now
//  2. fire expired timers, waking their tasks (and delivering SIGALRM for
//     any that back an Alarm)
//  3. drain events to subscribers
//  4. resolve one deliverable signal per process with pending signals
//  5. poll the executor's ready set
//
// It returns the number of task polls the executor performed.
func (k *Kernel) Tick(now float64) int {
	k.now = now

	fired := k.Timers.TickDetailed(now)
	for _, f := range fired {
		if f.Wake != nil {
			k.Executor.Wake(*f.Wake)
		}
		if pid, ok := k.alarms[f.ID]; ok {
			delete(k.alarms, f.ID)
			if p, ok := k.Processes.Get(pid); ok && p.State != StateZombie {
				p.Signals.Send(SIGALRM)
			}
		}
	}

	for _, ev := range k.Events.Drain() {
		for _, sub := range k.eventSubscribers {
			sub(ev)
		}
	}

	for _, p := range k.Processes.All() {
		if p.State == StateZombie {
			continue
		}
		if _, _, _, err := k.Processes.ProcessSignals(p.Pid); err != nil {
			continue
		}
	}

	return k.Executor.Tick()
}

package kernel

import (
	"sort"
	"sync"

	"github.com/mohae/deepcopy"
)

// Pid and Pgid are process and process-group identifiers.
type Pid uint32
type Pgid uint32

// ProcessState is one of the states in spec.md §4.8's P1 transition
// diagram.
type ProcessState int

const (
	StateRunning ProcessState = iota
	StateSleeping
	StateStopped
	StateZombie
	StateBlocked
)

// Process is a single process's kernel-visible state (spec.md §3).
type Process struct {
	Pid  Pid
	Ppid *Pid
	Pgid Pgid
	Name string

	State         ProcessState
	ExitCode      int32
	BlockedReason string

	Children map[Pid]struct{}

	Uid, Euid             Uid
	Gid, Egid             Gid
	SupplementaryGids     []Gid

	Cwd     string
	Environ map[string]string

	Files   *FdTable
	Signals *SignalState
	Memory  *ProcessMemory

	Task *TaskId
}

// WaitFlags modify Waitpid's blocking and status-matching behavior.
type WaitFlags struct {
	NoHang    bool
	Untraced  bool // also match Stopped children
}

// WaitResult is returned by a successful Waitpid.
type WaitResult struct {
	Pid      Pid
	State    ProcessState
	ExitCode int32
}

// ProcessTable owns every live Process, assigning monotonically increasing
// pids and maintaining the ppid/children invariant (P3).
type ProcessTable struct {
	mu      sync.Mutex
	procs   map[Pid]*Process
	nextPid Pid
	memLim  *uint64

	// onZombie runs after a process transitions to Zombie, outside the
	// table lock. The Kernel installs fd teardown here so every exit path
	// (explicit exit, fatal signal) releases the process's handles.
	onZombie func(*Process)
}

// NewProcessTable creates an empty process table. defaultMemLimit, if
// non-nil, bounds every new process's memory allocator.
func NewProcessTable(defaultMemLimit *uint64) *ProcessTable {
	return &ProcessTable{
		procs:  make(map[Pid]*Process),
		memLim: defaultMemLimit,
	}
}

// SpawnProcess creates a new process. If parent is non-nil, the new
// process's ppid is set, it is added to the parent's children, and its cwd
// and environ are copied from the parent (a deep copy so the child's later
// mutations to its own environment cannot alias the parent's).
func (pt *ProcessTable) SpawnProcess(name string, parent *Pid) (*Process, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.nextPid++
	pid := pt.nextPid

	p := &Process{
		Pid:      pid,
		Pgid:     Pgid(pid),
		Name:     name,
		State:    StateRunning,
		Children: make(map[Pid]struct{}),
		Environ:  make(map[string]string),
		Cwd:      "/",
		Files:    NewFdTable(),
		Signals:  NewSignalState(),
		Memory:   NewProcessMemory(pt.memLim),
	}

	if parent != nil {
		pp, ok := pt.procs[*parent]
		if !ok {
			return nil, New(ErrNoProcess, "parent process not found")
		}
		ppid := *parent
		p.Ppid = &ppid
		p.Pgid = pp.Pgid
		p.Uid, p.Euid, p.Gid, p.Egid = pp.Uid, pp.Euid, pp.Gid, pp.Egid
		p.Cwd = pp.Cwd
		p.Environ = deepcopy.Copy(pp.Environ).(map[string]string)
		pp.Children[pid] = struct{}{}
	}

	pt.procs[pid] = p
	return p, nil
}

// Get returns the process with the given pid.
func (pt *ProcessTable) Get(pid Pid) (*Process, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.procs[pid]
	return p, ok
}

// OnZombie installs fn to run after any process transitions to Zombie.
func (pt *ProcessTable) OnZombie(fn func(*Process)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.onZombie = fn
}

// Exit transitions pid to Zombie(code). Per P2 this is a one-way
// transition: a process already in Zombie state is left untouched.
func (pt *ProcessTable) Exit(pid Pid, code int32) error {
	pt.mu.Lock()
	p, ok := pt.procs[pid]
	if !ok {
		pt.mu.Unlock()
		return New(ErrNoProcess, "no such process")
	}
	if p.State == StateZombie {
		pt.mu.Unlock()
		return nil
	}
	p.State = StateZombie
	p.ExitCode = code
	fn := pt.onZombie
	pt.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return nil
}

// Kill sends sig to pid's pending set.
func (pt *ProcessTable) Kill(pid Pid, sig Signal) error {
	pt.mu.Lock()
	p, ok := pt.procs[pid]
	pt.mu.Unlock()
	if !ok {
		return New(ErrNoProcess, "no such process")
	}
	p.Signals.Send(sig)
	return nil
}

// ProcessSignals resolves and applies pid's next deliverable signal, per
// the disposition table in spec.md §4.8. It returns the signal delivered
// (false if none was deliverable) and, for DispHandle, leaves state
// unchanged so a runtime-level handler dispatch can occur out of band.
func (pt *ProcessTable) ProcessSignals(pid Pid) (Signal, Disposition, bool, error) {
	pt.mu.Lock()
	p, ok := pt.procs[pid]
	pt.mu.Unlock()
	if !ok {
		return 0, 0, false, New(ErrNoProcess, "no such process")
	}
	if p.State == StateZombie {
		return 0, 0, false, nil
	}

	sig, ok := p.Signals.NextDeliverable()
	if !ok {
		return 0, 0, false, nil
	}
	p.Signals.Consume(sig)
	disp := p.Signals.Disposition(sig)

	switch disp {
	case DispDefault, DispKill, DispTerminate:
		p.State = StateZombie
		p.ExitCode = -int32(sig)
		pt.mu.Lock()
		fn := pt.onZombie
		pt.mu.Unlock()
		if fn != nil {
			fn(p)
		}
	case DispStop:
		p.State = StateStopped
	case DispContinue:
		if p.State == StateStopped {
			p.State = StateRunning
		}
	case DispIgnore:
		// no-op
	case DispHandle:
		// left to the caller/runtime to dispatch
	}
	return sig, disp, true, nil
}

func pgidMatches(p *Process, spec int32, caller *Process) bool {
	switch {
	case spec > 0:
		return p.Pid == Pid(spec)
	case spec == -1:
		return true
	case spec == 0:
		return p.Pgid == caller.Pgid
	default:
		return p.Pgid == Pgid(-spec)
	}
}

// Waitpid implements POSIX-style wait semantics (spec.md §4.8). It
// searches callerPid's children for the first match in Zombie state (or
// Stopped, if flags.Untraced), reaping it on return. It fails ErrNotFound
// when no child matches pidSpec (the error taxonomy has no separate
// NoChild kind), and ErrNoProcess when pidSpec > 0 names a process that is
// not callerPid's child. When matching children exist but none is ready,
// it returns ErrNotFound with NoHang and ErrWouldBlock without it, so the
// caller can retry after a wake — Waitpid itself never blocks.
func (pt *ProcessTable) Waitpid(callerPid Pid, pidSpec int32, flags WaitFlags) (WaitResult, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	caller, ok := pt.procs[callerPid]
	if !ok {
		return WaitResult{}, New(ErrNoProcess, "no such process")
	}

	var candidateChildren []Pid
	for cpid := range caller.Children {
		candidateChildren = append(candidateChildren, cpid)
	}
	sort.Slice(candidateChildren, func(i, j int) bool { return candidateChildren[i] < candidateChildren[j] })

	if pidSpec > 0 {
		if _, isChild := caller.Children[Pid(pidSpec)]; !isChild {
			return WaitResult{}, New(ErrNoProcess, "not a child of the calling process")
		}
	}

	anyCandidate := false
	for _, cpid := range candidateChildren {
		child := pt.procs[cpid]
		if !pgidMatches(child, pidSpec, caller) {
			continue
		}
		anyCandidate = true
		if child.State == StateZombie || (flags.Untraced && child.State == StateStopped) {
			res := WaitResult{Pid: child.Pid, State: child.State, ExitCode: child.ExitCode}
			if child.State == StateZombie {
				delete(caller.Children, cpid)
				delete(pt.procs, cpid)
			}
			return res, nil
		}
	}

	if flags.NoHang {
		return WaitResult{}, New(ErrNotFound, "no child ready")
	}
	if !anyCandidate {
		return WaitResult{}, New(ErrNotFound, "no matching child")
	}
	return WaitResult{}, New(ErrWouldBlock, "no matching child has exited yet")
}

// All returns every live process, ordered by pid (for /proc enumeration).
func (pt *ProcessTable) All() []*Process {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	out := make([]*Process, 0, len(pt.procs))
	for _, p := range pt.procs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pid < out[j].Pid })
	return out
}

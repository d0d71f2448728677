package kernel

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TraceCategory groups syscalls for the tracing summary, matching the
// syscall-number ranges in spec.md §6.
type TraceCategory int

const (
	TraceFileIO TraceCategory = iota
	TraceFilesystem
	TraceProcess
	TraceEnvironment
	TraceMemory
	TraceSignals
	TraceTimers
	TraceIoctl
	TraceTracing
	TraceUsers
)

func (c TraceCategory) String() string {
	switch c {
	case TraceFileIO:
		return "file_io"
	case TraceFilesystem:
		return "filesystem"
	case TraceProcess:
		return "process"
	case TraceEnvironment:
		return "environment"
	case TraceMemory:
		return "memory"
	case TraceSignals:
		return "signals"
	case TraceTimers:
		return "timers"
	case TraceIoctl:
		return "ioctl"
	case TraceTracing:
		return "tracing"
	case TraceUsers:
		return "users"
	default:
		return "unknown"
	}
}

// TraceSummary is a per-category snapshot of call counts and cumulative
// duration, returned by Tracer.Summary.
type TraceSummary struct {
	Category TraceCategory
	Calls    uint64
	Errors   uint64
	Total    time.Duration
}

type categoryStats struct {
	calls  uint64
	errors uint64
	total  time.Duration
}

// Tracer records per-syscall-category call counts, error counts, and
// cumulative latency, and logs each call through an injected
// logrus.FieldLogger — the structured-logging backbone for the syscall
// surface's "tracing" category (spec.md §4.10).
type Tracer struct {
	mu      sync.Mutex
	stats   map[TraceCategory]*categoryStats
	enabled bool
	log     logrus.FieldLogger
}

// NewTracer creates a disabled tracer logging through log. If log is nil,
// a logrus.New() instance is used.
func NewTracer(log logrus.FieldLogger) *Tracer {
	if log == nil {
		log = logrus.New()
	}
	return &Tracer{stats: make(map[TraceCategory]*categoryStats), log: log}
}

// SetEnabled toggles whether Record actually logs (counters are always
// kept regardless, so Summary stays accurate).
func (t *Tracer) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Record accounts one call to syscall number nr/name in category cat,
// which took dur and failed iff err != nil.
func (t *Tracer) Record(cat TraceCategory, nr uint32, name string, pid Pid, dur time.Duration, err error) {
	t.mu.Lock()
	st, ok := t.stats[cat]
	if !ok {
		st = &categoryStats{}
		t.stats[cat] = st
	}
	st.calls++
	st.total += dur
	failed := err != nil
	if failed {
		st.errors++
	}
	enabled := t.enabled
	t.mu.Unlock()

	if !enabled {
		return
	}
	fields := logrus.Fields{
		"syscall_nr":   nr,
		"syscall_name": name,
		"category":     cat.String(),
		"pid":          pid,
		"duration_us":  dur.Microseconds(),
	}
	if failed {
		t.log.WithFields(fields).WithError(err).Warn("syscall failed")
	} else {
		t.log.WithFields(fields).Debug("syscall")
	}
}

// Summary returns a point-in-time snapshot of every category's counters.
func (t *Tracer) Summary() []TraceSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceSummary, 0, len(t.stats))
	for cat, st := range t.stats {
		out = append(out, TraceSummary{Category: cat, Calls: st.calls, Errors: st.errors, Total: st.total})
	}
	return out
}

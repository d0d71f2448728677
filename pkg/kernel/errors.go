// Package kernel implements the cooperative kernel substrate: the executor,
// timer and event queues, the object and fd tables, the process table,
// signal delivery, and per-process memory regions.
package kernel

import (
	"errors"
	"fmt"
)

// ErrKind is the unified error taxonomy surfaced at the syscall boundary
// (see spec.md §7).
type ErrKind int

const (
	ErrBadFd ErrKind = iota
	ErrNotFound
	ErrAlreadyExists
	ErrNotADirectory
	ErrIsADirectory
	ErrPermissionDenied
	ErrInvalidArgument
	ErrWouldBlock
	ErrBrokenPipe
	ErrOutOfMemory
	ErrInvalidData
	ErrNoProcess
	ErrInterrupted
	ErrIO
)

func (k ErrKind) String() string {
	switch k {
	case ErrBadFd:
		return "BadFd"
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotADirectory:
		return "NotADirectory"
	case ErrIsADirectory:
		return "IsADirectory"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrWouldBlock:
		return "WouldBlock"
	case ErrBrokenPipe:
		return "BrokenPipe"
	case ErrOutOfMemory:
		return "OutOfMemory"
	case ErrInvalidData:
		return "InvalidData"
	case ErrNoProcess:
		return "NoProcess"
	case ErrInterrupted:
		return "Interrupted"
	case ErrIO:
		return "Io"
	default:
		return "Unknown"
	}
}

// SyscallError is the error type every syscall in pkg/syscall returns on
// failure. It never leaves a resource half-allocated: callers that acquire
// something before a fallible step must release it on this path.
type SyscallError struct {
	Kind ErrKind
	msg  string
	err  error
}

func (e *SyscallError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	}
	return e.Kind.String()
}

func (e *SyscallError) Unwrap() error { return e.err }

// New builds a SyscallError carrying no wrapped cause.
func New(kind ErrKind, msg string) *SyscallError {
	return &SyscallError{Kind: kind, msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind ErrKind, format string, args ...any) *SyscallError {
	return &SyscallError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kernel ErrKind.
func Wrap(kind ErrKind, err error) *SyscallError {
	return &SyscallError{Kind: kind, err: err}
}

// Is reports whether err (or something it wraps) is a SyscallError of kind.
func Is(err error, kind ErrKind) bool {
	var se *SyscallError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf extracts the ErrKind from err, defaulting to ErrIO for untyped
// errors (the catch-all per spec.md §7).
func KindOf(err error) ErrKind {
	var se *SyscallError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrIO
}

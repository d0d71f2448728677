// Package syscall implements the numbered ABI of spec.md §4.10/§6: a thin,
// validating boundary that resolves the calling process (for calls acting
// on its own state), checks arguments,
// dispatches into pkg/kernel, pkg/vfs, and pkg/syntheticfs, and converts
// every failure into the unified kernel.SyscallError taxonomy.
package syscall

// Nr is a stable syscall number, assigned from fixed ranges by category so
// a trace or an ABI consumer can classify a call from its number alone.
type Nr uint32

// File I/O: 0-49.
const (
	NrOpen Nr = iota
	NrClose
	NrRead
	NrWrite
	NrSeek
	NrDup
	NrPipe
)

// Filesystem: 50-99.
const (
	NrMetadata Nr = iota + 50
	NrExists
	NrCreateDir
	NrReadDir
	NrRemoveFile
	NrRemoveDir
	NrRename
	NrCopyFile
	NrSymlink
	NrReadLink
	NrChmod
	NrChown
)

// Process: 100-149.
const (
	NrSpawnProcess Nr = iota + 100
	NrExit
	NrWaitpid
	NrKill
	NrGetpid
	NrGetppid
)

// Environment: 150-174.
const (
	NrGetenv Nr = iota + 150
	NrSetenv
	NrUnsetenv
	NrGetcwd
	NrChdir
)

// Memory: 175-199.
const (
	NrMemAlloc Nr = iota + 175
	NrMemFree
	NrMemRead
	NrMemWrite
	NrShmget
	NrShmat
	NrShmdt
	NrShmSync
	NrShmRefresh
)

// Signals: 200-224.
const (
	NrSigSend Nr = iota + 200
	NrSigBlock
	NrSigUnblock
	NrSigSetDisposition
	NrSigProcess
)

// Timers: 225-249.
const (
	NrTimerSchedule Nr = iota + 225
	NrTimerScheduleInterval
	NrTimerCancel
	NrAlarm
)

// Ioctl (terminal winsize, flush): 250-274.
const (
	NrIoctlGetWinsize Nr = iota + 250
	NrIoctlSetWinsize
	NrIoctlFlush
)

// Tracing: 275-299.
const (
	NrTraceSetEnabled Nr = iota + 275
	NrTraceSummary
)

// Users/security: 300-324.
const (
	NrGetuid Nr = iota + 300
	NrGeteuid
	NrGetgid
	NrGetegid
	NrLookupUser
	NrLookupGroup
)

var names = map[Nr]string{
	NrOpen: "open", NrClose: "close", NrRead: "read", NrWrite: "write",
	NrSeek: "seek", NrDup: "dup", NrPipe: "pipe",
	NrMetadata: "metadata", NrExists: "exists", NrCreateDir: "create_dir",
	NrReadDir: "read_dir", NrRemoveFile: "remove_file", NrRemoveDir: "remove_dir",
	NrRename: "rename", NrCopyFile: "copy_file", NrSymlink: "symlink",
	NrReadLink: "read_link", NrChmod: "chmod", NrChown: "chown",
	NrSpawnProcess: "spawn_process", NrExit: "exit", NrWaitpid: "waitpid",
	NrKill: "kill", NrGetpid: "getpid", NrGetppid: "getppid",
	NrGetenv: "getenv", NrSetenv: "setenv", NrUnsetenv: "unsetenv",
	NrGetcwd: "getcwd", NrChdir: "chdir",
	NrMemAlloc: "mem_alloc", NrMemFree: "mem_free", NrMemRead: "mem_read",
	NrMemWrite: "mem_write", NrShmget: "shmget", NrShmat: "shmat",
	NrShmdt: "shmdt", NrShmSync: "shm_sync", NrShmRefresh: "shm_refresh",
	NrSigSend: "sig_send", NrSigBlock: "sig_block", NrSigUnblock: "sig_unblock",
	NrSigSetDisposition: "sig_set_disposition", NrSigProcess: "process_signals",
	NrTimerSchedule: "timer_schedule", NrTimerScheduleInterval: "timer_schedule_interval",
	NrTimerCancel: "timer_cancel", NrAlarm: "alarm",
	NrIoctlGetWinsize: "ioctl_get_winsize", NrIoctlSetWinsize: "ioctl_set_winsize",
	NrIoctlFlush: "ioctl_flush",
	NrTraceSetEnabled: "trace_set_enabled", NrTraceSummary: "trace_summary",
	NrGetuid: "getuid", NrGeteuid: "geteuid", NrGetgid: "getgid",
	NrGetegid: "getegid", NrLookupUser: "lookup_user", NrLookupGroup: "lookup_group",
}

// Name returns nr's symbolic name, or "unknown" for an unassigned number.
func (nr Nr) Name() string {
	if n, ok := names[nr]; ok {
		return n
	}
	return "unknown"
}

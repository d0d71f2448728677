package syscall

import (
	"strconv"
	"strings"
	"time"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
	"github.com/axeberg/axebergos-sub000/pkg/syntheticfs"
	"github.com/axeberg/axebergos-sub000/pkg/vfs"
)

// categoryOf maps a syscall number to its Tracer category, matching the
// numbered ranges fixed by spec.md §6.
func categoryOf(nr Nr) kernel.TraceCategory {
	switch {
	case nr < 50:
		return kernel.TraceFileIO
	case nr < 100:
		return kernel.TraceFilesystem
	case nr < 150:
		return kernel.TraceProcess
	case nr < 175:
		return kernel.TraceEnvironment
	case nr < 200:
		return kernel.TraceMemory
	case nr < 225:
		return kernel.TraceSignals
	case nr < 250:
		return kernel.TraceTimers
	case nr < 275:
		return kernel.TraceIoctl
	case nr < 300:
		return kernel.TraceTracing
	default:
		return kernel.TraceUsers
	}
}

// Dispatcher is the syscall boundary: it validates arguments and routes
// into the kernel, VFS, or synthetic filesystem layers, converting every
// failure to a *kernel.SyscallError (spec.md §4.10). Methods that act on
// the caller's own state (fds, environment, cwd, memory, shm, signal mask
// and dispositions, credentials) resolve the caller's process first and
// fail ErrNoProcess when it is absent. The filesystem, timer, alarm,
// ioctl, tracing and user/group lookup methods do not check the caller's
// pid; spawn, exit, waitpid, kill and sig_send check only the pids they
// act on.
type Dispatcher struct {
	Kernel *kernel.Kernel
	Root   vfs.FileSystem
	Synth  *syntheticfs.SyntheticFS
}

// New creates a Dispatcher wired to the given kernel, root filesystem
// (typically a *vfs.LayeredFS), and synthetic-filesystem generator. It
// installs the kernel's FileSync hook so releasing a writable file's last
// reference — whether via Close or process teardown — persists its
// buffer back through the VFS.
func New(k *kernel.Kernel, root vfs.FileSystem, synth *syntheticfs.SyntheticFS) *Dispatcher {
	d := &Dispatcher{Kernel: k, Root: root, Synth: synth}
	k.FileSync = func(path string, data []byte) error {
		if syntheticfs.Owns(path) {
			return nil
		}
		return vfs.WriteAll(root, path, data)
	}
	return d
}

func (d *Dispatcher) trace(nr Nr, pid kernel.Pid, start time.Time, err error) {
	d.Kernel.Tracer.Record(categoryOf(nr), uint32(nr), nr.Name(), pid, time.Since(start), err)
}

// resolveSelf rewrites the /proc/self alias to the caller's numbered
// /proc directory so the synthetic generators need no notion of a
// "current" process.
func resolveSelf(path string, pid kernel.Pid) string {
	norm, err := vfs.Normalize(path)
	if err != nil {
		return path
	}
	if norm == "/proc/self" || strings.HasPrefix(norm, "/proc/self/") {
		return "/proc/" + strconv.FormatUint(uint64(pid), 10) + strings.TrimPrefix(norm, "/proc/self")
	}
	return norm
}

func (d *Dispatcher) process(pid kernel.Pid) (*kernel.Process, error) {
	p, ok := d.Kernel.Processes.Get(pid)
	if !ok {
		return nil, kernel.New(kernel.ErrNoProcess, "no such process")
	}
	return p, nil
}

// Open resolves path (through the synthetic namespaces first, then the
// root VFS), materialises its full contents into a new kernel FileObject
// — the object-table representation is a self-contained buffer, not a
// live VFS handle, per spec.md's Data Model — and binds it to the lowest
// free fd in the caller's table.
func (d *Dispatcher) Open(pid kernel.Pid, path string, opts vfs.OpenOptions) (fd kernel.Fd, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrOpen, pid, start, retErr) }()

	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}

	path = resolveSelf(path, pid)
	if path == "/dev/console" {
		return p.Files.Alloc(d.Kernel.RetainConsole()), nil
	}

	var bytes []byte
	var readable, writable bool

	if syntheticfs.Owns(path) {
		h, err := d.Synth.Open(path, opts, 4096)
		if err != nil {
			return 0, err
		}
		chunk := make([]byte, 4096)
		for {
			n, rerr := d.Synth.Read(h, chunk)
			if n > 0 {
				bytes = append(bytes, chunk[:n]...)
			}
			if rerr != nil || n == 0 {
				break
			}
		}
		d.Synth.Close(h)
		readable, writable = opts.Read || !opts.Write, opts.Write || opts.Append
	} else {
		// The root handle is always opened readable so the existing bytes
		// are materialised for write-only and append opens too; the
		// FileObject's own Readable flag still follows opts.Read.
		rootOpts := opts
		rootOpts.Read = true
		h, err := d.Root.Open(path, rootOpts)
		if err != nil {
			return 0, err
		}
		meta, merr := d.Root.Metadata(path)
		if merr == nil {
			buf := make([]byte, meta.Size)
			n, _ := d.Root.Read(h, buf)
			bytes = buf[:n]
		}
		d.Root.Close(h)
		readable, writable = opts.Read, opts.Write || opts.Create || opts.Truncate || opts.Append
	}

	position := uint64(0)
	if opts.Append {
		position = uint64(len(bytes))
	}

	handle := d.Kernel.Objects.Insert(kernel.NewFileObject(&kernel.FileObject{
		Path: path, Position: position, Bytes: bytes, Readable: readable, Writable: writable,
	}))
	allocated := p.Files.Alloc(handle)
	return allocated, nil
}

// Close releases fd. If the underlying object's refcount drops to zero and
// it is a writable File, its buffered bytes are written back through the
// VFS before the handle is discarded (spec.md: "close ... triggers the VFS
// write-back path").
func (d *Dispatcher) Close(pid kernel.Pid, fd kernel.Fd) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrClose, pid, start, retErr) }()

	p, err := d.process(pid)
	if err != nil {
		return err
	}
	h, ok := p.Files.Remove(fd)
	if !ok {
		return kernel.New(kernel.ErrBadFd, "no such fd")
	}
	return d.Kernel.ReleaseHandle(h)
}

// Read reads from fd's buffered bytes at its current position.
func (d *Dispatcher) Read(pid kernel.Pid, fd kernel.Fd, buf []byte) (n int, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrRead, pid, start, retErr) }()

	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	h, ok := p.Files.Get(fd)
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "no such fd")
	}
	obj, ok := d.Kernel.Objects.Get(h)
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "handle released")
	}
	switch obj.Kind {
	case kernel.ObjectFile:
		f := obj.File
		if !f.Readable {
			return 0, kernel.New(kernel.ErrPermissionDenied, "file not opened for reading")
		}
		if f.Position >= uint64(len(f.Bytes)) {
			return 0, nil
		}
		c := copy(buf, f.Bytes[f.Position:])
		f.Position += uint64(c)
		return c, nil
	case kernel.ObjectPipe:
		if obj.Pipe.WriteEnd {
			return 0, kernel.New(kernel.ErrBadFd, "read on the write end of a pipe")
		}
		return obj.Pipe.State.Read(buf)
	case kernel.ObjectConsole:
		return obj.Console.ReadInput(buf), nil
	default:
		return 0, kernel.New(kernel.ErrBadFd, "fd does not refer to a readable object")
	}
}

// Write writes buf into fd's buffered bytes, extending with zero-fill past
// the current length as needed (spec.md's "Position semantics").
func (d *Dispatcher) Write(pid kernel.Pid, fd kernel.Fd, buf []byte) (n int, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrWrite, pid, start, retErr) }()

	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	h, ok := p.Files.Get(fd)
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "no such fd")
	}
	obj, ok := d.Kernel.Objects.Get(h)
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "handle released")
	}
	switch obj.Kind {
	case kernel.ObjectFile:
		f := obj.File
		if !f.Writable {
			return 0, kernel.New(kernel.ErrPermissionDenied, "file not opened for writing")
		}
		end := f.Position + uint64(len(buf))
		if end > uint64(len(f.Bytes)) {
			grown := make([]byte, end)
			copy(grown, f.Bytes)
			f.Bytes = grown
		}
		copy(f.Bytes[f.Position:end], buf)
		f.Position = end
		return len(buf), nil
	case kernel.ObjectPipe:
		if !obj.Pipe.WriteEnd {
			return 0, kernel.New(kernel.ErrBadFd, "write on the read end of a pipe")
		}
		return obj.Pipe.State.Write(buf)
	case kernel.ObjectConsole:
		return obj.Console.WriteOutput(buf), nil
	default:
		return 0, kernel.New(kernel.ErrBadFd, "fd does not refer to a writable object")
	}
}

// Seek repositions fd.
func (d *Dispatcher) Seek(pid kernel.Pid, fd kernel.Fd, whence vfs.SeekWhence, offset int64) (pos uint64, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSeek, pid, start, retErr) }()

	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	h, ok := p.Files.Get(fd)
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "no such fd")
	}
	obj, ok := d.Kernel.Objects.Get(h)
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "handle released")
	}
	if obj.Kind != kernel.ObjectFile {
		return 0, kernel.New(kernel.ErrInvalidArgument, "object is not seekable")
	}
	f := obj.File
	var base int64
	switch whence {
	case vfs.SeekStart:
		base = 0
	case vfs.SeekEnd:
		base = int64(len(f.Bytes))
	case vfs.SeekCurrent:
		base = int64(f.Position)
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, kernel.New(kernel.ErrInvalidArgument, "seek position would be negative")
	}
	f.Position = uint64(newPos)
	return f.Position, nil
}

// Dup retains fd's handle and binds it to a new, lowest-free fd (spec.md's
// F4 dup semantics).
func (d *Dispatcher) Dup(pid kernel.Pid, fd kernel.Fd) (newFd kernel.Fd, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrDup, pid, start, retErr) }()

	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	h, ok := p.Files.Get(fd)
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "no such fd")
	}
	d.Kernel.Objects.Retain(h)
	return p.Files.Alloc(h), nil
}

// Pipe creates an in-memory pipe and returns read and write fds, each
// bound to its own end object over the shared bounded buffer. Closing one
// fd shuts just that end, so a write after the last read fd closes fails
// BrokenPipe and a read after the last write fd closes reads EOF.
func (d *Dispatcher) Pipe(pid kernel.Pid, capacity int) (readFd, writeFd kernel.Fd, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrPipe, pid, start, retErr) }()

	p, err := d.process(pid)
	if err != nil {
		return 0, 0, err
	}
	if capacity <= 0 {
		return 0, 0, kernel.New(kernel.ErrInvalidArgument, "pipe capacity must be positive")
	}
	state := &kernel.PipeState{Capacity: capacity, ReadEndOpen: true, WriteEndOpen: true}
	rh := d.Kernel.Objects.Insert(kernel.NewPipeObject(&kernel.PipeObject{State: state}))
	wh := d.Kernel.Objects.Insert(kernel.NewPipeObject(&kernel.PipeObject{State: state, WriteEnd: true}))
	return p.Files.Alloc(rh), p.Files.Alloc(wh), nil
}

// --- filesystem category -------------------------------------------------

func (d *Dispatcher) Metadata(pid kernel.Pid, path string) (m vfs.Metadata, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrMetadata, pid, start, retErr) }()
	path = resolveSelf(path, pid)
	if syntheticfs.Owns(path) {
		return d.Synth.Metadata(path)
	}
	return d.Root.Metadata(path)
}

func (d *Dispatcher) Exists(pid kernel.Pid, path string) bool {
	start := time.Now()
	defer d.trace(NrExists, pid, start, nil)
	path = resolveSelf(path, pid)
	if syntheticfs.Owns(path) {
		return d.Synth.Exists(path)
	}
	return d.Root.Exists(path)
}

func (d *Dispatcher) CreateDir(pid kernel.Pid, path string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrCreateDir, pid, start, retErr) }()
	return d.Root.CreateDir(path)
}

func (d *Dispatcher) ReadDir(pid kernel.Pid, path string) (entries []vfs.DirEntry, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrReadDir, pid, start, retErr) }()
	path = resolveSelf(path, pid)
	if syntheticfs.Owns(path) {
		return d.Synth.ReadDir(path)
	}
	return d.Root.ReadDir(path)
}

func (d *Dispatcher) RemoveFile(pid kernel.Pid, path string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrRemoveFile, pid, start, retErr) }()
	return d.Root.RemoveFile(path)
}

func (d *Dispatcher) RemoveDir(pid kernel.Pid, path string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrRemoveDir, pid, start, retErr) }()
	if path == "/" {
		return kernel.New(kernel.ErrPermissionDenied, "cannot remove root")
	}
	return d.Root.RemoveDir(path)
}

func (d *Dispatcher) Rename(pid kernel.Pid, from, to string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrRename, pid, start, retErr) }()
	return d.Root.Rename(from, to)
}

func (d *Dispatcher) CopyFile(pid kernel.Pid, from, to string) (n uint64, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrCopyFile, pid, start, retErr) }()
	return d.Root.CopyFile(from, to)
}

func (d *Dispatcher) Symlink(pid kernel.Pid, target, linkPath string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSymlink, pid, start, retErr) }()
	return d.Root.Symlink(target, linkPath)
}

func (d *Dispatcher) ReadLink(pid kernel.Pid, path string) (target string, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrReadLink, pid, start, retErr) }()
	return d.Root.ReadLink(path)
}

func (d *Dispatcher) Chmod(pid kernel.Pid, path string, mode uint16) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrChmod, pid, start, retErr) }()
	return d.Root.Chmod(path, mode)
}

func (d *Dispatcher) Chown(pid kernel.Pid, path string, uid *kernel.Uid, gid *kernel.Gid) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrChown, pid, start, retErr) }()
	return d.Root.Chown(path, uid, gid)
}

// --- process category -----------------------------------------------------

func (d *Dispatcher) SpawnProcess(callerPid kernel.Pid, name string) (child *kernel.Process, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSpawnProcess, callerPid, start, retErr) }()
	return d.Kernel.SpawnChildProcess(name, callerPid)
}

func (d *Dispatcher) Exit(pid kernel.Pid, code int32) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrExit, pid, start, retErr) }()
	return d.Kernel.Processes.Exit(pid, code)
}

func (d *Dispatcher) Waitpid(pid kernel.Pid, pidSpec int32, flags kernel.WaitFlags) (res kernel.WaitResult, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrWaitpid, pid, start, retErr) }()
	return d.Kernel.Processes.Waitpid(pid, pidSpec, flags)
}

func (d *Dispatcher) Kill(pid kernel.Pid, target kernel.Pid, sig kernel.Signal) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrKill, pid, start, retErr) }()
	return d.Kernel.Processes.Kill(target, sig)
}

func (d *Dispatcher) Getpid(pid kernel.Pid) (kernel.Pid, error) {
	start := time.Now()
	defer d.trace(NrGetpid, pid, start, nil)
	if _, err := d.process(pid); err != nil {
		return 0, err
	}
	return pid, nil
}

func (d *Dispatcher) Getppid(pid kernel.Pid) (ppid kernel.Pid, hasParent bool, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrGetppid, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, false, err
	}
	if p.Ppid == nil {
		return 0, false, nil
	}
	return *p.Ppid, true, nil
}

// --- environment category ---------------------------------------------------

func (d *Dispatcher) Getenv(pid kernel.Pid, key string) (value string, ok bool, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrGetenv, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return "", false, err
	}
	v, ok := p.Environ[key]
	return v, ok, nil
}

func (d *Dispatcher) Setenv(pid kernel.Pid, key, value string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSetenv, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	p.Environ[key] = value
	return nil
}

func (d *Dispatcher) Unsetenv(pid kernel.Pid, key string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrUnsetenv, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	delete(p.Environ, key)
	return nil
}

func (d *Dispatcher) Getcwd(pid kernel.Pid) (cwd string, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrGetcwd, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return "", err
	}
	return p.Cwd, nil
}

func (d *Dispatcher) Chdir(pid kernel.Pid, path string) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrChdir, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	norm, err := vfs.Normalize(path)
	if err != nil {
		return err
	}
	meta, err := d.Root.Metadata(norm)
	if err != nil {
		return err
	}
	if !meta.IsDir {
		return kernel.New(kernel.ErrNotADirectory, "not a directory: "+norm)
	}
	p.Cwd = norm
	return nil
}

// --- memory category ---------------------------------------------------

func (d *Dispatcher) MemAlloc(pid kernel.Pid, size uint64, prot kernel.Protection) (id kernel.RegionId, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrMemAlloc, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Memory.Alloc(size, prot)
}

func (d *Dispatcher) MemFree(pid kernel.Pid, id kernel.RegionId) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrMemFree, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	return p.Memory.Free(id)
}

func (d *Dispatcher) MemRead(pid kernel.Pid, id kernel.RegionId, offset uint64, buf []byte) (n int, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrMemRead, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Memory.Read(id, offset, buf)
}

func (d *Dispatcher) MemWrite(pid kernel.Pid, id kernel.RegionId, offset uint64, buf []byte) (n int, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrMemWrite, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Memory.Write(id, offset, buf)
}

func (d *Dispatcher) Shmget(pid kernel.Pid, size uint64) (id kernel.ShmId, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrShmget, pid, start, retErr) }()
	if _, err := d.process(pid); err != nil {
		return 0, err
	}
	return d.Kernel.Shm.Shmget(size, pid), nil
}

func (d *Dispatcher) Shmat(pid kernel.Pid, id kernel.ShmId, prot kernel.Protection) (rid kernel.RegionId, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrShmat, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return d.Kernel.Shm.Shmat(id, prot, p.Memory, pid)
}

func (d *Dispatcher) Shmdt(pid kernel.Pid, id kernel.ShmId) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrShmdt, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	return d.Kernel.Shm.Shmdt(id, p.Memory, pid)
}

func (d *Dispatcher) ShmSync(pid kernel.Pid, id kernel.ShmId) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrShmSync, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	return d.Kernel.Shm.ShmSync(id, p.Memory)
}

func (d *Dispatcher) ShmRefresh(pid kernel.Pid, id kernel.ShmId) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrShmRefresh, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	return d.Kernel.Shm.ShmRefresh(id, p.Memory)
}

// --- signals category ---------------------------------------------------

func (d *Dispatcher) SigSend(callerPid, target kernel.Pid, sig kernel.Signal) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSigSend, callerPid, start, retErr) }()
	return d.Kernel.Processes.Kill(target, sig)
}

func (d *Dispatcher) SigBlock(pid kernel.Pid, sig kernel.Signal) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSigBlock, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	return p.Signals.Block(sig)
}

func (d *Dispatcher) SigUnblock(pid kernel.Pid, sig kernel.Signal) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSigUnblock, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	p.Signals.Unblock(sig)
	return nil
}

func (d *Dispatcher) SigSetDisposition(pid kernel.Pid, sig kernel.Signal, disp kernel.Disposition) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSigSetDisposition, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return err
	}
	return p.Signals.SetDisposition(sig, disp)
}

func (d *Dispatcher) ProcessSignals(pid kernel.Pid) (sig kernel.Signal, disp kernel.Disposition, delivered bool, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrSigProcess, pid, start, retErr) }()
	return d.Kernel.Processes.ProcessSignals(pid)
}

// --- timers category ---------------------------------------------------

func (d *Dispatcher) TimerSchedule(pid kernel.Pid, delayMs float64, wake *kernel.TaskId) (id kernel.TimerId, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrTimerSchedule, pid, start, retErr) }()
	return d.Kernel.Timers.Schedule(delayMs, d.Kernel.Now(), wake), nil
}

func (d *Dispatcher) TimerScheduleInterval(pid kernel.Pid, periodMs float64, wake *kernel.TaskId) (id kernel.TimerId, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrTimerScheduleInterval, pid, start, retErr) }()
	if periodMs <= 0 {
		return 0, kernel.New(kernel.ErrInvalidArgument, "period_ms must be > 0")
	}
	return d.Kernel.Timers.ScheduleInterval(periodMs, d.Kernel.Now(), wake), nil
}

func (d *Dispatcher) TimerCancel(pid kernel.Pid, id kernel.TimerId) (cancelled bool) {
	start := time.Now()
	defer d.trace(NrTimerCancel, pid, start, nil)
	return d.Kernel.Timers.Cancel(id)
}

func (d *Dispatcher) Alarm(pid kernel.Pid, delayMs float64, wake *kernel.TaskId) (id kernel.TimerId, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrAlarm, pid, start, retErr) }()
	if delayMs < 0 {
		return 0, kernel.New(kernel.ErrInvalidArgument, "delay must be non-negative")
	}
	return d.Kernel.Alarm(pid, delayMs, wake), nil
}

// --- ioctl category ---------------------------------------------------

func (d *Dispatcher) consoleObject() (*kernel.ConsoleObject, error) {
	if c := d.Kernel.Console(); c != nil {
		return c, nil
	}
	return nil, kernel.New(kernel.ErrBadFd, "console object missing")
}

// IoctlGetWinsize returns the shared console's current terminal size.
func (d *Dispatcher) IoctlGetWinsize(pid kernel.Pid) (rows, cols uint16, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrIoctlGetWinsize, pid, start, retErr) }()
	c, err := d.consoleObject()
	if err != nil {
		return 0, 0, err
	}
	return c.Rows, c.Cols, nil
}

// IoctlSetWinsize updates the shared console's terminal size, as reported
// by a host adapter resize event.
func (d *Dispatcher) IoctlSetWinsize(pid kernel.Pid, rows, cols uint16) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrIoctlSetWinsize, pid, start, retErr) }()
	c, err := d.consoleObject()
	if err != nil {
		return err
	}
	c.Rows, c.Cols = rows, cols
	return nil
}

// IoctlFlush discards the console's queued input and output bytes.
func (d *Dispatcher) IoctlFlush(pid kernel.Pid) (retErr error) {
	start := time.Now()
	defer func() { d.trace(NrIoctlFlush, pid, start, retErr) }()
	c, err := d.consoleObject()
	if err != nil {
		return err
	}
	c.InputQueue = c.InputQueue[:0]
	c.OutputQueue = c.OutputQueue[:0]
	return nil
}

// --- tracing category ---------------------------------------------------

func (d *Dispatcher) TraceSetEnabled(pid kernel.Pid, enabled bool) {
	start := time.Now()
	defer d.trace(NrTraceSetEnabled, pid, start, nil)
	d.Kernel.Tracer.SetEnabled(enabled)
}

func (d *Dispatcher) TraceSummary(pid kernel.Pid) []kernel.TraceSummary {
	start := time.Now()
	defer d.trace(NrTraceSummary, pid, start, nil)
	return d.Kernel.Tracer.Summary()
}

// --- users/security category ---------------------------------------------

func (d *Dispatcher) Getuid(pid kernel.Pid) (uid kernel.Uid, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrGetuid, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Uid, nil
}

func (d *Dispatcher) Geteuid(pid kernel.Pid) (uid kernel.Uid, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrGeteuid, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Euid, nil
}

func (d *Dispatcher) Getgid(pid kernel.Pid) (gid kernel.Gid, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrGetgid, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Gid, nil
}

func (d *Dispatcher) Getegid(pid kernel.Pid) (gid kernel.Gid, retErr error) {
	start := time.Now()
	defer func() { d.trace(NrGetegid, pid, start, retErr) }()
	p, err := d.process(pid)
	if err != nil {
		return 0, err
	}
	return p.Egid, nil
}

func (d *Dispatcher) LookupUser(pid kernel.Pid, uid kernel.Uid) (u kernel.User, ok bool) {
	start := time.Now()
	defer d.trace(NrLookupUser, pid, start, nil)
	return d.Kernel.Users.LookupUser(uid)
}

func (d *Dispatcher) LookupGroup(pid kernel.Pid, gid kernel.Gid) (g kernel.Group, ok bool) {
	start := time.Now()
	defer d.trace(NrLookupGroup, pid, start, nil)
	return d.Kernel.Users.LookupGroup(gid)
}

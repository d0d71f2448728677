// Package syntheticfs generates the content served under /proc, /dev, and
// /sys: paths intercepted by the kernel ahead of the ordinary VFS lookup
// and produced fresh from live kernel state on every access (spec.md
// §4.7). None of these three namespaces is backed by vfs.FileSystem nodes
// — they behave like one from the caller's point of view, but content is
// synthesised rather than stored.
package syntheticfs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
	"github.com/axeberg/axebergos-sub000/pkg/vfs"
)

// Handle identifies an open synthetic file: a snapshot of generator output
// taken at open time, consumed by subsequent reads (spec.md: "subsequent
// reads consume from that snapshot").
type Handle uint64

type openSnapshot struct {
	bytes    []byte
	position uint64
	writable bool
}

// Clock supplies the monotonic time backing /proc/uptime.
type Clock interface {
	UptimeSeconds() float64
}

// Xorshift64 is a host-seeded, non-cryptographic PRNG backing
// /dev/random and /dev/urandom (spec.md: "sufficient for the simulated
// environment, not cryptographic").
type Xorshift64 struct{ state uint64 }

// NewXorshift64 seeds the generator; a zero seed is promoted to a fixed
// nonzero constant since xorshift64 cannot recover from a zero state.
func NewXorshift64(seed uint64) *Xorshift64 {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &Xorshift64{state: seed}
}

func (x *Xorshift64) next() uint64 {
	x.state ^= x.state << 13
	x.state ^= x.state >> 7
	x.state ^= x.state << 17
	return x.state
}

// Fill writes pseudo-random bytes into buf.
func (x *Xorshift64) Fill(buf []byte) {
	for i := 0; i < len(buf); {
		v := x.next()
		for b := 0; b < 8 && i < len(buf); b++ {
			buf[i] = byte(v >> (8 * b))
			i++
		}
	}
}

// SyntheticFS serves /proc, /dev, and /sys. It is not a vfs.FileSystem
// (the generator-snapshot lifecycle and the device read/write rules don't
// fit that interface cleanly), but mirrors its method shapes closely
// enough for the syscall dispatch layer to bridge the two.
type SyntheticFS struct {
	Kernel  *kernel.Kernel
	Clock   Clock
	Rand    *Xorshift64
	Boot    time.Time
	Hostname string

	handles map[Handle]*openSnapshot
	nextID  Handle
}

// New creates a SyntheticFS bound to k.
func New(k *kernel.Kernel, clock Clock, hostname string) *SyntheticFS {
	return &SyntheticFS{
		Kernel:   k,
		Clock:    clock,
		Rand:     NewXorshift64(0xA5A5A5A5),
		Hostname: hostname,
		handles:  make(map[Handle]*openSnapshot),
	}
}

// Prefixes is the set of path prefixes this layer intercepts ahead of the
// ordinary VFS lookup.
func Prefixes() []string { return []string{"/proc", "/dev", "/sys"} }

// Owns reports whether path falls under one of the synthetic namespaces.
func Owns(path string) bool {
	for _, p := range Prefixes() {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (s *SyntheticFS) procContent(path string) ([]byte, bool) {
	switch {
	case path == "/proc/uptime":
		up := 0.0
		if s.Clock != nil {
			up = s.Clock.UptimeSeconds()
		}
		return []byte(fmt.Sprintf("%.2f %.2f\n", up, up)), true
	case path == "/proc/meminfo":
		return []byte(s.meminfo()), true
	case path == "/proc/cpuinfo":
		return []byte("processor\t: 0\nvendor_id\t: axeberg\nmodel name\t: cooperative virtual cpu\n"), true
	case path == "/proc/version":
		return []byte(fmt.Sprintf("axebergos version 1 (%s)\n", s.Hostname)), true
	case path == "/proc/self/status", path == "/proc/self/cmdline", path == "/proc/self/environ":
		return nil, false // resolved by the syscall layer, which knows the calling pid
	}
	if rest := strings.TrimPrefix(path, "/proc/"); rest != path {
		parts := strings.SplitN(rest, "/", 2)
		if pid, err := strconv.ParseUint(parts[0], 10, 32); err == nil && len(parts) == 2 {
			return s.procPid(kernel.Pid(pid), parts[1])
		}
	}
	return nil, false
}

func (s *SyntheticFS) meminfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MemTotal:   %10d kB\n", 1<<20)
	fmt.Fprintf(&b, "MemFree:    %10d kB\n", 1<<19)
	return b.String()
}

func (s *SyntheticFS) procPid(pid kernel.Pid, leaf string) ([]byte, bool) {
	p, ok := s.Kernel.Processes.Get(pid)
	if !ok {
		return nil, false
	}
	switch leaf {
	case "status":
		return []byte(s.procStatus(p)), true
	case "cmdline":
		return []byte(p.Name + "\x00"), true
	case "environ":
		var b strings.Builder
		keys := make([]string, 0, len(p.Environ))
		for k := range p.Environ {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%s\x00", k, p.Environ[k])
		}
		return []byte(b.String()), true
	}
	return nil, false
}

func (s *SyntheticFS) procStatus(p *kernel.Process) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:\t%s\n", p.Name)
	fmt.Fprintf(&b, "Pid:\t%d\n", p.Pid)
	if p.Ppid != nil {
		fmt.Fprintf(&b, "PPid:\t%d\n", *p.Ppid)
	} else {
		fmt.Fprintf(&b, "PPid:\t0\n")
	}
	fmt.Fprintf(&b, "Uid:\t%d\t%d\n", p.Uid, p.Euid)
	fmt.Fprintf(&b, "Gid:\t%d\t%d\n", p.Gid, p.Egid)
	if u, ok := s.Kernel.Users.LookupUser(p.Uid); ok {
		fmt.Fprintf(&b, "User:\t%s\n", u.Name)
	}
	return b.String()
}

func (s *SyntheticFS) devContent(path string, opts vfs.OpenOptions) ([]byte, bool, error) {
	switch strings.TrimPrefix(path, "/dev/") {
	case "null":
		return nil, opts.Write || opts.Append, nil
	case "zero":
		return nil, false, nil
	case "random", "urandom":
		return nil, false, nil
	case "console":
		return nil, true, nil
	}
	return nil, false, kernel.New(kernel.ErrNotFound, "no such device: "+path)
}

func (s *SyntheticFS) sysContent(path string) ([]byte, bool) {
	switch strings.TrimPrefix(path, "/sys/") {
	case "hostname":
		return []byte(s.Hostname + "\n"), true
	case "ostype":
		return []byte("axebergos\n"), true
	case "kernel_version":
		return []byte("1\n"), true
	}
	return nil, false
}

// Open produces a content snapshot for path and returns a handle over it.
// readDeviceLen bounds how many pseudo-random/zero bytes a /dev/zero,
// /dev/random, or /dev/urandom read can serve before reporting EOF-like
// exhaustion; callers reading a true character device in a loop should
// pass a generous bound (e.g. 1<<20) since these devices are conceptually
// infinite.
func (s *SyntheticFS) Open(path string, opts vfs.OpenOptions, readDeviceLen int) (Handle, error) {
	path, err := vfs.Normalize(path)
	if err != nil {
		return 0, err
	}

	var content []byte
	writable := false

	switch {
	case strings.HasPrefix(path, "/proc"):
		c, ok := s.procContent(path)
		if !ok {
			return 0, kernel.New(kernel.ErrNotFound, "no such proc entry: "+path)
		}
		content = c
	case strings.HasPrefix(path, "/dev"):
		c, w, err := s.devContent(path, opts)
		if err != nil {
			return 0, err
		}
		writable = w
		switch strings.TrimPrefix(path, "/dev/") {
		case "zero":
			content = make([]byte, readDeviceLen)
		case "random", "urandom":
			content = make([]byte, readDeviceLen)
			s.Rand.Fill(content)
		default:
			content = c
		}
	case strings.HasPrefix(path, "/sys"):
		c, ok := s.sysContent(path)
		if !ok {
			return 0, kernel.New(kernel.ErrNotFound, "no such sysfs entry: "+path)
		}
		content = c
	default:
		return 0, kernel.New(kernel.ErrNotFound, "not a synthetic path: "+path)
	}

	if (opts.Write || opts.Append) && !writable {
		return 0, kernel.New(kernel.ErrPermissionDenied, "synthetic path is read-only: "+path)
	}

	s.nextID++
	id := s.nextID
	s.handles[id] = &openSnapshot{bytes: content, writable: writable}
	return id, nil
}

// Read consumes from the snapshot taken at Open time.
func (s *SyntheticFS) Read(h Handle, buf []byte) (int, error) {
	os, ok := s.handles[h]
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "invalid synthetic file handle")
	}
	if os.position >= uint64(len(os.bytes)) {
		return 0, nil
	}
	n := copy(buf, os.bytes[os.position:])
	os.position += uint64(n)
	return n, nil
}

// Write discards bytes written to /dev/null or /dev/console. The syscall
// layer never opens /dev/console through this package: it binds the
// shared ConsoleObject directly, so console output does not pass here.
func (s *SyntheticFS) Write(h Handle, buf []byte) (int, error) {
	os, ok := s.handles[h]
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "invalid synthetic file handle")
	}
	if !os.writable {
		return 0, kernel.New(kernel.ErrPermissionDenied, "synthetic path is read-only")
	}
	return len(buf), nil
}

// Close releases h.
func (s *SyntheticFS) Close(h Handle) error {
	if _, ok := s.handles[h]; !ok {
		return kernel.New(kernel.ErrBadFd, "invalid synthetic file handle")
	}
	delete(s.handles, h)
	return nil
}

var devNames = []string{"console", "null", "random", "urandom", "zero"}
var sysNames = []string{"hostname", "kernel_version", "ostype"}
var procPidLeaves = []string{"cmdline", "environ", "status"}

// ReadDir enumerates a synthetic directory: the fixed /dev and /sys
// namespaces, /proc's static entries plus one numbered directory per live
// process, and the per-pid leaf files.
func (s *SyntheticFS) ReadDir(path string) ([]vfs.DirEntry, error) {
	path, err := vfs.Normalize(path)
	if err != nil {
		return nil, err
	}
	switch path {
	case "/dev":
		return fileEntries(devNames), nil
	case "/sys":
		return fileEntries(sysNames), nil
	case "/proc":
		out := []vfs.DirEntry{
			{Name: "cpuinfo"}, {Name: "meminfo"},
			{Name: "self", IsDir: true}, {Name: "uptime"}, {Name: "version"},
		}
		for _, p := range s.Kernel.Processes.All() {
			out = append(out, vfs.DirEntry{Name: strconv.FormatUint(uint64(p.Pid), 10), IsDir: true})
		}
		return out, nil
	}
	if rest := strings.TrimPrefix(path, "/proc/"); rest != path && !strings.Contains(rest, "/") {
		if pid, err := strconv.ParseUint(rest, 10, 32); err == nil {
			if _, ok := s.Kernel.Processes.Get(kernel.Pid(pid)); ok {
				return fileEntries(procPidLeaves), nil
			}
		}
	}
	return nil, kernel.New(kernel.ErrNotFound, "no such synthetic directory: "+path)
}

func fileEntries(names []string) []vfs.DirEntry {
	out := make([]vfs.DirEntry, 0, len(names))
	for _, n := range names {
		out = append(out, vfs.DirEntry{Name: n})
	}
	return out
}

// Exists reports whether path names a synthetic file or directory.
func (s *SyntheticFS) Exists(path string) bool {
	_, err := s.Metadata(path)
	return err == nil
}

// Metadata produces size/type metadata for a synthetic path by generating
// its content, the same way Open would. Synthetic nodes are owned by root
// (uid/gid 0); directories are 0555, /proc and /sys files 0444, and /dev
// nodes 0666.
func (s *SyntheticFS) Metadata(path string) (vfs.Metadata, error) {
	path, err := vfs.Normalize(path)
	if err != nil {
		return vfs.Metadata{}, err
	}
	switch path {
	case "/proc", "/dev", "/sys":
		return vfs.Metadata{IsDir: true, Mode: 0o555}, nil
	}
	if _, err := s.ReadDir(path); err == nil {
		return vfs.Metadata{IsDir: true, Mode: 0o555}, nil
	}
	switch {
	case strings.HasPrefix(path, "/proc"):
		c, ok := s.procContent(path)
		if !ok {
			return vfs.Metadata{}, kernel.New(kernel.ErrNotFound, "no such proc entry: "+path)
		}
		return vfs.Metadata{Size: uint64(len(c)), IsFile: true, Mode: 0o444}, nil
	case strings.HasPrefix(path, "/dev"):
		if _, _, err := s.devContent(path, vfs.OpenOptions{}); err != nil {
			return vfs.Metadata{}, err
		}
		return vfs.Metadata{IsFile: true, Mode: 0o666}, nil
	case strings.HasPrefix(path, "/sys"):
		c, ok := s.sysContent(path)
		if !ok {
			return vfs.Metadata{}, kernel.New(kernel.ErrNotFound, "no such sysfs entry: "+path)
		}
		return vfs.Metadata{Size: uint64(len(c)), IsFile: true, Mode: 0o444}, nil
	}
	return vfs.Metadata{}, kernel.New(kernel.ErrNotFound, "not a synthetic path: "+path)
}

// Package vfs implements the in-memory base filesystem and the
// copy-on-write layered union filesystem on top of it (spec.md §4.6).
package vfs

import (
	"strings"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
)

// Limits on path shape, enforced by Normalize before any other VFS logic
// runs (spec.md §4.6 "Path normalisation").
const (
	MaxPathLen = 4096
	MaxNameLen = 255
)

// Handle identifies an open file within a single FileSystem.
type Handle uint64

// SeekWhence selects Seek's reference point.
type SeekWhence int

const (
	SeekStart SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// OpenOptions mirrors the original Rust OpenOptions builder (spec.md §4.6).
type OpenOptions struct {
	Read     bool
	Write    bool
	Create   bool
	Truncate bool
	Append   bool
}

// DefaultOpenOptions returns read-only options, matching the Rust
// prototype's Default impl.
func DefaultOpenOptions() OpenOptions { return OpenOptions{Read: true} }

// Metadata describes a node (spec.md §4.6).
type Metadata struct {
	Size          uint64
	IsDir         bool
	IsFile        bool
	IsSymlink     bool
	SymlinkTarget string
	Uid           kernel.Uid
	Gid           kernel.Gid
	Mode          uint16
}

// DefaultMetadata mirrors the Rust Default impl: a regular file owned by
// the default unprivileged user, mode 0644.
func DefaultMetadata() Metadata {
	return Metadata{IsFile: true, Uid: 1000, Gid: 1000, Mode: 0o644}
}

// DirEntry is one entry returned by ReadDir.
type DirEntry struct {
	Name      string
	IsDir     bool
	IsSymlink bool
}

// FileSystem is the operation set both MemoryFS and LayeredFS implement
// (spec.md §4.6). Both implementations normalise every path argument
// internally, so callers may pass unnormalised paths to any method.
type FileSystem interface {
	Open(path string, opts OpenOptions) (Handle, error)
	Close(h Handle) error
	Read(h Handle, buf []byte) (int, error)
	Write(h Handle, buf []byte) (int, error)
	Seek(h Handle, whence SeekWhence, offset int64) (uint64, error)

	Metadata(path string) (Metadata, error)
	Exists(path string) bool

	CreateDir(path string) error
	ReadDir(path string) ([]DirEntry, error)
	RemoveFile(path string) error
	RemoveDir(path string) error
	Rename(from, to string) error
	CopyFile(from, to string) (uint64, error)

	Symlink(target, linkPath string) error
	ReadLink(path string) (string, error)

	Chmod(path string, mode uint16) error
	Chown(path string, uid *kernel.Uid, gid *kernel.Gid) error
}

// Normalize validates and normalises path per spec.md §4.6: ensure a
// leading '/', resolve '.'/'..', collapse "//", strip trailing '/' except
// at root, and reject paths/components that exceed the configured limits
// or contain a null byte.
func Normalize(path string) (string, error) {
	if len(path) >= MaxPathLen {
		return "", kernel.New(kernel.ErrInvalidArgument, "path exceeds MAX_PATH_LEN")
	}
	if strings.IndexByte(path, 0) >= 0 {
		return "", kernel.New(kernel.ErrInvalidArgument, "path contains a null byte")
	}

	parts := strings.Split(path, "/")
	var stack []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			if len(p) > MaxNameLen {
				return "", kernel.New(kernel.ErrInvalidArgument, "path component exceeds MAX_NAME_LEN")
			}
			stack = append(stack, p)
		}
	}
	if len(stack) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(stack, "/"), nil
}

// SplitParent returns path's normalised parent directory and final
// component. The root's parent is the root itself with an empty name.
func SplitParent(path string) (parent, name string) {
	if path == "/" {
		return "/", ""
	}
	idx := strings.LastIndexByte(path, '/')
	name = path[idx+1:]
	if idx == 0 {
		parent = "/"
	} else {
		parent = path[:idx]
	}
	return parent, name
}

// ReadAll is the Go analogue of the Rust prototype's read_to_string
// convenience helper, generalised to bytes.
func ReadAll(fs FileSystem, path string) ([]byte, error) {
	h, err := fs.Open(path, OpenOptions{Read: true})
	if err != nil {
		return nil, err
	}
	defer fs.Close(h)
	meta, err := fs.Metadata(path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, meta.Size)
	n, err := fs.Read(h, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteAll is the Go analogue of the Rust prototype's write_string helper.
func WriteAll(fs FileSystem, path string, content []byte) error {
	h, err := fs.Open(path, OpenOptions{Write: true, Create: true, Truncate: true})
	if err != nil {
		return err
	}
	defer fs.Close(h)
	_, err = fs.Write(h, content)
	return err
}

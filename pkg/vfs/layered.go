package vfs

import (
	"strings"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
)

// WhiteoutPrefix marks a deleted path in the upper layer: removing `<name>`
// creates an empty file named `.wh.<name>` alongside it (spec.md §2
// "Glossary").
const WhiteoutPrefix = ".wh."

// OpaqueMarker, when present in a directory in upper, hides every lower
// descendant of that directory regardless of individual whiteouts.
const OpaqueMarker = ".wh..wh..opq"

type layer int

const (
	layerUpper layer = iota
	layerLower
)

type layeredHandle struct {
	inner Handle
	layer layer
}

// LayeredFS is a union mount of a read-only lower FileSystem and a
// writable upper FileSystem, implementing copy-on-write with whiteouts
// (spec.md §4.6.1).
type LayeredFS struct {
	upper, lower FileSystem
	handles      map[Handle]layeredHandle
	nextID       Handle
}

// NewLayeredFS composes lower (read-only) under upper (writable).
func NewLayeredFS(lower, upper FileSystem) *LayeredFS {
	return &LayeredFS{upper: upper, lower: lower, handles: make(map[Handle]layeredHandle)}
}

// NewLayeredFSWithBase composes lower under a fresh, empty MemoryFS upper.
func NewLayeredFSWithBase(lower FileSystem) *LayeredFS {
	return NewLayeredFS(lower, NewMemoryFS())
}

// Upper returns the writable overlay.
func (l *LayeredFS) Upper() FileSystem { return l.upper }

// Lower returns the read-only base.
func (l *LayeredFS) Lower() FileSystem { return l.lower }

func whiteoutPath(path string) string {
	parent, name := SplitParent(path)
	if parent == "/" {
		return "/" + WhiteoutPrefix + name
	}
	return parent + "/" + WhiteoutPrefix + name
}

func isWhiteoutName(name string) bool { return strings.HasPrefix(name, WhiteoutPrefix) }

func whiteoutOriginalName(name string) (string, bool) {
	if !isWhiteoutName(name) || name == OpaqueMarker {
		return "", false
	}
	return strings.TrimPrefix(name, WhiteoutPrefix), true
}

func opaquePath(dirPath string) string {
	if dirPath == "/" {
		return "/" + OpaqueMarker
	}
	return dirPath + "/" + OpaqueMarker
}

func (l *LayeredFS) isWhiteout(path string) bool { return l.upper.Exists(whiteoutPath(path)) }

func (l *LayeredFS) isOpaque(dirPath string) bool { return l.upper.Exists(opaquePath(dirPath)) }

// lowerHiddenByOpaque reports whether any strict ancestor directory of
// path carries the opaque marker in upper, hiding every lower-layer
// descendant of that directory.
func (l *LayeredFS) lowerHiddenByOpaque(path string) bool {
	for path != "/" {
		path, _ = SplitParent(path)
		if l.isOpaque(path) {
			return true
		}
	}
	return false
}

func (l *LayeredFS) findLayer(path string) (layer, bool) {
	if l.isWhiteout(path) {
		return 0, false
	}
	if l.upper.Exists(path) {
		return layerUpper, true
	}
	if l.lower.Exists(path) && !l.lowerHiddenByOpaque(path) {
		return layerLower, true
	}
	return 0, false
}

// ensureUpperPath recursively materialises path's ancestry in upper,
// copying directory nodes from lower where they exist there.
func (l *LayeredFS) ensureUpperPath(path string) error {
	if path == "/" || l.upper.Exists(path) {
		return nil
	}
	parent, _ := SplitParent(path)
	if err := l.ensureUpperPath(parent); err != nil {
		return err
	}
	if meta, err := l.lower.Metadata(path); err == nil && meta.IsDir {
		return l.upper.CreateDir(path)
	}
	if !l.upper.Exists(path) {
		return l.upper.CreateDir(path)
	}
	return nil
}

// copyUp copies path from lower into upper (file bytes, symlink target, or
// an empty directory), preserving permission metadata, per spec.md's
// "Write-through open" rule.
func (l *LayeredFS) copyUp(path string) error {
	if l.upper.Exists(path) {
		return nil
	}
	if !l.lower.Exists(path) {
		return kernel.New(kernel.ErrNotFound, "file not found: "+path)
	}

	parent, _ := SplitParent(path)
	if err := l.ensureUpperPath(parent); err != nil {
		return err
	}

	meta, err := l.lower.Metadata(path)
	if err != nil {
		return err
	}

	switch {
	case meta.IsDir:
		if !l.upper.Exists(path) {
			if err := l.upper.CreateDir(path); err != nil {
				return err
			}
		}
	case meta.IsSymlink:
		target, err := l.lower.ReadLink(path)
		if err != nil {
			return err
		}
		if err := l.upper.Symlink(target, path); err != nil {
			return err
		}
	default:
		data, err := ReadAll(l.lower, path)
		if err != nil {
			return err
		}
		if err := WriteAll(l.upper, path, data); err != nil {
			return err
		}
	}

	if err := l.upper.Chmod(path, meta.Mode); err != nil {
		return err
	}
	uid, gid := meta.Uid, meta.Gid
	return l.upper.Chown(path, &uid, &gid)
}

func (l *LayeredFS) createWhiteout(path string) error {
	wh := whiteoutPath(path)
	parent, _ := SplitParent(wh)
	if err := l.ensureUpperPath(parent); err != nil {
		return err
	}
	h, err := l.upper.Open(wh, OpenOptions{Write: true, Create: true})
	if err != nil {
		return err
	}
	return l.upper.Close(h)
}

func (l *LayeredFS) removeWhiteout(path string) error {
	wh := whiteoutPath(path)
	if l.upper.Exists(wh) {
		return l.upper.RemoveFile(wh)
	}
	return nil
}

// Open implements FileSystem.Open with copy-on-write semantics: a read-only
// open is routed to whichever layer actually holds the path; any open that
// can mutate the file (write, create, truncate, append) always lands on
// upper, copying the node up from lower first if that's where it lives
// (spec.md's "Write-through open" and "Create" rules).
func (l *LayeredFS) Open(path string, opts OpenOptions) (Handle, error) {
	path, err := Normalize(path)
	if err != nil {
		return 0, err
	}
	wantsWrite := opts.Write || opts.Create || opts.Truncate || opts.Append

	if l.isWhiteout(path) {
		if !opts.Create {
			return 0, kernel.New(kernel.ErrNotFound, "file not found: "+path)
		}
		if err := l.removeWhiteout(path); err != nil {
			return 0, err
		}
		parent, _ := SplitParent(path)
		if err := l.ensureUpperPath(parent); err != nil {
			return 0, err
		}
		return l.openOnUpper(path, opts)
	}

	lay, found := l.findLayer(path)

	if wantsWrite {
		if found && lay == layerLower {
			if err := l.copyUp(path); err != nil {
				return 0, err
			}
		} else if !found {
			if !opts.Create {
				return 0, kernel.New(kernel.ErrNotFound, "file not found: "+path)
			}
			parent, _ := SplitParent(path)
			if err := l.ensureUpperPath(parent); err != nil {
				return 0, err
			}
		}
		return l.openOnUpper(path, opts)
	}

	if !found {
		return 0, kernel.New(kernel.ErrNotFound, "file not found: "+path)
	}
	target := l.upper
	if lay == layerLower {
		target = l.lower
	}
	inner, err := target.Open(path, opts)
	if err != nil {
		return 0, err
	}
	l.nextID++
	id := l.nextID
	l.handles[id] = layeredHandle{inner: inner, layer: lay}
	return id, nil
}

func (l *LayeredFS) openOnUpper(path string, opts OpenOptions) (Handle, error) {
	inner, err := l.upper.Open(path, opts)
	if err != nil {
		return 0, err
	}
	l.nextID++
	id := l.nextID
	l.handles[id] = layeredHandle{inner: inner, layer: layerUpper}
	return id, nil
}

func (l *LayeredFS) resolve(h Handle) (FileSystem, Handle, error) {
	lh, ok := l.handles[h]
	if !ok {
		return nil, 0, kernel.New(kernel.ErrBadFd, "invalid file handle")
	}
	if lh.layer == layerLower {
		return l.lower, lh.inner, nil
	}
	return l.upper, lh.inner, nil
}

// Close implements FileSystem.Close.
func (l *LayeredFS) Close(h Handle) error {
	fs, inner, err := l.resolve(h)
	if err != nil {
		return err
	}
	delete(l.handles, h)
	return fs.Close(inner)
}

// Read implements FileSystem.Read.
func (l *LayeredFS) Read(h Handle, buf []byte) (int, error) {
	fs, inner, err := l.resolve(h)
	if err != nil {
		return 0, err
	}
	return fs.Read(inner, buf)
}

// Write implements FileSystem.Write. A handle resolved to the lower layer
// can never reach here with a writable open, since Open always routes
// write|create|truncate|append onto upper after copy-up; a caller handing
// back a lower-owned handle obtained read-only still gets the spec's
// guaranteed PermissionDenied.
func (l *LayeredFS) Write(h Handle, buf []byte) (int, error) {
	lh, ok := l.handles[h]
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "invalid file handle")
	}
	if lh.layer == layerLower {
		return 0, kernel.New(kernel.ErrPermissionDenied, "cannot write through a lower-layer handle")
	}
	return l.upper.Write(lh.inner, buf)
}

// Seek implements FileSystem.Seek.
func (l *LayeredFS) Seek(h Handle, whence SeekWhence, offset int64) (uint64, error) {
	fs, inner, err := l.resolve(h)
	if err != nil {
		return 0, err
	}
	return fs.Seek(inner, whence, offset)
}

// Metadata implements FileSystem.Metadata.
func (l *LayeredFS) Metadata(path string) (Metadata, error) {
	path, err := Normalize(path)
	if err != nil {
		return Metadata{}, err
	}
	lay, ok := l.findLayer(path)
	if !ok {
		return Metadata{}, kernel.New(kernel.ErrNotFound, "no such path: "+path)
	}
	if lay == layerLower {
		return l.lower.Metadata(path)
	}
	return l.upper.Metadata(path)
}

// Exists implements FileSystem.Exists.
func (l *LayeredFS) Exists(path string) bool {
	path, err := Normalize(path)
	if err != nil {
		return false
	}
	_, ok := l.findLayer(path)
	return ok
}

// CreateDir implements FileSystem.CreateDir.
func (l *LayeredFS) CreateDir(path string) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	if l.isWhiteout(path) {
		if err := l.removeWhiteout(path); err != nil {
			return err
		}
	} else if l.Exists(path) {
		return kernel.New(kernel.ErrAlreadyExists, "path already exists: "+path)
	}
	parent, _ := SplitParent(path)
	if err := l.ensureUpperPath(parent); err != nil {
		return err
	}
	return l.upper.CreateDir(path)
}

// ReadDir implements FileSystem.ReadDir: merge upper entries (skipping
// whiteout/opaque markers) with lower entries not already seen or
// whited-out, per spec.md's "read_dir" rule, hiding all of lower if path
// is marked opaque in upper.
func (l *LayeredFS) ReadDir(path string) ([]DirEntry, error) {
	path, err := Normalize(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	whited := make(map[string]bool)
	var out []DirEntry

	if l.upper.Exists(path) {
		upperEntries, err := l.upper.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range upperEntries {
			if e.Name == OpaqueMarker {
				continue
			}
			if orig, ok := whiteoutOriginalName(e.Name); ok {
				whited[orig] = true
				continue
			}
			seen[e.Name] = true
			out = append(out, e)
		}
	}

	if l.isOpaque(path) || l.lowerHiddenByOpaque(path) {
		if out == nil && !l.upper.Exists(path) {
			return nil, kernel.New(kernel.ErrNotFound, "no such directory: "+path)
		}
		return out, nil
	}

	if l.lower.Exists(path) {
		lowerEntries, err := l.lower.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range lowerEntries {
			if seen[e.Name] || whited[e.Name] {
				continue
			}
			out = append(out, e)
		}
	} else if out == nil {
		return nil, kernel.New(kernel.ErrNotFound, "no such directory: "+path)
	}

	return out, nil
}

// RemoveFile implements FileSystem.RemoveFile.
func (l *LayeredFS) RemoveFile(path string) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	existedInUpper := l.upper.Exists(path)
	if existedInUpper {
		if err := l.upper.RemoveFile(path); err != nil {
			return err
		}
	}
	if l.lower.Exists(path) {
		return l.createWhiteout(path)
	}
	if !existedInUpper {
		return kernel.New(kernel.ErrNotFound, "no such file: "+path)
	}
	return nil
}

// RemoveDir implements FileSystem.RemoveDir.
func (l *LayeredFS) RemoveDir(path string) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	existedInUpper := l.upper.Exists(path)
	if existedInUpper {
		if err := l.upper.RemoveDir(path); err != nil {
			return err
		}
	}
	if l.lower.Exists(path) {
		return l.createWhiteout(path)
	}
	if !existedInUpper {
		return kernel.New(kernel.ErrNotFound, "no such directory: "+path)
	}
	return nil
}

// Rename implements FileSystem.Rename: copy-up the source, ensure the
// destination's parent exists in upper, clear any whiteout at the
// destination, rename within upper, then whiteout the source if it also
// existed in lower (spec.md's "Rename" rule).
func (l *LayeredFS) Rename(from, to string) error {
	from, err := Normalize(from)
	if err != nil {
		return err
	}
	to, err = Normalize(to)
	if err != nil {
		return err
	}

	lay, ok := l.findLayer(from)
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such path: "+from)
	}
	existedInLower := l.lower.Exists(from)
	if lay == layerLower {
		if err := l.copyUp(from); err != nil {
			return err
		}
	}

	toParent, _ := SplitParent(to)
	if err := l.ensureUpperPath(toParent); err != nil {
		return err
	}
	if err := l.removeWhiteout(to); err != nil {
		return err
	}
	if err := l.upper.Rename(from, to); err != nil {
		return err
	}
	if existedInLower {
		return l.createWhiteout(from)
	}
	return nil
}

// CopyFile implements FileSystem.CopyFile.
func (l *LayeredFS) CopyFile(from, to string) (uint64, error) {
	data, err := ReadAll(l, from)
	if err != nil {
		return 0, err
	}
	if err := WriteAll(l, to, data); err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

// Symlink implements FileSystem.Symlink.
func (l *LayeredFS) Symlink(target, linkPath string) error {
	linkPath, err := Normalize(linkPath)
	if err != nil {
		return err
	}
	if l.isWhiteout(linkPath) {
		if err := l.removeWhiteout(linkPath); err != nil {
			return err
		}
	} else if l.Exists(linkPath) {
		return kernel.New(kernel.ErrAlreadyExists, "path already exists: "+linkPath)
	}
	parent, _ := SplitParent(linkPath)
	if err := l.ensureUpperPath(parent); err != nil {
		return err
	}
	return l.upper.Symlink(target, linkPath)
}

// ReadLink implements FileSystem.ReadLink.
func (l *LayeredFS) ReadLink(path string) (string, error) {
	path, err := Normalize(path)
	if err != nil {
		return "", err
	}
	lay, ok := l.findLayer(path)
	if !ok {
		return "", kernel.New(kernel.ErrNotFound, "no such path: "+path)
	}
	if lay == layerLower {
		return l.lower.ReadLink(path)
	}
	return l.upper.ReadLink(path)
}

// Chmod implements FileSystem.Chmod, triggering copy-up as needed.
func (l *LayeredFS) Chmod(path string, mode uint16) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	lay, ok := l.findLayer(path)
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such path: "+path)
	}
	if lay == layerLower {
		if err := l.copyUp(path); err != nil {
			return err
		}
	}
	return l.upper.Chmod(path, mode)
}

// Chown implements FileSystem.Chown, triggering copy-up as needed.
func (l *LayeredFS) Chown(path string, uid *kernel.Uid, gid *kernel.Gid) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	lay, ok := l.findLayer(path)
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such path: "+path)
	}
	if lay == layerLower {
		if err := l.copyUp(path); err != nil {
			return err
		}
	}
	return l.upper.Chown(path, uid, gid)
}

var _ FileSystem = (*LayeredFS)(nil)

package vfs

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
)

type nodeKind int

const (
	nodeFile nodeKind = iota
	nodeDir
	nodeSymlink
)

type node struct {
	kind   nodeKind
	bytes  []byte
	target string
}

type nodeMeta struct {
	uid  kernel.Uid
	gid  kernel.Gid
	mode uint16
}

func defaultFileMeta() nodeMeta { return nodeMeta{uid: 1000, gid: 1000, mode: 0o644} }
func defaultDirMeta() nodeMeta  { return nodeMeta{uid: 1000, gid: 1000, mode: 0o755} }
func rootDirMeta() nodeMeta     { return nodeMeta{uid: 0, gid: 0, mode: 0o755} }

type openFile struct {
	path     string
	position uint64
	readable bool
	writable bool
}

// SnapshotVersion is bumped whenever the wire shape of Snapshot changes.
// Restore accepts the current version and version 1 (the original format,
// predating per-node permission metadata), synthesising default metadata
// for every node when importing a v1 snapshot.
const SnapshotVersion = 2

// Snapshot is MemoryFS's persistable state (spec.md §4.6 "Snapshot/
// restore").
type Snapshot struct {
	Version uint32
	Nodes   map[string]SnapshotNode
}

// SnapshotNode is one path's persisted node.
type SnapshotNode struct {
	Kind          nodeKind
	Bytes         []byte
	SymlinkTarget string
	Uid           kernel.Uid
	Gid           kernel.Gid
	Mode          uint16
}

// MemoryFS is an in-memory tree filesystem: every node is keyed by its
// fully normalised path (spec.md §4.6 "base FS").
type MemoryFS struct {
	mu      sync.Mutex
	nodes   map[string]*node
	meta    map[string]nodeMeta
	handles map[Handle]*openFile
	nextID  Handle
}

// NewMemoryFS creates a filesystem containing only the root directory.
func NewMemoryFS() *MemoryFS {
	fs := &MemoryFS{
		nodes:   make(map[string]*node),
		meta:    make(map[string]nodeMeta),
		handles: make(map[Handle]*openFile),
	}
	fs.nodes["/"] = &node{kind: nodeDir}
	fs.meta["/"] = rootDirMeta()
	return fs
}

func (fs *MemoryFS) ensureParent(path string) error {
	parent, _ := SplitParent(path)
	if parent == "/" {
		return nil
	}
	if n, ok := fs.nodes[parent]; ok {
		if n.kind != nodeDir {
			return kernel.New(kernel.ErrNotADirectory, "parent is not a directory")
		}
		return nil
	}
	return kernel.New(kernel.ErrNotFound, "parent directory does not exist")
}

// Open implements FileSystem.Open.
func (fs *MemoryFS) Open(path string, opts OpenOptions) (Handle, error) {
	path, err := Normalize(path)
	if err != nil {
		return 0, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, exists := fs.nodes[path]
	if !exists && !opts.Create {
		return 0, kernel.New(kernel.ErrNotFound, "file not found: "+path)
	}
	if !exists {
		if err := fs.ensureParent(path); err != nil {
			return 0, err
		}
		n = &node{kind: nodeFile}
		fs.nodes[path] = n
		fs.meta[path] = defaultFileMeta()
	} else if opts.Truncate && n.kind == nodeFile {
		n.bytes = nil
	}

	n = fs.nodes[path]
	if n.kind == nodeDir {
		return 0, kernel.New(kernel.ErrIsADirectory, "cannot open directory as file")
	}

	fs.nextID++
	id := fs.nextID
	position := uint64(0)
	if opts.Append {
		position = uint64(len(n.bytes))
	}
	fs.handles[id] = &openFile{path: path, position: position, readable: opts.Read, writable: opts.Write || opts.Append}
	return id, nil
}

// Close implements FileSystem.Close.
func (fs *MemoryFS) Close(h Handle) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.handles[h]; !ok {
		return kernel.New(kernel.ErrBadFd, "invalid file handle")
	}
	delete(fs.handles, h)
	return nil
}

// Read implements FileSystem.Read.
func (fs *MemoryFS) Read(h Handle, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := fs.handles[h]
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "invalid file handle")
	}
	if !of.readable {
		return 0, kernel.New(kernel.ErrPermissionDenied, "file not opened for reading")
	}
	n, ok := fs.nodes[of.path]
	if !ok || n.kind != nodeFile {
		return 0, kernel.New(kernel.ErrNotFound, "file not found")
	}
	if of.position >= uint64(len(n.bytes)) {
		return 0, nil
	}
	c := copy(buf, n.bytes[of.position:])
	of.position += uint64(c)
	return c, nil
}

// Write implements FileSystem.Write, extending the file with zero bytes
// when position+len(buf) exceeds the current size (spec.md §4.6 "Position
// semantics").
func (fs *MemoryFS) Write(h Handle, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := fs.handles[h]
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "invalid file handle")
	}
	if !of.writable {
		return 0, kernel.New(kernel.ErrPermissionDenied, "file not opened for writing")
	}
	n, ok := fs.nodes[of.path]
	if !ok || n.kind != nodeFile {
		return 0, kernel.New(kernel.ErrNotFound, "file not found")
	}
	end := of.position + uint64(len(buf))
	if end > uint64(len(n.bytes)) {
		grown := make([]byte, end)
		copy(grown, n.bytes)
		n.bytes = grown
	}
	copy(n.bytes[of.position:end], buf)
	of.position = end
	return len(buf), nil
}

// Seek implements FileSystem.Seek.
func (fs *MemoryFS) Seek(h Handle, whence SeekWhence, offset int64) (uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := fs.handles[h]
	if !ok {
		return 0, kernel.New(kernel.ErrBadFd, "invalid file handle")
	}
	n, ok := fs.nodes[of.path]
	if !ok || n.kind != nodeFile {
		return 0, kernel.New(kernel.ErrNotFound, "file not found")
	}
	size := int64(len(n.bytes))

	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekEnd:
		base = size
	case SeekCurrent:
		base = int64(of.position)
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, kernel.New(kernel.ErrInvalidArgument, "seek position would be negative")
	}
	of.position = uint64(newPos)
	return of.position, nil
}

// Metadata implements FileSystem.Metadata.
func (fs *MemoryFS) Metadata(path string) (Metadata, error) {
	path, err := Normalize(path)
	if err != nil {
		return Metadata{}, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[path]
	if !ok {
		return Metadata{}, kernel.New(kernel.ErrNotFound, "no such path: "+path)
	}
	m := fs.meta[path]
	out := Metadata{Uid: m.uid, Gid: m.gid, Mode: m.mode}
	switch n.kind {
	case nodeDir:
		out.IsDir = true
	case nodeSymlink:
		out.IsSymlink = true
		out.SymlinkTarget = n.target
	default:
		out.IsFile = true
		out.Size = uint64(len(n.bytes))
	}
	return out, nil
}

// Exists implements FileSystem.Exists.
func (fs *MemoryFS) Exists(path string) bool {
	path, err := Normalize(path)
	if err != nil {
		return false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.nodes[path]
	return ok
}

// CreateDir implements FileSystem.CreateDir.
func (fs *MemoryFS) CreateDir(path string) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.nodes[path]; exists {
		return kernel.New(kernel.ErrAlreadyExists, "path already exists: "+path)
	}
	if err := fs.ensureParent(path); err != nil {
		return err
	}
	fs.nodes[path] = &node{kind: nodeDir}
	fs.meta[path] = defaultDirMeta()
	return nil
}

// ReadDir implements FileSystem.ReadDir.
func (fs *MemoryFS) ReadDir(path string) ([]DirEntry, error) {
	path, err := Normalize(path)
	if err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dir, ok := fs.nodes[path]
	if !ok {
		return nil, kernel.New(kernel.ErrNotFound, "no such directory: "+path)
	}
	if dir.kind != nodeDir {
		return nil, kernel.New(kernel.ErrNotADirectory, "not a directory: "+path)
	}

	prefix := path
	if prefix != "/" {
		prefix += "/"
	}
	var entries []DirEntry
	for p, n := range fs.nodes {
		if p == path || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if strings.ContainsRune(rest, '/') {
			continue
		}
		entries = append(entries, DirEntry{Name: rest, IsDir: n.kind == nodeDir, IsSymlink: n.kind == nodeSymlink})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// RemoveFile implements FileSystem.RemoveFile.
func (fs *MemoryFS) RemoveFile(path string) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[path]
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such file: "+path)
	}
	if n.kind == nodeDir {
		return kernel.New(kernel.ErrIsADirectory, "is a directory: "+path)
	}
	delete(fs.nodes, path)
	delete(fs.meta, path)
	return nil
}

// RemoveDir implements FileSystem.RemoveDir, only on empty directories.
func (fs *MemoryFS) RemoveDir(path string) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	if path == "/" {
		return kernel.New(kernel.ErrPermissionDenied, "cannot remove root")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[path]
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such directory: "+path)
	}
	if n.kind != nodeDir {
		return kernel.New(kernel.ErrNotADirectory, "not a directory: "+path)
	}
	prefix := path + "/"
	for p := range fs.nodes {
		if strings.HasPrefix(p, prefix) {
			return kernel.New(kernel.ErrInvalidArgument, "directory not empty")
		}
	}
	delete(fs.nodes, path)
	delete(fs.meta, path)
	return nil
}

// Rename implements FileSystem.Rename.
func (fs *MemoryFS) Rename(from, to string) error {
	from, err := Normalize(from)
	if err != nil {
		return err
	}
	to, err = Normalize(to)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[from]
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such path: "+from)
	}
	if err := fs.ensureParent(to); err != nil {
		return err
	}
	fs.nodes[to] = n
	fs.meta[to] = fs.meta[from]
	delete(fs.nodes, from)
	delete(fs.meta, from)
	return nil
}

// CopyFile implements FileSystem.CopyFile, returning the number of bytes
// copied.
func (fs *MemoryFS) CopyFile(from, to string) (uint64, error) {
	from, err := Normalize(from)
	if err != nil {
		return 0, err
	}
	to, err = Normalize(to)
	if err != nil {
		return 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	src, ok := fs.nodes[from]
	if !ok || src.kind != nodeFile {
		return 0, kernel.New(kernel.ErrNotFound, "no such file: "+from)
	}
	if err := fs.ensureParent(to); err != nil {
		return 0, err
	}
	data := append([]byte(nil), src.bytes...)
	fs.nodes[to] = &node{kind: nodeFile, bytes: data}
	fs.meta[to] = fs.meta[from]
	return uint64(len(data)), nil
}

// Symlink implements FileSystem.Symlink.
func (fs *MemoryFS) Symlink(target, linkPath string) error {
	linkPath, err := Normalize(linkPath)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.nodes[linkPath]; exists {
		return kernel.New(kernel.ErrAlreadyExists, "path already exists: "+linkPath)
	}
	if err := fs.ensureParent(linkPath); err != nil {
		return err
	}
	fs.nodes[linkPath] = &node{kind: nodeSymlink, target: target}
	fs.meta[linkPath] = defaultFileMeta()
	return nil
}

// ReadLink implements FileSystem.ReadLink.
func (fs *MemoryFS) ReadLink(path string) (string, error) {
	path, err := Normalize(path)
	if err != nil {
		return "", err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[path]
	if !ok || n.kind != nodeSymlink {
		return "", kernel.New(kernel.ErrInvalidArgument, "not a symlink: "+path)
	}
	return n.target, nil
}

// Chmod implements FileSystem.Chmod.
func (fs *MemoryFS) Chmod(path string, mode uint16) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.meta[path]
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such path: "+path)
	}
	m.mode = mode
	fs.meta[path] = m
	return nil
}

// Chown implements FileSystem.Chown.
func (fs *MemoryFS) Chown(path string, uid *kernel.Uid, gid *kernel.Gid) error {
	path, err := Normalize(path)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.meta[path]
	if !ok {
		return kernel.New(kernel.ErrNotFound, "no such path: "+path)
	}
	if uid != nil {
		m.uid = *uid
	}
	if gid != nil {
		m.gid = *gid
	}
	fs.meta[path] = m
	return nil
}

// Snapshot captures the full filesystem state for persistence.
func (fs *MemoryFS) Snapshot() Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := Snapshot{Version: SnapshotVersion, Nodes: make(map[string]SnapshotNode, len(fs.nodes))}
	for path, n := range fs.nodes {
		m := fs.meta[path]
		out.Nodes[path] = SnapshotNode{
			Kind:          n.kind,
			Bytes:         append([]byte(nil), n.bytes...),
			SymlinkTarget: n.target,
			Uid:           m.uid,
			Gid:           m.gid,
			Mode:          m.mode,
		}
	}
	return out
}

// Restore rebuilds a MemoryFS from snap, synthesising default metadata for
// any node a version-1 snapshot left unset.
func Restore(snap Snapshot) (*MemoryFS, error) {
	if snap.Version != SnapshotVersion && snap.Version != 1 {
		return nil, kernel.Newf(kernel.ErrInvalidData, "snapshot version mismatch: expected %d or 1, got %d", SnapshotVersion, snap.Version)
	}
	fs := &MemoryFS{
		nodes:   make(map[string]*node, len(snap.Nodes)),
		meta:    make(map[string]nodeMeta, len(snap.Nodes)),
		handles: make(map[Handle]*openFile),
	}
	for path, sn := range snap.Nodes {
		fs.nodes[path] = &node{kind: sn.Kind, bytes: append([]byte(nil), sn.Bytes...), target: sn.SymlinkTarget}
		if snap.Version == 1 || (sn.Mode == 0 && sn.Kind == nodeDir) {
			switch {
			case path == "/":
				fs.meta[path] = rootDirMeta()
			case sn.Kind == nodeDir:
				fs.meta[path] = defaultDirMeta()
			default:
				fs.meta[path] = defaultFileMeta()
			}
			continue
		}
		fs.meta[path] = nodeMeta{uid: sn.Uid, gid: sn.Gid, mode: sn.Mode}
	}
	if _, ok := fs.nodes["/"]; !ok {
		fs.nodes["/"] = &node{kind: nodeDir}
		fs.meta["/"] = rootDirMeta()
	}
	return fs, nil
}

// ToJSON serialises fs's Snapshot to JSON, the wire form the spec's
// original_source counterpart calls to_json.
func (fs *MemoryFS) ToJSON() ([]byte, error) {
	return json.Marshal(fs.Snapshot())
}

// RestoreFromJSON is the inverse of ToJSON (the original_source
// counterpart's from_json): it decodes a Snapshot and rebuilds a MemoryFS
// from it, subject to the same version compatibility Restore applies.
func RestoreFromJSON(data []byte) (*MemoryFS, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, kernel.Wrap(kernel.ErrInvalidData, err)
	}
	return Restore(snap)
}

var _ FileSystem = (*MemoryFS)(nil)

package kernel

import "sync"

// Handle is an opaque index into the process-wide object table.
type Handle uint64

// ObjectKind tags which variant an Object holds. KernelObject is modeled
// as an explicit tagged union (spec.md §9 "Dynamic dispatch / inheritance")
// rather than an interface with per-type implementations, since the set of
// kernel object variants is closed and small.
type ObjectKind int

const (
	ObjectFile ObjectKind = iota
	ObjectPipe
	ObjectConsole
	ObjectWindow
)

// FileObject backs a VFS-resident file opened through the object table.
type FileObject struct {
	Path      string
	Position  uint64
	Bytes     []byte
	Readable  bool
	Writable  bool
}

// PipeState is the bounded byte queue and end-liveness shared by both
// ends of a pipe. Each end is a separate PipeObject handle so close on
// one end can mark just that end shut.
type PipeState struct {
	Buffer       []byte
	Capacity     int
	ReadEndOpen  bool
	WriteEndOpen bool
}

// Read consumes up to len(buf) bytes from the front of the pipe. An empty
// pipe whose write end has closed reads as EOF (0, nil); an empty pipe
// with a live writer reports ErrWouldBlock so the caller can suspend and
// retry after a wake.
func (p *PipeState) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if len(p.Buffer) == 0 {
		if !p.WriteEndOpen {
			return 0, nil
		}
		return 0, New(ErrWouldBlock, "pipe is empty")
	}
	n := copy(buf, p.Buffer)
	p.Buffer = p.Buffer[n:]
	return n, nil
}

// Write appends up to len(buf) bytes, truncating at capacity. Writing to
// a pipe whose read end has closed fails ErrBrokenPipe; a full pipe
// reports ErrWouldBlock.
func (p *PipeState) Write(buf []byte) (int, error) {
	if !p.ReadEndOpen {
		return 0, New(ErrBrokenPipe, "pipe has no readers")
	}
	if len(buf) == 0 {
		return 0, nil
	}
	free := p.Capacity - len(p.Buffer)
	if free <= 0 {
		return 0, New(ErrWouldBlock, "pipe is full")
	}
	if len(buf) > free {
		buf = buf[:free]
	}
	p.Buffer = append(p.Buffer, buf...)
	return len(buf), nil
}

// CloseEnd marks one end of the pipe shut.
func (p *PipeState) CloseEnd(writeEnd bool) {
	if writeEnd {
		p.WriteEndOpen = false
	} else {
		p.ReadEndOpen = false
	}
}

// PipeObject is one end of an in-memory bounded byte pipe; the read and
// write ends are distinct object-table entries sharing one PipeState.
type PipeObject struct {
	State    *PipeState
	WriteEnd bool
}

// ConsoleObject is the shared console device backing stdin/stdout/stderr
// and /dev/console.
type ConsoleObject struct {
	InputQueue  []byte
	OutputQueue []byte
	Rows, Cols  uint16
}

// ReadInput consumes up to len(buf) queued input bytes.
func (c *ConsoleObject) ReadInput(buf []byte) int {
	n := copy(buf, c.InputQueue)
	c.InputQueue = c.InputQueue[n:]
	return n
}

// WriteOutput appends buf to the output queue for the host to flush.
func (c *ConsoleObject) WriteOutput(buf []byte) int {
	c.OutputQueue = append(c.OutputQueue, buf...)
	return len(buf)
}

// WindowObject is an opaque handle into the external compositor.
type WindowObject struct {
	ID uint64
}

// Object is a tagged union over the four KernelObject variants.
type Object struct {
	Kind    ObjectKind
	File    *FileObject
	Pipe    *PipeObject
	Console *ConsoleObject
	Window  *WindowObject
}

// NewFileObject wraps a FileObject in an Object.
func NewFileObject(f *FileObject) *Object { return &Object{Kind: ObjectFile, File: f} }

// NewPipeObject wraps a PipeObject in an Object.
func NewPipeObject(p *PipeObject) *Object { return &Object{Kind: ObjectPipe, Pipe: p} }

// NewConsoleObject wraps a ConsoleObject in an Object.
func NewConsoleObject(c *ConsoleObject) *Object { return &Object{Kind: ObjectConsole, Console: c} }

// NewWindowObject wraps a WindowObject in an Object.
func NewWindowObject(w *WindowObject) *Object { return &Object{Kind: ObjectWindow, Window: w} }

type objectEntry struct {
	obj      *Object
	refcount int
}

// ObjectTable is the process-wide table of kernel objects with per-entry
// refcounts (spec.md §4.4, invariants F1-F3).
type ObjectTable struct {
	mu      sync.Mutex
	entries map[Handle]*objectEntry
	nextID  Handle
}

// NewObjectTable creates an empty object table.
func NewObjectTable() *ObjectTable {
	return &ObjectTable{entries: make(map[Handle]*objectEntry)}
}

// Insert adds obj with refcount 1 and returns its handle.
func (t *ObjectTable) Insert(obj *Object) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	h := t.nextID
	t.entries[h] = &objectEntry{obj: obj, refcount: 1}
	return h
}

// Get returns the object at h, if it exists.
func (t *ObjectTable) Get(h Handle) (*Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return nil, false
	}
	return e.obj, true
}

// Retain increments h's refcount. It returns false if h is absent.
func (t *ObjectTable) Retain(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return false
	}
	e.refcount++
	return true
}

// Release decrements h's refcount. When it reaches zero the entry is
// removed and the freed object is returned so the caller can perform
// per-variant cleanup (e.g. releasing a pipe's backing buffer).
func (t *ObjectTable) Release(h Handle) (*Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return nil, false
	}
	e.refcount--
	if e.refcount <= 0 {
		delete(t.entries, h)
		return e.obj, true
	}
	return nil, false
}

// Refcount reports h's current refcount.
func (t *ObjectTable) Refcount(h Handle) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return 0, false
	}
	return e.refcount, true
}

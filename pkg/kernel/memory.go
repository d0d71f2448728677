package kernel

import "sync"

// RegionId identifies a memory region within a single process.
type RegionId uint64

// Protection is a memory region's access mode (spec.md §4.9).
type Protection int

const (
	ProtR  Protection = iota // read-only
	ProtRW                   // read-write
)

// Region is a numbered, byte-addressable memory region.
type Region struct {
	ID    RegionId
	Bytes []byte
	Prot  Protection
}

// ProcessMemory is a process's allocator over numbered regions, with an
// optional byte-count limit enforced on Alloc (spec.md §4.9, M3).
type ProcessMemory struct {
	mu         sync.Mutex
	regions    map[RegionId]*Region
	nextID     RegionId
	allocated  uint64
	limit      *uint64
	shmRegions map[ShmId]RegionId
}

// NewProcessMemory creates a process memory manager. A nil limit means
// unlimited.
func NewProcessMemory(limit *uint64) *ProcessMemory {
	return &ProcessMemory{
		regions:    make(map[RegionId]*Region),
		limit:      limit,
		shmRegions: make(map[ShmId]RegionId),
	}
}

// Alloc reserves size zero-initialised bytes with protection prot,
// failing ErrOutOfMemory if it would exceed the process limit.
func (m *ProcessMemory) Alloc(size uint64, prot Protection) (RegionId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit != nil && m.allocated+size > *m.limit {
		return 0, New(ErrOutOfMemory, "process memory limit exceeded")
	}
	m.nextID++
	id := m.nextID
	m.regions[id] = &Region{ID: id, Bytes: make([]byte, size), Prot: prot}
	m.allocated += size
	return id, nil
}

// Free releases a region, reducing the allocated-byte counter.
func (m *ProcessMemory) Free(id RegionId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return New(ErrInvalidArgument, "no such region")
	}
	m.allocated -= uint64(len(r.Bytes))
	delete(m.regions, id)
	return nil
}

// Read copies from region id at offset into buf, returning how many bytes
// were copied (fewer than len(buf) if offset+len(buf) runs past the end of
// the region, per M2's partial-at-boundary rule).
func (m *ProcessMemory) Read(id RegionId, offset uint64, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return 0, New(ErrInvalidArgument, "no such region")
	}
	if offset >= uint64(len(r.Bytes)) {
		return 0, nil
	}
	n := copy(buf, r.Bytes[offset:])
	return n, nil
}

// Write copies from buf into region id at offset, failing
// ErrPermissionDenied on a read-only region (M3) and truncating at the
// region boundary (M2).
func (m *ProcessMemory) Write(id RegionId, offset uint64, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return 0, New(ErrInvalidArgument, "no such region")
	}
	if r.Prot != ProtRW {
		return 0, New(ErrPermissionDenied, "region is read-only")
	}
	if offset >= uint64(len(r.Bytes)) {
		return 0, nil
	}
	n := copy(r.Bytes[offset:], buf)
	return n, nil
}

// ShmId identifies a globally shared memory segment.
type ShmId uint64

// ShmSegment is a shared memory segment visible across processes.
type ShmSegment struct {
	ID           ShmId
	Size         uint64
	CreatorPid   Pid
	AttachedPids map[Pid]struct{}
	Bytes        []byte
}

// ShmTable is the kernel-wide table of shared memory segments.
type ShmTable struct {
	mu       sync.Mutex
	segments map[ShmId]*ShmSegment
	nextID   ShmId
}

// NewShmTable creates an empty shared memory table.
func NewShmTable() *ShmTable {
	return &ShmTable{segments: make(map[ShmId]*ShmSegment)}
}

// Shmget creates a new segment of size bytes owned by creator.
func (t *ShmTable) Shmget(size uint64, creator Pid) ShmId {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.segments[id] = &ShmSegment{
		ID:           id,
		Size:         size,
		CreatorPid:   creator,
		AttachedPids: make(map[Pid]struct{}),
		Bytes:        make([]byte, size),
	}
	return id
}

// Shmat attaches proc's memory to shmid, creating (or reusing) a local
// region in mem and returning its RegionId. The local bytes are a copy of
// the segment's current contents at the time of attach.
func (t *ShmTable) Shmat(shmid ShmId, prot Protection, mem *ProcessMemory, pid Pid) (RegionId, error) {
	t.mu.Lock()
	seg, ok := t.segments[shmid]
	if !ok {
		t.mu.Unlock()
		return 0, New(ErrInvalidArgument, "no such shared memory segment")
	}
	seg.AttachedPids[pid] = struct{}{}
	snapshot := append([]byte(nil), seg.Bytes...)
	t.mu.Unlock()

	mem.mu.Lock()
	defer mem.mu.Unlock()
	if rid, ok := mem.shmRegions[shmid]; ok {
		return rid, nil
	}
	mem.nextID++
	rid := mem.nextID
	mem.regions[rid] = &Region{ID: rid, Bytes: snapshot, Prot: prot}
	mem.shmRegions[shmid] = rid
	return rid, nil
}

// Shmdt detaches proc from shmid. If no process remains attached, the
// segment is collected.
func (t *ShmTable) Shmdt(shmid ShmId, mem *ProcessMemory, pid Pid) error {
	t.mu.Lock()
	seg, ok := t.segments[shmid]
	if !ok {
		t.mu.Unlock()
		return New(ErrInvalidArgument, "no such shared memory segment")
	}
	delete(seg.AttachedPids, pid)
	collect := len(seg.AttachedPids) == 0
	if collect {
		delete(t.segments, shmid)
	}
	t.mu.Unlock()

	mem.mu.Lock()
	defer mem.mu.Unlock()
	if rid, ok := mem.shmRegions[shmid]; ok {
		delete(mem.regions, rid)
		delete(mem.shmRegions, shmid)
	}
	return nil
}

// ShmSync writes proc's local view of shmid back to the shared segment.
func (t *ShmTable) ShmSync(shmid ShmId, mem *ProcessMemory) error {
	mem.mu.Lock()
	rid, ok := mem.shmRegions[shmid]
	if !ok {
		mem.mu.Unlock()
		return New(ErrInvalidArgument, "not attached")
	}
	local := append([]byte(nil), mem.regions[rid].Bytes...)
	mem.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	seg, ok := t.segments[shmid]
	if !ok {
		return New(ErrInvalidArgument, "no such shared memory segment")
	}
	copy(seg.Bytes, local)
	return nil
}

// ShmRefresh reads shmid's shared bytes into proc's local view.
func (t *ShmTable) ShmRefresh(shmid ShmId, mem *ProcessMemory) error {
	t.mu.Lock()
	seg, ok := t.segments[shmid]
	if !ok {
		t.mu.Unlock()
		return New(ErrInvalidArgument, "no such shared memory segment")
	}
	snapshot := append([]byte(nil), seg.Bytes...)
	t.mu.Unlock()

	mem.mu.Lock()
	defer mem.mu.Unlock()
	rid, ok := mem.shmRegions[shmid]
	if !ok {
		return New(ErrInvalidArgument, "not attached")
	}
	copy(mem.regions[rid].Bytes, snapshot)
	return nil
}

// Package indextree is a minimal, non-authoritative stand-in for the
// arena-backed primary index a partition's tree pointer refers to. The
// real index tree and its arena allocator are out of scope for this core
// (see SPEC_FULL.md §6.3) — this package exists only so the reservation
// and balance machinery in package partition has something concrete to
// hold a refcounted reference to, cold-start, warm-resume and shut down.
package indextree

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cubefs/partitionkv/util"
)

// shutdownSentinel is stored in refcount once a tree has been shut down,
// making every subsequent Reserve fail instead of resurrecting a refcount
// off a freed tree.
const shutdownSentinel = -1 << 30

// Arena is the shared allocator context every Tree in a namespace draws
// its backing buffers from. In the system this core is modeled on the
// arena is a large pre-mapped region carved into fixed-size blocks; here
// it is a thin wrapper over a process-wide buffer pool, tracked only well
// enough to report aggregate usage.
type Arena struct {
	used int64
}

// NewArena constructs an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Used reports the arena's current outstanding allocation, in bytes.
func (a *Arena) Used() int64 {
	return atomic.LoadInt64(&a.used)
}

func (a *Arena) alloc(size int) []byte {
	atomic.AddInt64(&a.used, int64(size))
	return util.GetBuffer(size)
}

func (a *Arena) free(b []byte) {
	atomic.AddInt64(&a.used, -int64(len(b)))
	util.PutBuffer(b)
}

// Tree is a refcounted handle to one partition's primary (or LDT sub-)
// index. Every outstanding Reserve keeps it alive even after its owning
// Record has swapped in a replacement tree — see SwapTree in
// package partition.
type Tree struct {
	arena *Arena

	// incarnation distinguishes trees that occupy the same root key
	// across a cold-start/warm-resume cycle; it has no meaning beyond
	// identity.
	incarnation string

	mu      sync.RWMutex
	entries map[string][]byte
	buf     []byte // placeholder backing allocation, exercising the arena

	refcount int32
}

// Create allocates a fresh, empty tree from arena.
func Create(arena *Arena) (*Tree, error) {
	if arena == nil {
		return nil, fmt.Errorf("indextree: nil arena")
	}
	return &Tree{
		arena:       arena,
		incarnation: uuid.NewString(),
		entries:     make(map[string][]byte),
		buf:         arena.alloc(1),
		refcount:    1,
	}, nil
}

// Resume rebuilds a tree from a root persisted in roots under key, or
// behaves like Create if no such root exists (first warm-resume after a
// fresh InitPartition on an empty store).
func Resume(arena *Arena, roots *RootStore, key string) (*Tree, error) {
	if arena == nil {
		return nil, fmt.Errorf("indextree: nil arena")
	}
	t := &Tree{
		arena:    arena,
		entries:  make(map[string][]byte),
		buf:      arena.alloc(1),
		refcount: 1,
	}
	if root, ok := roots.Load(key); ok {
		t.incarnation = string(root)
	} else {
		t.incarnation = uuid.NewString()
	}
	return t, nil
}

// Shutdown persists t's root under key in roots and releases its
// allocation. The caller's own Record lock must already be held; this
// does not itself lock against concurrent Reserve/Release.
func Shutdown(t *Tree, roots *RootStore, key string) error {
	if t == nil {
		return nil
	}
	roots.Save(key, []byte(t.incarnation))

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf != nil {
		t.arena.free(t.buf)
		t.buf = nil
	}
	atomic.StoreInt32(&t.refcount, shutdownSentinel)
	return nil
}

// Reserve increments t's refcount, failing if t has already been shut
// down. Mirrors the CAS-retry counter idiom used elsewhere in this core
// for lock-free refcounting.
func Reserve(t *Tree) error {
	if t == nil {
		return fmt.Errorf("indextree: reserve of nil tree")
	}
	for {
		cur := atomic.LoadInt32(&t.refcount)
		if cur <= shutdownSentinel {
			return fmt.Errorf("indextree: tree already shut down")
		}
		if atomic.CompareAndSwapInt32(&t.refcount, cur, cur+1) {
			return nil
		}
	}
}

// Release decrements t's refcount. It is a no-op once t has been shut
// down, since Shutdown already dropped the allocation unconditionally.
func Release(t *Tree) {
	if t == nil {
		return
	}
	for {
		cur := atomic.LoadInt32(&t.refcount)
		if cur <= shutdownSentinel {
			return
		}
		if atomic.CompareAndSwapInt32(&t.refcount, cur, cur-1) {
			return
		}
	}
}

// Size reports the number of entries in t (lock-free reservation readers
// use this for replica stats such as object-count reporting).
func Size(t *Tree) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// RootStore persists each partition's tree incarnation tag across
// restarts so Resume can tell two cold-started trees apart from one
// warm-resumed from disk. A real deployment would back this with the
// durable store the teacher's common/kvstore.Store interface describes;
// in this reference implementation it is held in memory only, since
// SPEC_FULL.md's §6.3 leaves real persistence out of scope.
type RootStore struct {
	mu    sync.Mutex
	roots map[string][]byte
}

// NewRootStore constructs an empty root store.
func NewRootStore() *RootStore {
	return &RootStore{roots: make(map[string][]byte)}
}

// Save stores data under key, overwriting any previous value.
func (s *RootStore) Save(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots[key] = data
}

// Load retrieves the value stored under key, if any.
func (s *RootStore) Load(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.roots[key]
	return v, ok
}

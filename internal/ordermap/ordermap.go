// Package ordermap implements a concurrent hash map with an intrusive
// doubly-linked ordering chain and a pluggable eviction policy.
//
// It is the hard core this module is built around: a sharded
// concurrent hash index (github.com/puzpuzpuz/xsync) decoupled from a
// small-critical-section chain mutex that tracks insertion/access
// order for eviction. The split mirrors skipor-memcached's own
// fakeHead/fakeTail intrusive list (lock-free hash lookups, one mutex
// for structural chain edits), generalized from its single "active"
// bit into three tagged-variant policies: FIFO, SECOND-CHANCE, and
// LRU.
//
// Per-key value updates go through atomic.Pointer.CompareAndSwap on
// the node's value slot, so a node's chain position is independent of
// its value: replacing a value never requires re-linking, and a
// conditional remove/replace can use Go's native pointer identity as
// the "same object" comparator without a synthetic discriminator.
package ordermap

import (
	"hash/maphash"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Sizer is implemented by values stored in a Map; Size reports the
// byte footprint counted toward a Map's memory capacity.
type Sizer interface {
	Size() int64
}

// Policy selects which node an Evict pass removes when a Map is over
// capacity.
type Policy int

const (
	// FIFO evicts the oldest inserted entry, unconditionally.
	FIFO Policy = iota
	// SecondChance gives a node accessed since the last eviction scan
	// one reprieve: it is moved to the tail and skipped once.
	SecondChance
	// LRU evicts the least recently accessed entry; access always
	// moves a node to the tail.
	LRU
)

// node is the intrusive chain element. prev/next are atomic so the
// busy-wait in unlink (spec's "spin until linked") can read them
// without holding chainMu.
type node[K comparable, T Sizer] struct {
	key    K
	value  atomic.Pointer[T]
	marked atomic.Bool
	prev   atomic.Pointer[node[K, T]]
	next   atomic.Pointer[node[K, T]]
}

func newNode[K comparable, T Sizer](k K, unlinked *node[K, T]) *node[K, T] {
	n := &node[K, T]{key: k}
	n.next.Store(unlinked)
	n.prev.Store(unlinked)
	return n
}

// Map is a concurrent key/value store bounded by item count and byte
// footprint, with an intrusive chain recording insertion/access order
// for the configured eviction Policy.
type Map[K comparable, T Sizer] struct {
	index *xsync.MapOf[K, *node[K, T]]

	// chainMu serializes link/unlink/move operations on the chain.
	// Hash-index operations never hold it.
	chainMu sync.Mutex

	// sentinel is the fixed head/tail of the chain. sentinel.next is
	// the current eviction candidate (oldest); sentinel.prev is the
	// most recently appended/accessed node.
	sentinel *node[K, T]

	// unlinkedMarker is the distinguished UNLINKED value: a node whose
	// next pointer equals this has either not yet been appended to
	// the chain, or has been spliced out.
	unlinkedMarker *node[K, T]

	policy      Policy
	capacity    int64
	memCapacity int64

	length  atomic.Int64
	memUsed atomic.Int64

	onEvict func(key K, value *T)
}

// New creates an empty Map enforcing capacity (item count) and
// memCapacity (sum of Size() over present entries) under the given
// eviction Policy. The hash index uses xsync's built-in reflection-
// based hashing for K; use NewHashed instead when K already carries a
// precomputed hash worth reusing.
func New[K comparable, T Sizer](policy Policy, capacity, memCapacity int64) *Map[K, T] {
	return newMap[K, T](policy, capacity, memCapacity, xsync.NewMapOf[K, *node[K, T]]())
}

// NewHashed is New, but with the hash index seeded by a caller-
// supplied hasher instead of xsync's default reflection-based one.
// This is how a key type's own precomputed hash (spec.md §3's "hash
// is precomputed at construction, to avoid rehashing on every map
// op") actually gets used by the concurrent index, rather than sitting
// unread on the key struct while xsync rehashes it internally.
func NewHashed[K comparable, T Sizer](policy Policy, capacity, memCapacity int64, hasher func(maphash.Seed, K) uint64) *Map[K, T] {
	return newMap[K, T](policy, capacity, memCapacity, xsync.NewTypedMapOf[K, *node[K, T]](hasher))
}

func newMap[K comparable, T Sizer](policy Policy, capacity, memCapacity int64, index *xsync.MapOf[K, *node[K, T]]) *Map[K, T] {
	m := &Map[K, T]{
		index:       index,
		policy:      policy,
		capacity:    capacity,
		memCapacity: memCapacity,
		onEvict:     func(K, *T) {},
	}
	m.unlinkedMarker = &node[K, T]{}
	m.sentinel = &node[K, T]{}
	m.sentinel.next.Store(m.sentinel)
	m.sentinel.prev.Store(m.sentinel)
	return m
}

// OnEvict installs a listener invoked synchronously from within Evict
// whenever a node is actually removed. A nil listener is a no-op.
func (m *Map[K, T]) OnEvict(f func(key K, value *T)) {
	if f == nil {
		f = func(K, *T) {}
	}
	m.onEvict = f
}

// Get returns the current value for k and invokes the policy's
// on_access hook on a hit. It never blocks on the chain mutex except
// under LRU, where a hit moves the node to the tail.
func (m *Map[K, T]) Get(k K) (*T, bool) {
	n, ok := m.index.Load(k)
	if !ok {
		return nil, false
	}
	v := n.value.Load()
	if v == nil {
		return nil, false
	}
	m.onAccess(n)
	return v, true
}

// Put unconditionally inserts or replaces k's value and returns the
// previous value, or nil if k was absent. It runs Evict afterward.
func (m *Map[K, T]) Put(k K, v *T) *T {
	var old *T
	var created *node[K, T]
	m.index.Compute(k, func(cur *node[K, T], loaded bool) (*node[K, T], bool) {
		if loaded {
			old = cur.value.Swap(v)
			return cur, false
		}
		created = newNode[K, T](k, m.unlinkedMarker)
		created.value.Store(v)
		return created, false
	})
	switch {
	case created != nil:
		m.appendToTail(created)
		m.length.Add(1)
		m.memUsed.Add(v.Size())
	case old != nil:
		m.memUsed.Add(v.Size() - old.Size())
	default:
		m.memUsed.Add(v.Size())
	}
	m.Evict()
	return old
}

// PutIfAbsent inserts v only if k is not already present. It returns
// the existing value and false if k was present (no change), or nil
// and true on a successful insert.
func (m *Map[K, T]) PutIfAbsent(k K, v *T) (*T, bool) {
	var existing *T
	var created *node[K, T]
	m.index.Compute(k, func(cur *node[K, T], loaded bool) (*node[K, T], bool) {
		if loaded {
			existing = cur.value.Load()
			return cur, false
		}
		created = newNode[K, T](k, m.unlinkedMarker)
		created.value.Store(v)
		return created, false
	})
	if created == nil {
		return existing, false
	}
	m.appendToTail(created)
	m.length.Add(1)
	m.memUsed.Add(v.Size())
	m.Evict()
	return nil, true
}

// Remove unconditionally removes k and returns its previous value, or
// nil if it was absent.
func (m *Map[K, T]) Remove(k K) *T {
	var old *T
	var removed *node[K, T]
	m.index.Compute(k, func(cur *node[K, T], loaded bool) (*node[K, T], bool) {
		if !loaded {
			// Nothing to delete; returning delete=true here is a no-op
			// against xsync's Compute contract rather than planting cur
			// (nil, since loaded is false) as the stored value.
			return cur, true
		}
		old = cur.value.Load()
		removed = cur
		return cur, true
	})
	if removed == nil {
		return nil
	}
	if old != nil {
		m.length.Add(-1)
		m.memUsed.Add(-old.Size())
	}
	m.unlink(removed)
	return old
}

// RemoveExpected removes k only if its current value is identical
// (pointer-equal) to expected. It reports whether the removal took
// place.
func (m *Map[K, T]) RemoveExpected(k K, expected *T) bool {
	var removed *node[K, T]
	m.index.Compute(k, func(cur *node[K, T], loaded bool) (*node[K, T], bool) {
		if !loaded {
			return cur, true
		}
		if cur.value.Load() != expected {
			return cur, false
		}
		removed = cur
		return cur, true
	})
	if removed == nil {
		return false
	}
	m.length.Add(-1)
	m.memUsed.Add(-expected.Size())
	m.unlink(removed)
	return true
}

// Replace swaps k's value unconditionally if present, returning the
// previous value, or nil if k was absent (no structural change
// either way).
func (m *Map[K, T]) Replace(k K, v *T) *T {
	var old *T
	m.index.Compute(k, func(cur *node[K, T], loaded bool) (*node[K, T], bool) {
		if !loaded {
			return cur, true
		}
		old = cur.value.Swap(v)
		return cur, false
	})
	if old == nil {
		return nil
	}
	m.memUsed.Add(v.Size() - old.Size())
	m.Evict()
	return old
}

// ReplaceExpected performs a CAS on k's value slot: it swaps in v only
// if the current value is pointer-identical to expected, reporting
// success. Memory accounting only changes on success.
func (m *Map[K, T]) ReplaceExpected(k K, expected, v *T) bool {
	var ok bool
	m.index.Compute(k, func(cur *node[K, T], loaded bool) (*node[K, T], bool) {
		if !loaded {
			return cur, true
		}
		ok = cur.value.CompareAndSwap(expected, v)
		return cur, false
	})
	if !ok {
		return false
	}
	m.memUsed.Add(v.Size() - expected.Size())
	m.Evict()
	return true
}

// Size reports the current item count, clamped to 0.
func (m *Map[K, T]) Size() int64 {
	n := m.length.Load()
	if n < 0 {
		return 0
	}
	return n
}

// MemoryUsed reports the sum of Size() over present entries.
func (m *Map[K, T]) MemoryUsed() int64 { return m.memUsed.Load() }

// Capacity reports the configured item-count bound.
func (m *Map[K, T]) Capacity() int64 { return m.capacity }

// MemoryCapacity reports the configured byte-footprint bound.
func (m *Map[K, T]) MemoryCapacity() int64 { return m.memCapacity }

// Keys returns a snapshot of the present keys in unspecified order.
func (m *Map[K, T]) Keys() []K {
	keys := make([]K, 0, m.index.Size())
	m.index.Range(func(k K, n *node[K, T]) bool {
		if n.value.Load() != nil {
			keys = append(keys, k)
		}
		return true
	})
	return keys
}

// Range calls f for every present key/value pair until f returns
// false. Values mutated concurrently during Range may or may not be
// observed, per the usual concurrent-map iteration caveats.
func (m *Map[K, T]) Range(f func(K, *T) bool) {
	m.index.Range(func(k K, n *node[K, T]) bool {
		v := n.value.Load()
		if v == nil {
			return true
		}
		return f(k, v)
	})
}

// Close clears the map: every key is removed and the chain is reset
// to empty. It does not stop any caller-owned background task.
func (m *Map[K, T]) Close() {
	m.index.Range(func(k K, _ *node[K, T]) bool {
		m.index.Delete(k)
		return true
	})
	m.length.Store(0)
	m.memUsed.Store(0)
	m.chainMu.Lock()
	m.sentinel.next.Store(m.sentinel)
	m.sentinel.prev.Store(m.sentinel)
	m.chainMu.Unlock()
}

// Evict repeatedly removes the policy's chosen victim while the map is
// over capacity (by count or by bytes). A candidate the policy spares
// or that cannot be removed is skipped and the chain head is tried
// again; the loop stops early only when the chain is empty. It
// reports whether anything was evicted.
func (m *Map[K, T]) Evict() bool {
	evictedAny := false
	for m.length.Load() > m.capacity || m.memUsed.Load() > m.memCapacity {
		m.chainMu.Lock()
		cand := m.sentinel.next.Load()
		m.chainMu.Unlock()
		if cand == m.sentinel {
			return evictedAny
		}
		if !m.shouldEvict(cand) {
			continue
		}
		old := cand.value.Load()
		if old == nil {
			continue
		}
		if !m.RemoveExpected(cand.key, old) {
			continue
		}
		evictedAny = true
		m.onEvict(cand.key, old)
	}
	return evictedAny
}

// onAccess implements each policy's on_access hook.
func (m *Map[K, T]) onAccess(n *node[K, T]) {
	switch m.policy {
	case SecondChance:
		n.marked.Store(true)
	case LRU:
		m.moveToTail(n)
	case FIFO:
		// no-op
	}
}

// shouldEvict implements each policy's on_evict hook: whether the
// candidate at the chain head should actually be removed.
func (m *Map[K, T]) shouldEvict(n *node[K, T]) bool {
	switch m.policy {
	case SecondChance:
		if n.marked.CompareAndSwap(true, false) {
			m.moveToTail(n)
			return false
		}
		return true
	case FIFO, LRU:
		return true
	default:
		return true
	}
}

// appendToTail links n as the newest node. The field-write order
// (next, then read tail, then tail's successors, then n's own prev)
// guarantees a concurrent chain walker never observes n linked with an
// unset predecessor.
func (m *Map[K, T]) appendToTail(n *node[K, T]) {
	m.chainMu.Lock()
	n.next.Store(m.sentinel)
	tail := m.sentinel.prev.Load()
	m.sentinel.prev.Store(n)
	tail.next.Store(n)
	n.prev.Store(tail)
	m.chainMu.Unlock()
}

// unlink splices n out of the chain. If n has not yet been published
// by appendToTail (next still equals the UNLINKED marker), it
// busy-waits, yielding the processor, without holding chainMu.
func (m *Map[K, T]) unlink(n *node[K, T]) {
	for n.next.Load() == m.unlinkedMarker {
		runtime.Gosched()
	}
	m.chainMu.Lock()
	prev := n.prev.Load()
	next := n.next.Load()
	prev.next.Store(next)
	next.prev.Store(prev)
	n.next.Store(m.unlinkedMarker)
	m.chainMu.Unlock()
}

// moveToTail splices n to the tail. It is a no-op if n is unlinked or
// already at the tail, and idempotent under concurrent callers.
func (m *Map[K, T]) moveToTail(n *node[K, T]) {
	m.chainMu.Lock()
	defer m.chainMu.Unlock()
	if n.next.Load() == m.unlinkedMarker {
		return
	}
	if m.sentinel.prev.Load() == n {
		return
	}
	prev := n.prev.Load()
	next := n.next.Load()
	prev.next.Store(next)
	next.prev.Store(prev)

	tail := m.sentinel.prev.Load()
	n.next.Store(m.sentinel)
	m.sentinel.prev.Store(n)
	tail.next.Store(n)
	n.prev.Store(tail)
}

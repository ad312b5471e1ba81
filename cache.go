package cachecore

import (
	"hash/maphash"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tempuscache/cachecore/internal/delayqueue"
	"github.com/tempuscache/cachecore/internal/ordermap"
)

// keyHasher feeds Key's own precomputed xxhash into the concurrent
// index, instead of letting xsync hash the struct itself on every map
// operation. The seed is ignored: Key.Hash() is already a
// well-distributed 64-bit digest of the key's content, not something
// that needs per-process seeding.
func keyHasher(_ maphash.Seed, k Key) uint64 { return k.Hash() }

// StoreResult is the outcome of a storage command (set/add/replace/
// append/prepend/cas), mirroring the textual protocol responses of
// memcached (spec.md §4.D).
type StoreResult int

const (
	Stored StoreResult = iota
	NotStored
	Exists
	NotFound
)

func (r StoreResult) String() string {
	switch r {
	case Stored:
		return "STORED"
	case NotStored:
		return "NOT_STORED"
	case Exists:
		return "EXISTS"
	case NotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// DeleteResult is the outcome of a delete command.
type DeleteResult int

const (
	Deleted DeleteResult = iota
	DeleteNotFound
)

func (r DeleteResult) String() string {
	if r == Deleted {
		return "DELETED"
	}
	return "NOT_FOUND"
}

/*
Cache is a thread-safe, in-memory store implementing the memcached
command surface on top of internal/ordermap's intrusive-chain map.

================================================================================
ARCHITECTURAL OVERVIEW
================================================================================

Cache combines three pieces:

1. internal/ordermap.Map[Key, Element]
   - Sharded concurrent hash index plus an eviction-ordering chain.
   - Every structural decision (insert/replace/remove) is made race-free
     per key via the index's Compute, never via a map-level lock here.

2. internal/delayqueue.DelayQueue
   - Tracks keys whose delete is blocked until a deadline, so a delayed
     delete can be honored without a per-key timer goroutine.

3. A background scavenger goroutine
   - Drains expired delay-queue placeholders on a fixed schedule,
     turning a blocked delete into an actual removal once its window
     elapses (spec.md §4.E).

================================================================================
CAS TOKENS
================================================================================

Every successful mutating call stamps the resulting Element with a
fresh token from an atomic counter (nextCAS). A conditional command
(cas, delete-with-cas were it offered) compares the caller-supplied
token against the stored one; a value swap itself is performed with
ordermap's pointer-identity ReplaceExpected/RemoveExpected, so two
concurrent CAS attempts against the same prior value can never both
succeed.
*/
type Cache struct {
	data  *ordermap.Map[Key, Element]
	delay *delayqueue.DelayQueue

	casCounter atomic.Uint64

	cmdGets   atomic.Uint64
	cmdSets   atomic.Uint64
	getHits   atomic.Uint64
	getMisses atomic.Uint64

	startedAt time.Time
	logger    *zap.Logger

	scavengeDelay    time.Duration
	scavengeInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	stopped  chan struct{}
}

/*
New initializes and returns a configured Cache.

CONFIGURATION MODEL:
Functional options (options.go) set capacity, memory capacity,
eviction policy, logger, and scavenger schedule without touching this
constructor's signature.

INITIALIZATION STEPS:
1. Apply defaults, then user-supplied options.
2. Build the ordermap.Map under the resolved policy/capacity.
3. Wire the map's OnEvict hook to logging (evictions are the one thing
   worth logging on the hot path; everything else is too frequent).
4. Start the background scavenger.
*/
func New(opts ...Option) *Cache {
	cfg := cacheConfig{
		maxItems:         100000,
		maxBytes:         64 << 20,
		policy:           LRU,
		logger:           zap.NewNop(),
		scavengeDelay:    10 * time.Second,
		scavengeInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cache{
		data:             ordermap.NewHashed[Key, Element](cfg.policy, cfg.maxItems, cfg.maxBytes, keyHasher),
		delay:            delayqueue.New(),
		startedAt:        time.Now(),
		logger:           cfg.logger,
		scavengeDelay:    cfg.scavengeDelay,
		scavengeInterval: cfg.scavengeInterval,
		stopCh:           make(chan struct{}),
		stopped:          make(chan struct{}),
	}
	c.data.OnEvict(func(k Key, v *Element) {
		c.logger.Debug("evicted", zap.String("key", k.String()), zap.Int64("size", v.Size()))
	})
	c.startScavenger()
	return c
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func (c *Cache) nextCAS() uint64 { return c.casCounter.Add(1) }

// Get returns the element stored for key, or (Element{}, false) on a
// miss — including when the stored element has expired or is a
// blocked delayed-delete placeholder, which Get treats as absent
// without removing it. The scavenger later removes blocked
// placeholders; an expired element stays in the map until it is
// overwritten, deleted or evicted.
func (c *Cache) Get(key Key) (Element, bool) {
	c.cmdGets.Add(1)
	v, ok := c.data.Get(key)
	if !ok {
		c.getMisses.Add(1)
		return Element{}, false
	}
	now := nowMillis()
	if v.IsExpired(now) || v.IsBlocked(now) {
		c.getMisses.Add(1)
		return Element{}, false
	}
	c.getHits.Add(1)
	return *v, true
}

// Set unconditionally stores e under key, stamping a fresh CAS token.
// It always reports Stored.
func (c *Cache) Set(key Key, e Element) (StoreResult, uint64) {
	c.cmdSets.Add(1)
	e.CAS = c.nextCAS()
	c.data.Put(key, &e)
	return Stored, e.CAS
}

// Add stores e under key only if key is absent or its current value
// has expired. It reports NotStored if a live value already exists.
func (c *Cache) Add(key Key, e Element) (StoreResult, uint64) {
	c.cmdSets.Add(1)
	e.CAS = c.nextCAS()
	for {
		cur, ok := c.data.Get(key)
		if !ok {
			if _, inserted := c.data.PutIfAbsent(key, &e); inserted {
				return Stored, e.CAS
			}
			continue
		}
		if cur.IsExpired(nowMillis()) {
			if c.data.ReplaceExpected(key, cur, &e) {
				return Stored, e.CAS
			}
			continue
		}
		return NotStored, 0
	}
}

// Replace stores e under key only if a live value is already present.
// It reports NotFound otherwise.
func (c *Cache) Replace(key Key, e Element) (StoreResult, uint64) {
	c.cmdSets.Add(1)
	e.CAS = c.nextCAS()
	for {
		cur, ok := c.data.Get(key)
		if !ok || cur.IsExpired(nowMillis()) || cur.IsBlocked(nowMillis()) {
			return NotFound, 0
		}
		if c.data.ReplaceExpected(key, cur, &e) {
			return Stored, e.CAS
		}
	}
}

// CAS stores e under key only if key is present and its current CAS
// token equals expectedCAS. It distinguishes a missing key (NotFound)
// from a present-but-stale key (Exists), per spec.md §4.D.
func (c *Cache) CAS(key Key, e Element, expectedCAS uint64) (StoreResult, uint64) {
	c.cmdSets.Add(1)
	for {
		cur, ok := c.data.Get(key)
		if !ok || cur.IsExpired(nowMillis()) || cur.IsBlocked(nowMillis()) {
			return NotFound, 0
		}
		if cur.CAS != expectedCAS {
			return Exists, 0
		}
		e.CAS = c.nextCAS()
		if c.data.ReplaceExpected(key, cur, &e) {
			return Stored, e.CAS
		}
		// Lost the race to a concurrent mutation; restore the CAS
		// counter's appearance of monotonic-per-success by simply
		// retrying with a fresh token next iteration.
	}
}

// Append stores the concatenation of the existing value and other's
// data under key, reporting NotStored if key is absent, expired or
// blocked by a delayed delete.
func (c *Cache) Append(key Key, other Element) (StoreResult, uint64) {
	return c.appendOrPrepend(key, other, false)
}

// Prepend mirrors Append with other's data placed before the existing
// value.
func (c *Cache) Prepend(key Key, other Element) (StoreResult, uint64) {
	return c.appendOrPrepend(key, other, true)
}

func (c *Cache) appendOrPrepend(key Key, other Element, prepend bool) (StoreResult, uint64) {
	c.cmdSets.Add(1)
	for {
		cur, ok := c.data.Get(key)
		if !ok || cur.IsExpired(nowMillis()) || cur.IsBlocked(nowMillis()) {
			return NotStored, 0
		}
		var next Element
		if prepend {
			next = cur.Prepend(other)
		} else {
			next = cur.Append(other)
		}
		next.CAS = c.nextCAS()
		if c.data.ReplaceExpected(key, cur, &next) {
			return Stored, next.CAS
		}
	}
}

// Incr adds delta (use a negative value for decr) to the decimal value
// stored under key, clamping to 0 on underflow. It reports the new
// value, whether key was found, and ErrNotANumber if the stored
// payload does not parse as a decimal unsigned integer.
func (c *Cache) Incr(key Key, delta int64) (newValue uint64, found bool, err error) {
	for {
		cur, ok := c.data.Get(key)
		if !ok || cur.IsExpired(nowMillis()) || cur.IsBlocked(nowMillis()) {
			return 0, false, nil
		}
		_, nv, updated, ierr := cur.IncrDecr(delta)
		if ierr != nil {
			return 0, true, ierr
		}
		updated.CAS = c.nextCAS()
		if c.data.ReplaceExpected(key, cur, &updated) {
			return nv, true, nil
		}
	}
}

// Decr is Incr with delta negated.
func (c *Cache) Decr(key Key, delta int64) (newValue uint64, found bool, err error) {
	return c.Incr(key, -delta)
}

// Delete removes key immediately, reporting DeleteNotFound if it was
// already absent or expired.
func (c *Cache) Delete(key Key) DeleteResult {
	cur, ok := c.data.Get(key)
	if !ok {
		return DeleteNotFound
	}
	if !c.data.RemoveExpected(key, cur) || cur.IsExpired(nowMillis()) {
		return DeleteNotFound
	}
	return Deleted
}

// DelayDelete blocks key from being read or stored over until
// blockFor has elapsed, then lets the scavenger remove it outright.
// While blocked, Get, Add, Replace, CAS, Append, Prepend, Incr and
// Decr treat the key as unavailable; Set still overwrites it. It
// reports DeleteNotFound if key is absent, expired or already blocked.
// This is the delayed-delete behavior of spec.md §4.E: a client that
// issues `delete key 5` gets NOT_FOUND reads against key for five
// seconds even though the physical removal happens asynchronously.
func (c *Cache) DelayDelete(key Key, blockFor time.Duration) DeleteResult {
	cur, ok := c.data.Get(key)
	if !ok || cur.IsExpired(nowMillis()) || cur.IsBlocked(nowMillis()) {
		return DeleteNotFound
	}
	until := nowMillis() + blockFor.Milliseconds()
	blocked := *cur
	blocked.Blocked = true
	blocked.BlockedUntil = until
	blocked.CAS = c.nextCAS()
	if !c.data.ReplaceExpected(key, cur, &blocked) {
		return DeleteNotFound
	}
	c.delay.Add(delayqueue.Placeholder{Key: key.String(), BlockedUntil: until})
	return Deleted
}

// FlushAll removes every entry, ignoring any command-line expire
// argument a memcached client might pass (spec.md §9 open question:
// the teacher's demo never threaded a delay through flush, so this
// module documents flush_all as always-immediate rather than
// half-implementing a delayed variant).
func (c *Cache) FlushAll() {
	c.data.Close()
}

// Close stops the background scavenger and blocks until it has
// exited. It does not clear stored data; call FlushAll first if that
// is desired.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.stopped
}

// startScavenger launches the goroutine that drains expired
// delay-queue placeholders, turning blocked deletes into real
// removals. It waits scavengeDelay once, then runs every
// scavengeInterval until Close is called (spec.md §4.E: 10s initial
// delay, 2s period by default).
func (c *Cache) startScavenger() {
	go func() {
		defer close(c.stopped)
		timer := time.NewTimer(c.scavengeDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.stopCh:
			return
		}
		c.asyncEventPing()

		ticker := time.NewTicker(c.scavengeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.asyncEventPing()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// asyncEventPing drains exactly one expired placeholder from the
// delay queue per tick and, if the key's value is still the blocked
// placeholder that scheduled it, removes it outright.
func (c *Cache) asyncEventPing() {
	p, ok := c.delay.PollExpired(nowMillis())
	if !ok {
		return
	}
	key := NewKeyString(p.Key)
	cur, ok := c.data.Get(key)
	if !ok {
		return
	}
	if cur.Blocked && cur.BlockedUntil == p.BlockedUntil {
		c.data.RemoveExpected(key, cur)
		c.logger.Debug("scavenged delayed delete", zap.String("key", p.Key))
	}
}

// freeBytes reports an estimate of remaining process heap headroom,
// used by Stat's FreeBytes ("free_bytes") field. It is informational
// only and never drives an eviction decision.
func freeBytes() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys - ms.HeapInuse
}

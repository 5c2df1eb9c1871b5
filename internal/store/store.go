// Package store implements the keyspace: a sharded, mutex-protected map
// of keys to tagged values, plus the TTL table and eviction paths that
// sit on top of it. See expire.go for the background expiration engine.
package store

import (
	"crypto/rand"
	"runtime"
	"sync"
	"time"

	"github.com/dchest/siphash"
)

// Keyspace is the shared mutable resource guarding the data map and the
// expiry map. Data is sharded across a power-of-two number of buckets,
// each with its own sync.RWMutex, selected by a siphash of the key keyed
// with a process-random salt generated at construction. The expiry
// table remains a single map under one sync.RWMutex, since its access
// pattern (random-sample eviction plus per-key lazy checks) does not
// benefit from sharding in proportion to the added complexity.
//
// Lock ordering: expiry before data whenever both are needed. Set and
// Get each touch at most one lock at a time; Snapshot (used by the
// snapshot writer) holds both simultaneously, matching the teacher's
// save-path ordering in internal/store/store.go.
type Keyspace struct {
	shards []*shard
	mask   uint64
	k0, k1 uint64

	expiryMu sync.RWMutex
	expiry   map[string]int64 // key -> absolute expiry, epoch milliseconds

	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

type shard struct {
	mu   sync.RWMutex
	data map[string]*Value
}

// New constructs an empty Keyspace and starts its background expiration
// worker (see expire.go). Call Close to stop the worker.
func New() *Keyspace {
	n := nextPowerOfTwo(runtime.GOMAXPROCS(0))
	k := &Keyspace{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
		k0:     randomUint64(),
		k1:     randomUint64(),
		expiry: make(map[string]int64),
		stop:   make(chan struct{}),
	}
	for i := range k.shards {
		k.shards[i] = &shard{data: make(map[string]*Value)}
	}
	k.wg.Add(1)
	go k.expirationLoop()
	return k
}

// Close stops the background expiration worker. It is safe to call more
// than once.
func (k *Keyspace) Close() {
	k.stopped.Do(func() { close(k.stop) })
	k.wg.Wait()
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func randomUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is unrecoverable on any supported platform;
		// fall back to a fixed salt rather than panicking mid-startup.
		return 0x9e3779b97f4a7c15
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func nowMs() int64 { return time.Now().UnixMilli() }

func (k *Keyspace) shardFor(key string) *shard {
	h := siphash.Hash(k.k0, k.k1, []byte(key))
	return k.shards[h&k.mask]
}

// Set upserts key with a byte-string value. If ttlMs is positive, expiry
// is installed at now+ttlMs; otherwise any prior expiry for key is
// cleared. Set touches at most one lock at a time.
func (k *Keyspace) Set(key string, value []byte, ttlMs int64) {
	sh := k.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = &Value{Kind: KindString, Str: cloneBytes(value)}
	sh.mu.Unlock()

	k.expiryMu.Lock()
	if ttlMs > 0 {
		k.expiry[key] = nowMs() + ttlMs
	} else {
		delete(k.expiry, key)
	}
	k.expiryMu.Unlock()
}

// Get returns the current byte-string value for key, or (nil, false) if
// the key is absent, holds a non-string value, or has expired. An
// expired hit is lazily evicted before returning.
func (k *Keyspace) Get(key string) ([]byte, bool) {
	sh := k.shardFor(key)
	sh.mu.RLock()
	entry, ok := sh.data[key]
	var val []byte
	isString := ok && entry.Kind == KindString
	if isString {
		val = cloneBytes(entry.Str)
	}
	sh.mu.RUnlock()

	if !ok || !isString {
		return nil, false
	}
	if k.checkExpiredAndEvict(key) {
		return nil, false
	}
	return val, true
}

// Exists reports whether key is present and unexpired, regardless of
// value kind. Ambient operation, not a wire command.
func (k *Keyspace) Exists(key string) bool {
	sh := k.shardFor(key)
	sh.mu.RLock()
	_, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return false
	}
	return !k.checkExpiredAndEvict(key)
}

// Delete removes key unconditionally, from both the data shard and the
// expiry table. Ambient operation, not a wire command.
func (k *Keyspace) Delete(key string) {
	k.evict(key)
}

// checkExpiredAndEvict reports whether key has a past-due expiry entry,
// evicting it if so.
func (k *Keyspace) checkExpiredAndEvict(key string) bool {
	k.expiryMu.RLock()
	exp, has := k.expiry[key]
	k.expiryMu.RUnlock()
	if !has || exp > nowMs() {
		return false
	}
	k.evict(key)
	return true
}

// evict removes key from the expiry table and its data shard, in that
// order, matching the expiry-before-data acquisition rule.
func (k *Keyspace) evict(key string) {
	k.expiryMu.Lock()
	delete(k.expiry, key)
	k.expiryMu.Unlock()

	sh := k.shardFor(key)
	sh.mu.Lock()
	delete(sh.data, key)
	sh.mu.Unlock()
}

// Keys returns all keys matching the glob pattern. Order is unspecified.
// Expired keys are filtered out but not necessarily evicted.
func (k *Keyspace) Keys(glob string) []string {
	var out []string
	now := nowMs()
	for _, sh := range k.shards {
		sh.mu.RLock()
		for key := range sh.data {
			if !matchGlob(glob, key) {
				continue
			}
			out = append(out, key)
		}
		sh.mu.RUnlock()
	}
	if len(out) == 0 {
		return out
	}
	k.expiryMu.RLock()
	filtered := out[:0]
	for _, key := range out {
		if exp, has := k.expiry[key]; has && exp <= now {
			continue
		}
		filtered = append(filtered, key)
	}
	k.expiryMu.RUnlock()
	return filtered
}

// DeleteExpiredSample picks up to 20 keys uniformly at random from a
// snapshot of the expiry table and evicts those whose expiry has
// passed. It is the body of the active expiration loop (see expire.go)
// and is also exposed directly for tests. Returns the number evicted.
func (k *Keyspace) DeleteExpiredSample() int {
	k.expiryMu.RLock()
	if len(k.expiry) == 0 {
		k.expiryMu.RUnlock()
		return 0
	}
	keys := make([]string, 0, len(k.expiry))
	for key := range k.expiry {
		keys = append(keys, key)
	}
	k.expiryMu.RUnlock()

	shuffle(keys)
	if len(keys) > 20 {
		keys = keys[:20]
	}

	now := nowMs()
	evicted := 0
	for _, key := range keys {
		k.expiryMu.RLock()
		exp, has := k.expiry[key]
		k.expiryMu.RUnlock()
		if has && exp <= now {
			k.evict(key)
			evicted++
		}
	}
	return evicted
}

// SnapshotEntry is one keyspace record as seen by the snapshot writer.
type SnapshotEntry struct {
	Key       string
	Value     *Value
	ExpireMs  int64
	HasExpire bool
}

// Snapshot returns a consistent view of the entire keyspace for the
// SAVE command: it is the one path that holds the expiry lock and every
// shard lock simultaneously, per spec.md §4.4.
func (k *Keyspace) Snapshot() []SnapshotEntry {
	k.expiryMu.RLock()
	defer k.expiryMu.RUnlock()
	for _, sh := range k.shards {
		sh.mu.RLock()
		defer sh.mu.RUnlock()
	}

	var out []SnapshotEntry
	for _, sh := range k.shards {
		for key, val := range sh.data {
			entry := SnapshotEntry{Key: key, Value: cloneValue(val)}
			if exp, has := k.expiry[key]; has {
				entry.ExpireMs = exp
				entry.HasExpire = true
			}
			out = append(out, entry)
		}
	}
	return out
}

// Restore installs an entry loaded from a snapshot file. If expireMs is
// already in the past, the value is kept but no expiry entry is
// installed, per spec.md §4.3.4.
func (k *Keyspace) Restore(key string, val *Value, expireMs int64, hasExpire bool) {
	sh := k.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = val
	sh.mu.Unlock()

	if hasExpire && expireMs > nowMs() {
		k.expiryMu.Lock()
		k.expiry[key] = expireMs
		k.expiryMu.Unlock()
	}
}

// Len returns the number of keys held in the data shards, counting any
// expired keys that have not yet been evicted. Used by the status
// endpoint.
func (k *Keyspace) Len() int {
	n := 0
	for _, sh := range k.shards {
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n
}

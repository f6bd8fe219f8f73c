// Package cache is an in-process, fastcache-backed store letting a host
// skip recompiling a function it has already compiled this process
// lifetime. It is bookkeeping around invocations of the SSA pass, not an
// optimization pass over the IR the pass produces — the module has no
// durable state, so this cache never persists to disk.
package cache

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/VictoriaMetrics/fastcache"
)

// Cache wraps a fastcache.Cache keyed by a function's bytecode digest.
// fastcache is documented concurrency-safe, so one Cache can be shared
// across vm/pool's worker goroutines without extra locking.
type Cache struct {
	inner *fastcache.Cache
}

// New creates a cache sized in bytes. fastcache rounds maxBytes up to
// its internal bucket granularity; small values are fine for tests.
func New(maxBytes int) *Cache {
	return &Cache{inner: fastcache.New(maxBytes)}
}

// Digest returns the FNV-1a hash of bytecode as a cache key. FNV-1a, not
// a cryptographic hash, because the only requirement is a fast, stable
// key for an in-memory dedup table — there is no adversarial input model
// to defend against.
func Digest(bytecode []byte) uint64 {
	h := fnv.New64a()
	h.Write(bytecode)
	return h.Sum64()
}

func keyBytes(digest uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], digest)
	return b[:]
}

// Get reports whether digest was previously stored with Put, returning
// the stored program bytes (caller-defined encoding) if so.
func (c *Cache) Get(digest uint64) ([]byte, bool) {
	return c.inner.HasGet(nil, keyBytes(digest))
}

// Put stores value under digest, overwriting any previous entry.
func (c *Cache) Put(digest uint64, value []byte) {
	c.inner.Set(keyBytes(digest), value)
}

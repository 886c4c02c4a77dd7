/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package cache implements component F: a path+vary-keyed table of
// pre-assembled responses with TTL and a global memory ceiling (§4.F).
// Grounded on the teacher's single-mutex-per-shared-table pattern
// (httpserver/pool.go's serialized MapRun) and archive/compress.Compressor's
// plain-struct-plus-mutex shape; no example repo carries a bespoke
// fixed-slot response cache, so the table itself is built directly from the
// spec's own description (hash-slot primary probe, linear-sweep fallback,
// round-robin write cursor on collision, lazy TTL purge).
package cache

import (
	"sync"
	"time"
)

// Encoding is the vary_key enumeration (§3 Cache entry, §4.F Keying):
// Accept-Encoding collapsed to none/gzip/deflate.
type Encoding uint8

const (
	EncodingNone Encoding = iota
	EncodingGzip
	EncodingDeflate
)

// Entry is a single cached, pre-assembled response.
type Entry struct {
	Path       string
	Vary       Encoding
	ETag       string
	Bytes      []byte
	InsertedAt time.Time
}

// SkipReason explains why Insert declined to store a response.
type SkipReason uint8

const (
	SkipNone SkipReason = iota
	SkipTooLarge
	SkipGlobalCap
)

func (r SkipReason) String() string {
	switch r {
	case SkipTooLarge:
		return "entry_too_large"
	case SkipGlobalCap:
		return "global_cap_exceeded"
	default:
		return "none"
	}
}

// Stats mirrors §4.F's stats() contract.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	BytesUsed int64
	PeakBytes int64
}

// Config tunes the cache table.
type Config struct {
	Slots        int
	TTL          time.Duration
	PerEntryCap  int64
	GlobalCap    int64
	PurgeEvery   time.Duration
}

// DefaultConfig mirrors §3's stated caps (5 MiB per entry, 100 MiB global)
// and §4.F's 300s lazy-purge interval.
func DefaultConfig() Config {
	return Config{
		Slots:       10000,
		TTL:         time.Hour,
		PerEntryCap: 5 * 1024 * 1024,
		GlobalCap:   100 * 1024 * 1024,
		PurgeEvery:  300 * time.Second,
	}
}

type tableSlot struct {
	entry    *Entry
	occupied bool
}

// Cache is the shared response table, serialized behind a single mutex
// because per-request work inside the critical section is O(1) bounded
// except the one linear sweep on miss (§4.F Concurrency).
type Cache struct {
	cfg   Config
	mu    sync.Mutex
	slots []tableSlot
	used  int64
	peak  int64
	hits  uint64
	miss  uint64
	evict uint64
	wcur  int
	lastPurge time.Time
}

// New allocates a Cache with cfg.Slots fixed table slots.
func New(cfg Config) *Cache {
	if cfg.Slots <= 0 {
		cfg = DefaultConfig()
	}
	return &Cache{cfg: cfg, slots: make([]tableSlot, cfg.Slots), lastPurge: time.Time{}}
}

func (c *Cache) index(path string, vary Encoding) int {
	h := fnvHash(path) ^ uint32(vary)*2654435761
	return int(h) % len(c.slots)
}

func fnvHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Lookup implements §4.F's Lookup: primary probe at the hash slot, falling
// back to a bounded linear sweep for entries displaced by collision.
// Returns an entry only if path, vary, and freshness all match.
func (c *Cache) Lookup(path string, vary Encoding, now time.Time) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastPurge) >= c.cfg.PurgeEvery {
		c.purgeExpiredLocked(now)
	}

	idx := c.index(path, vary)
	if s := c.slots[idx]; s.occupied && matches(s.entry, path, vary, now, c.cfg.TTL) {
		c.hits++
		return s.entry, true
	}

	for i := range c.slots {
		if i == idx {
			continue
		}
		s := c.slots[i]
		if s.occupied && matches(s.entry, path, vary, now, c.cfg.TTL) {
			c.hits++
			return s.entry, true
		}
	}

	c.miss++
	return nil, false
}

func matches(e *Entry, path string, vary Encoding, now time.Time, ttl time.Duration) bool {
	if e == nil || e.Path != path || e.Vary != vary {
		return false
	}
	return now.Sub(e.InsertedAt) < ttl
}

// Insert implements §4.F's Insert: skipped if the response exceeds the
// per-entry cap, or if inserting would exceed the global cap even after a
// pressure purge. On collision, the round-robin write cursor slot is used
// and its previous byte blob is freed.
func (c *Cache) Insert(path string, vary Encoding, etag string, body []byte, now time.Time) SkipReason {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(body))
	if size > c.cfg.PerEntryCap {
		return SkipTooLarge
	}

	if c.used+size > c.cfg.GlobalCap {
		c.purgeExpiredLocked(now)
		if c.used+size > c.cfg.GlobalCap {
			return SkipGlobalCap
		}
	}

	idx := c.index(path, vary)

	// Prefer the natural hash slot when free; on collision, the target is
	// the round-robin write cursor slot (§4.F Insert).
	target := idx
	if c.slots[idx].occupied {
		target = c.nextWriteCursorLocked()
	}
	c.freeSlotLocked(target)

	c.slots[target] = tableSlot{
		entry: &Entry{
			Path:       path,
			Vary:       vary,
			ETag:       etag,
			Bytes:      body,
			InsertedAt: now,
		},
		occupied: true,
	}
	c.used += size
	if c.used > c.peak {
		c.peak = c.used
	}

	return SkipNone
}

func (c *Cache) nextWriteCursorLocked() int {
	idx := c.wcur % len(c.slots)
	c.wcur++
	return idx
}

func (c *Cache) freeSlotLocked(idx int) {
	s := &c.slots[idx]
	if s.occupied && s.entry != nil {
		c.used -= int64(len(s.entry.Bytes))
		c.evict++
	}
	*s = tableSlot{}
}

// PurgeExpired removes entries older than TTL (§4.F Eviction).
func (c *Cache) PurgeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpiredLocked(now)
}

func (c *Cache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for i := range c.slots {
		s := &c.slots[i]
		if s.occupied && now.Sub(s.entry.InsertedAt) >= c.cfg.TTL {
			c.freeSlotLocked(i)
			removed++
		}
	}
	c.lastPurge = now
	return removed
}

// Stats returns the current {hits, misses, evictions, bytes_in_use,
// peak_bytes} snapshot (§4.F stats()).
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.miss,
		Evictions: c.evict,
		BytesUsed: c.used,
		PeakBytes: c.peak,
	}
}

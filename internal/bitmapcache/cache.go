// Package bitmapcache is a byte and count bounded LRU store of decoded
// bitmaps with weak retention of evicted entries.
package bitmapcache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/javi11/altview/internal/bitmap"
)

// DefaultSubscriberBuffer is the channel capacity given to each subscriber.
const DefaultSubscriberBuffer = 256

// weakSweepInterval is the number of puts between sweeps of dead weak
// references.
const weakSweepInterval = 64

// Unbounded disables a Budget dimension.
const Unbounded = -1

// Budget bounds the strong entries. Zero is a real limit: only the entry
// being inserted is kept. Unbounded (any negative value) disables a dimension.
type Budget struct {
	MaxEntries int
	MaxBytes   int64
}

func (b Budget) String() string {
	return fmt.Sprintf("entries=%d bytes=%d", b.MaxEntries, b.MaxBytes)
}

// TrimResult is the cache footprint around a trim.
type TrimResult struct {
	BytesBefore int64
	CountBefore int
	BytesAfter  int64
	CountAfter  int
}

// Stats is a point in time view of the cache.
type Stats struct {
	Hits      uint64
	Misses    uint64
	WeakHits  uint64
	Evictions uint64
	Entries   int
	Bytes     int64
	Weak      int
	Budget    Budget
}

// HitRate returns hits (strong and weak) over lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.WeakHits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits+s.WeakHits) / float64(total)
}

// Cache maps keys to decoded bitmaps. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[bitmap.Key, *bitmap.Bitmap]
	weak    map[bitmap.Key]weak.Pointer[bitmap.Bitmap]
	budget  Budget
	bytes   int64
	puts    int
	pending []StatusChange

	// notifyMu is taken before mu is released so status changes are
	// published in mutation order, outside the cache lock.
	notifyMu sync.Mutex
	status   *statusBroadcaster

	hits      atomic.Uint64
	misses    atomic.Uint64
	weakHits  atomic.Uint64
	evictions atomic.Uint64

	log *slog.Logger
}

// New creates a cache with the given budget.
func New(budget Budget) (*Cache, error) {
	c := &Cache{
		weak:   make(map[bitmap.Key]weak.Pointer[bitmap.Bitmap]),
		budget: budget,
		log:    slog.Default().With("component", "bitmap-cache"),
	}
	c.status = newStatusBroadcaster(DefaultSubscriberBuffer, c.log)

	// Count eviction is done by evictToBudget so that the byte and count
	// dimensions are enforced in one pass.
	l, err := simplelru.NewLRU[bitmap.Key, *bitmap.Bitmap](math.MaxInt, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	c.lru = l

	return c, nil
}

// onEvict runs under mu for every entry leaving the LRU.
func (c *Cache) onEvict(key bitmap.Key, bmp *bitmap.Bitmap) {
	c.bytes -= bmp.SizeBytes()
	c.weak[key] = weak.Make(bmp)
	c.pending = append(c.pending, StatusChange{Key: key, Cached: false})
}

// unlock releases mu and publishes the changes recorded while it was held.
func (c *Cache) unlock() {
	events := c.pending
	c.pending = nil

	c.notifyMu.Lock()
	c.mu.Unlock()
	c.status.publish(events)
	c.notifyMu.Unlock()
}

// Get returns the cached bitmap for key. Strong entries are promoted to most
// recently used. Evicted bitmaps still referenced elsewhere are returned
// from weak retention without being reinserted.
func (c *Cache) Get(key bitmap.Key) (*bitmap.Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bmp, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return bmp, true
	}

	if p, ok := c.weak[key]; ok {
		if bmp := p.Value(); bmp != nil {
			c.weakHits.Add(1)
			return bmp, true
		}
		delete(c.weak, key)
	}

	c.misses.Add(1)
	return nil, false
}

// Contains reports whether key is held strongly, without touching recency.
func (c *Cache) Contains(key bitmap.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Put inserts or replaces the bitmap for key, then evicts least recently
// used entries until the budget holds. The newest entry is never evicted.
func (c *Cache) Put(key bitmap.Key, bmp *bitmap.Bitmap) {
	if bmp == nil {
		return
	}

	c.mu.Lock()
	defer c.unlock()

	if old, ok := c.lru.Peek(key); ok {
		if old == bmp {
			c.lru.Get(key)
			return
		}
		c.bytes -= old.SizeBytes()
	} else {
		c.pending = append(c.pending, StatusChange{Key: key, Cached: true})
	}

	c.lru.Add(key, bmp)
	c.bytes += bmp.SizeBytes()
	delete(c.weak, key)

	c.evictToBudget()

	c.puts++
	if c.puts%weakSweepInterval == 0 {
		c.sweepWeak()
	}
}

// Remove drops key from the cache, including its weak reference.
func (c *Cache) Remove(key bitmap.Key) bool {
	c.mu.Lock()
	defer c.unlock()

	removed := c.lru.Remove(key)
	delete(c.weak, key)
	return removed
}

// TrimToRatio evicts least recently used entries until the cache holds at
// most ratio of its current bytes. It may empty the cache.
func (c *Cache) TrimToRatio(ratio float64) TrimResult {
	ratio = min(max(ratio, 0), 1)

	c.mu.Lock()
	defer c.unlock()

	res := TrimResult{BytesBefore: c.bytes, CountBefore: c.lru.Len()}
	target := int64(float64(res.BytesBefore) * ratio)

	for c.bytes > target && c.lru.Len() > 0 {
		c.evictOldest()
	}

	res.BytesAfter, res.CountAfter = c.bytes, c.lru.Len()
	return res
}

// Clear drops every strong entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.unlock()

	c.lru.Purge()
	c.bytes = 0
}

// CurrentSize returns the bytes held by strong entries.
func (c *Cache) CurrentSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// CurrentCount returns the number of strong entries.
func (c *Cache) CurrentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Budget returns the active budget.
func (c *Cache) Budget() Budget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

// SetBudget replaces the budget and evicts down to it.
func (c *Cache) SetBudget(b Budget) {
	c.mu.Lock()
	defer c.unlock()

	c.budget = b
	c.evictToBudget()
	c.log.Info("Cache budget updated", "max_entries", b.MaxEntries, "max_bytes", b.MaxBytes, "entries", c.lru.Len(), "bytes", c.bytes)
}

// Stats returns counters and the current footprint.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries, bytes, weakCount, budget := c.lru.Len(), c.bytes, len(c.weak), c.budget
	c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		WeakHits:  c.weakHits.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
		Bytes:     bytes,
		Weak:      weakCount,
		Budget:    budget,
	}
}

// Subscribe registers for status changes. The channel is closed by
// Unsubscribe or Close.
func (c *Cache) Subscribe() (string, <-chan StatusChange) {
	return c.status.subscribe()
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Cache) Unsubscribe(id string) {
	c.status.unsubscribe(id)
}

// Close releases all subscribers.
func (c *Cache) Close() error {
	c.status.close()
	return nil
}

func (c *Cache) overBudget() bool {
	if c.budget.MaxEntries >= 0 && c.lru.Len() > c.budget.MaxEntries {
		return true
	}
	return c.budget.MaxBytes >= 0 && c.bytes > c.budget.MaxBytes
}

func (c *Cache) evictToBudget() {
	for c.overBudget() && c.lru.Len() > 1 {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	if key, bmp, ok := c.lru.RemoveOldest(); ok {
		c.evictions.Add(1)
		c.log.DebugContext(context.Background(), "Evicted bitmap",
			"key", key.String(),
			"id", key.ID.Short(),
			"bytes", bmp.SizeBytes())
	}
}

func (c *Cache) sweepWeak() {
	for key, p := range c.weak {
		if p.Value() == nil {
			delete(c.weak, key)
		}
	}
}

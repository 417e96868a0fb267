package bitmapcache

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/altview/internal/bitmap"
)

const mb = 1 << 20

// sized returns a bitmap whose buffer is exactly n bytes.
func sized(n int) *bitmap.Bitmap {
	return &bitmap.Bitmap{Width: n / 4, Height: 1, Format: bitmap.FormatRGBA8, Pix: make([]byte, n)}
}

func key(name string) bitmap.Key {
	return bitmap.FullKey(bitmap.Identity("/photos/" + name))
}

func newCache(t *testing.T, b Budget) *Cache {
	t.Helper()
	c, err := New(b)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_GetReturnsSameBitmap(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 10, MaxBytes: 100 * mb})

	b := sized(1024)
	c.Put(key("a.jpg"), b)

	got, ok := c.Get(key("a.jpg"))
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = c.Get(key("missing.jpg"))
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_KindsAreSeparateEntries(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 10, MaxBytes: Unbounded})

	id := bitmap.Identity("/photos/a.jpg")
	full, thumb := sized(4096), sized(256)
	c.Put(bitmap.FullKey(id), full)
	c.Put(bitmap.ThumbnailKey(id, 256), thumb)

	got, ok := c.Get(bitmap.ThumbnailKey(id, 256))
	require.True(t, ok)
	assert.Same(t, thumb, got)
	assert.Equal(t, 2, c.CurrentCount())
	assert.Equal(t, int64(4096+256), c.CurrentSize())
}

func TestCache_EvictsLeastRecentlyUsedInInsertionOrder(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 2, MaxBytes: Unbounded})

	c.Put(key("A"), sized(16))
	c.Put(key("B"), sized(16))
	c.Put(key("C"), sized(16))

	assert.False(t, c.Contains(key("A")))
	assert.True(t, c.Contains(key("B")))
	assert.True(t, c.Contains(key("C")))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_GetPromotesRecency(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 2, MaxBytes: Unbounded})

	c.Put(key("A"), sized(16))
	c.Put(key("B"), sized(16))
	_, ok := c.Get(key("A"))
	require.True(t, ok)
	c.Put(key("C"), sized(16))

	assert.True(t, c.Contains(key("A")))
	assert.False(t, c.Contains(key("B")))
	assert.True(t, c.Contains(key("C")))
}

func TestCache_BudgetInvariant(t *testing.T) {
	budget := Budget{MaxEntries: 5, MaxBytes: 10 * mb}
	c := newCache(t, budget)

	sizes := []int{1, 3, 2, 4, 1, 1, 5, 2, 3, 1, 1, 1, 1, 6, 2}
	for i, s := range sizes {
		c.Put(key(fmt.Sprintf("%d.jpg", i)), sized(s*mb))

		assert.LessOrEqual(t, c.CurrentCount(), budget.MaxEntries, "after put %d", i)
		assert.LessOrEqual(t, c.CurrentSize(), budget.MaxBytes, "after put %d", i)
	}
}

func TestCache_NeverEvictsBelowOneEntry(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 4, MaxBytes: 1 * mb})

	c.Put(key("small"), sized(mb/2))
	big := sized(3 * mb)
	c.Put(key("big"), big)

	assert.Equal(t, 1, c.CurrentCount())
	assert.Equal(t, int64(3*mb), c.CurrentSize())
	got, ok := c.Get(key("big"))
	require.True(t, ok)
	assert.Same(t, big, got)
}

func TestCache_ReplaceAdjustsBytes(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 4, MaxBytes: Unbounded})

	c.Put(key("a"), sized(100))
	replacement := sized(40)
	c.Put(key("a"), replacement)

	assert.Equal(t, 1, c.CurrentCount())
	assert.Equal(t, int64(40), c.CurrentSize())
	got, _ := c.Get(key("a"))
	assert.Same(t, replacement, got)
}

func TestCache_TrimToRatio(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 100, MaxBytes: 1024 * mb})

	for i := range 10 {
		c.Put(key(fmt.Sprintf("%d.jpg", i)), sized(10*mb))
	}

	res := c.TrimToRatio(0.5)
	assert.Equal(t, int64(100*mb), res.BytesBefore)
	assert.Equal(t, 10, res.CountBefore)
	assert.LessOrEqual(t, res.BytesAfter, int64(50*mb))
	assert.Equal(t, c.CurrentSize(), res.BytesAfter)
	assert.Equal(t, c.CurrentCount(), res.CountAfter)

	// oldest entries go first
	assert.False(t, c.Contains(key("0.jpg")))
	assert.True(t, c.Contains(key("9.jpg")))
}

func TestCache_TrimToZeroEmptiesCache(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 10, MaxBytes: Unbounded})

	c.Put(key("a"), sized(10))
	c.Put(key("b"), sized(10))

	res := c.TrimToRatio(0)
	assert.Equal(t, 2, res.CountBefore)
	assert.Zero(t, res.CountAfter)
	assert.Zero(t, c.CurrentSize())
}

func TestCache_Clear(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 10, MaxBytes: Unbounded})

	c.Put(key("a"), sized(10))
	c.Put(key("b"), sized(10))
	c.Clear()

	assert.Zero(t, c.CurrentCount())
	assert.Zero(t, c.CurrentSize())
	assert.False(t, c.Contains(key("a")))
}

func TestCache_SetBudgetEvicts(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 10, MaxBytes: Unbounded})

	for i := range 5 {
		c.Put(key(fmt.Sprintf("%d", i)), sized(10))
	}

	c.SetBudget(Budget{MaxEntries: 2, MaxBytes: Unbounded})
	assert.Equal(t, 2, c.CurrentCount())
	assert.Equal(t, Budget{MaxEntries: 2, MaxBytes: Unbounded}, c.Budget())
	assert.True(t, c.Contains(key("4")))
}

func TestCache_WeakRetention(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 1, MaxBytes: Unbounded})

	held := sized(64)
	c.Put(key("held"), held)
	c.Put(key("other"), sized(64))

	require.False(t, c.Contains(key("held")))

	got, ok := c.Get(key("held"))
	require.True(t, ok, "bitmap still referenced elsewhere must be found")
	assert.Same(t, held, got)
	assert.Equal(t, uint64(1), c.Stats().WeakHits)
	assert.False(t, c.Contains(key("held")), "weak hits are not reinserted")

	runtime.KeepAlive(held)
}

func TestCache_WeakRetentionReleased(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 1, MaxBytes: Unbounded})

	c.Put(key("dropped"), sized(1<<16))
	c.Put(key("other"), sized(64))

	assert.Eventually(t, func() bool {
		runtime.GC()
		_, ok := c.Get(key("dropped"))
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCache_RemoveDropsWeakReference(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 4, MaxBytes: Unbounded})

	b := sized(64)
	c.Put(key("a"), b)
	assert.True(t, c.Remove(key("a")))
	assert.False(t, c.Remove(key("a")))

	_, ok := c.Get(key("a"))
	assert.False(t, ok)
	runtime.KeepAlive(b)
}

func drain(ch <-chan StatusChange) []StatusChange {
	var out []StatusChange
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestCache_StatusNotifications(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 2, MaxBytes: Unbounded})

	id, ch := c.Subscribe()

	c.Put(key("A"), sized(16))
	c.Put(key("A"), sized(16)) // replacement, still present
	c.Put(key("B"), sized(16))
	c.Put(key("C"), sized(16))
	c.Remove(key("B"))

	assert.Equal(t, []StatusChange{
		{Key: key("A"), Cached: true},
		{Key: key("B"), Cached: true},
		{Key: key("C"), Cached: true},
		{Key: key("A"), Cached: false},
		{Key: key("B"), Cached: false},
	}, drain(ch))

	c.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
}

func TestCache_SlowSubscriberDoesNotBlock(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: DefaultSubscriberBuffer * 4, MaxBytes: Unbounded})

	_, ch := c.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range DefaultSubscriberBuffer * 2 {
			c.Put(key(fmt.Sprintf("%d", i)), sized(4))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("put blocked on a full subscriber")
	}
	assert.Len(t, drain(ch), DefaultSubscriberBuffer)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	budget := Budget{MaxEntries: 8, MaxBytes: 64 * 1024}
	c := newCache(t, budget)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := key(fmt.Sprintf("%d.jpg", (w*31+i)%40))
				if _, ok := c.Get(k); !ok {
					c.Put(k, sized(4096))
				}
				if i%50 == 0 {
					c.TrimToRatio(0.8)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.CurrentCount(), budget.MaxEntries)
	assert.LessOrEqual(t, c.CurrentSize(), budget.MaxBytes)
}

func TestCache_ZeroByteBudgetKeepsOnlyNewest(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: 10, MaxBytes: 0})

	c.Put(key("a.jpg"), sized(400))
	c.Put(key("b.jpg"), sized(400))
	c.Put(key("c.jpg"), sized(400))

	assert.Equal(t, 1, c.CurrentCount())
	assert.Equal(t, int64(400), c.CurrentSize())
	assert.True(t, c.Contains(key("c.jpg")))
}

func TestCache_UnboundedBytes(t *testing.T) {
	c := newCache(t, Budget{MaxEntries: Unbounded, MaxBytes: Unbounded})

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		c.Put(key(name), sized(400))
	}

	assert.Equal(t, 3, c.CurrentCount())
	assert.Equal(t, int64(1200), c.CurrentSize())
}

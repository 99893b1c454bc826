package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carlmjohnson/be"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	be.False(t, ok)
	v, ok := c.Get("a")
	be.True(t, ok)
	be.Equal(t, 1, v)
	be.Equal(t, 2, c.Size())
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](4, time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("j", "w")
	now = now.Add(2 * time.Second)

	_, ok := c.Get("k")
	be.False(t, ok)
	be.Equal(t, 1, c.CleanExpired())
	be.Equal(t, 0, c.Size())
}

func TestLRUCachePurgeAndStats(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("missing")
	c.Purge()

	_, ok := c.Get("a")
	be.False(t, ok)
	st := c.Stats()
	be.Equal(t, uint64(1), st.Hits)
	be.Equal(t, uint64(2), st.Misses)
	be.Equal(t, 0, st.Size)
}

func TestGetOrLoad(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	var calls atomic.Int32
	load := func() (int, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.GetOrLoad("report", load)
		}()
	}
	wg.Wait()
	for _, v := range results {
		be.Equal(t, 42, v)
	}
	be.True(t, calls.Load() >= 1)

	before := calls.Load()
	v, err := c.GetOrLoad("report", load)
	be.NilErr(t, err)
	be.Equal(t, 42, v)
	be.Equal(t, before, calls.Load())
}

func TestGetOrLoadDropsResultsOverlappingPurge(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int)
	go func() {
		v, _ := c.GetOrLoad("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()
	<-started
	c.Purge()

	// A miss after the purge must not join the older load.
	v, err := c.GetOrLoad("k", func() (int, error) { return 2, nil })
	be.NilErr(t, err)
	be.Equal(t, 2, v)

	close(release)
	be.Equal(t, 1, <-done)

	got, ok := c.Get("k")
	be.True(t, ok)
	be.Equal(t, 2, got)
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	boom := errors.New("boom")

	_, err := c.GetOrLoad("k", func() (int, error) { return 0, boom })
	be.True(t, errors.Is(err, boom))
	be.Equal(t, 0, c.Size())

	v, err := c.GetOrLoad("k", func() (int, error) { return 7, nil })
	be.NilErr(t, err)
	be.Equal(t, 7, v)
}

func TestManagerCleansAndStops(t *testing.T) {
	c := NewLRUCache[int](4, time.Nanosecond)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)

	m := NewManager(nil)
	m.Register(c)
	be.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()

	// Stop before start must not block.
	NewManager(nil).Stop()
}

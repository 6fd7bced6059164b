package cache

import (
	"testing"
	"time"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](size, ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to be cached", k)
		}
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, now := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	*now = now.Add(30 * time.Second)
	c.Set("b", 3)
	*now = now.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be expired")
	}
	if v, ok := c.Get("b"); !ok || v != 3 {
		t.Errorf("Get(b) = %d, %v; want 3, true", v, ok)
	}

	*now = now.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_DeletePurgeStats(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be deleted")
	}
	c.Get("b")
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d, want 0", c.Size())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit and 1 miss", st)
	}
}

func TestManager_CleanNow(t *testing.T) {
	c1, now1 := newTestCache(10, time.Second)
	c2, _ := newTestCache(10, time.Hour)
	c1.Set("x", 1)
	c2.Set("y", 2)

	m := NewManager()
	m.Register(c1)
	m.Register(c2)
	*now1 = now1.Add(2 * time.Second)

	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}

	// a is most recent, so b is evicted
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Errorf("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.Now)

	c.Set("k", "v")
	clock.now = clock.now.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit before ttl")
	}

	clock.now = clock.now.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after ttl")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.Now)
	c.Set("old", 1)
	clock.now = clock.now.Add(45 * time.Second)
	c.Set("new", 2)
	clock.now = clock.now.Add(30 * time.Second)

	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Errorf("expected new to survive")
	}
}

func TestLRUCache_SetIfVersion(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	v := c.Version("owner")
	c.Delete("owner") // a concurrent mutation invalidates
	if c.SetIfVersion("owner", 42, v) {
		t.Fatalf("stale value must be rejected")
	}
	if _, ok := c.Get("owner"); ok {
		t.Fatalf("stale value was cached")
	}

	v = c.Version("owner")
	if !c.SetIfVersion("owner", 43, v) {
		t.Fatalf("fresh value must be stored")
	}
	if got, _ := c.Get("owner"); got != 43 {
		t.Fatalf("Get() = %d, want 43", got)
	}
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) CleanExpired() int { c.calls++; return 2 }

func TestManager_CleanNowAndStop(t *testing.T) {
	m := NewManager(nil)
	cl := &countingCleaner{}
	m.Register(cl)

	if n := m.CleanNow(); n != 2 {
		t.Errorf("CleanNow() = %d, want 2", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop() // second stop is a no-op
	if cl.calls != 1 {
		t.Errorf("calls = %d, want 1", cl.calls)
	}
}

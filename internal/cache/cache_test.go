// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetSet(t *testing.T) {
	c := New[string, int](10)
	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) found a missing key")
	}
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) after overwrite = %d, want 2", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now oldest
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s was evicted", k)
		}
	}
	if s := c.Stats(); s.Evictions != 1 || s.Len != 2 {
		t.Errorf("Stats() = %+v, want 1 eviction and 2 entries", s)
	}
}

func TestUnlimited(t *testing.T) {
	c := New[int, int](0)
	for i := range 1000 {
		c.Set(i, i)
	}
	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", c.Len())
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[string, int](4)
	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}
	for range 3 {
		v, err := c.GetOrCreate("k", create)
		if err != nil || v != 42 {
			t.Fatalf("GetOrCreate = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats() = %+v, want 2 hits and 1 miss", s)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("HitRate = %v, want 2/3", s.HitRate)
	}
}

func TestGetOrCreateErrorNotCached(t *testing.T) {
	c := New[string, int](4)
	boom := errors.New("boom")
	if _, err := c.GetOrCreate("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Error("failed create was cached")
	}
	v, err := c.GetOrCreate("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("retry = %d, %v; want 7", v, err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Set("b", 2)
	if !c.Delete("a") {
		t.Error("Delete(a) = false")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true")
	}
	c.Clear()
	if c.Len() != 0 || c.order.Len() != 0 {
		t.Errorf("after Clear: Len() = %d, list = %d", c.Len(), c.order.Len())
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Error("cache unusable after Clear")
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	c := New[string, int](8)
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := strconv.Itoa(i % 4)
			_, _ = c.GetOrCreate(key, func() (int, error) {
				calls.Add(1)
				return i, nil
			})
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 4 {
		t.Errorf("create called %d times, want once per key (4)", n)
	}
}

package cache

import (
	"errors"
	"testing"
	"time"
)

// fakeClock 让测试完全控制 TTL 过期
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestCacheGetWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	c := New(30*time.Second, clock.Now)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	v, err := c.Get(KeyTodayStats, fetch)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v.(int) != 1 {
		t.Fatalf("expected first fetch value, got %v", v)
	}

	clock.Advance(10 * time.Second)
	v, err = c.Get(KeyTodayStats, fetch)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v.(int) != 1 {
		t.Fatalf("expected cached value within TTL, got %v", v)
	}
	if calls != 1 {
		t.Fatalf("expected 1 fetch call, got %d", calls)
	}
}

func TestCacheGetAfterExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	c := New(30*time.Second, clock.Now)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	if _, err := c.Get(KeyWeekStats, fetch); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	clock.Advance(31 * time.Second)
	v, err := c.Get(KeyWeekStats, fetch)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v.(int) != 2 {
		t.Fatalf("expected refetched value after expiry, got %v", v)
	}
}

func TestCacheStaleFallbackOnFetchError(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	c := New(30*time.Second, clock.Now)

	if _, err := c.Get(KeyStreak, func() (interface{}, error) { return "good", nil }); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	clock.Advance(time.Minute)
	v, err := c.Get(KeyStreak, func() (interface{}, error) { return nil, errors.New("store down") })
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if v.(string) != "good" {
		t.Fatalf("expected last-known-good value, got %v", v)
	}
}

func TestCachePropagatesErrorWithoutStale(t *testing.T) {
	c := New(30*time.Second, nil)

	wantErr := errors.New("store down")
	if _, err := c.Get(KeyGoals, func() (interface{}, error) { return nil, wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}
}

func TestCacheInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	c := New(30*time.Second, clock.Now)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	if _, err := c.Get(KeyTodayStats, fetch); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	c.Invalidate(KeyTodayStats)
	v, err := c.Get(KeyTodayStats, fetch)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v.(int) != 2 {
		t.Fatalf("expected refetch after invalidate, got %v", v)
	}

	c.InvalidateAll()
	if _, err := c.Get(KeyTodayStats, fetch); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 fetch calls, got %d", calls)
	}
}

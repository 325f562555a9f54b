package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neonpulse/internal/cache"
	"github.com/neonpulse/internal/rowstore"
)

var testZone = time.FixedZone("UTC+8", 8*3600)

// fakeStore 是 rowstore.Store 的内存实现，支持注入故障。
type fakeStore struct {
	mu       sync.Mutex
	series   map[string][][]string
	settings map[string]string

	listErr   error
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		series:   make(map[string][][]string),
		settings: make(map[string]string),
	}
}

func (f *fakeStore) Append(_ context.Context, series string, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	copied := make([]string, len(row))
	copy(copied, row)
	f.series[series] = append(f.series[series], copied)
	return nil
}

func (f *fakeStore) ListAll(_ context.Context, series string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	rows := make([][]string, len(f.series[series]))
	copy(rows, f.series[series])
	return rows, nil
}

func (f *fakeStore) DeleteAt(_ context.Context, series string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.series[series]
	if index < 0 || index >= len(rows) {
		return rowstore.ErrIndexOutOfRange
	}
	f.series[series] = append(rows[:index], rows[index+1:]...)
	return nil
}

func (f *fakeStore) ReadSettings(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]string, len(f.settings))
	for k, v := range f.settings {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) WriteSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}

func (f *fakeStore) rowCount(series string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.series[series])
}

// testClock 是可手动拨动的时钟。
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{now: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTrackerForTest(store rowstore.Store, clock *testClock) *TrackerService {
	return NewTrackerService(store, cache.New(cache.DefaultTTL, clock.Now), testZone, clock.Now)
}

func TestRecordHydrationDebounce(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock(time.Date(2026, 3, 2, 10, 0, 0, 0, testZone))
	svc := newTrackerForTest(store, clock)
	ctx := context.Background()

	count, err := svc.RecordHydration(ctx)
	if err != nil {
		t.Fatalf("RecordHydration returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	// 窗口内的重复轻点不追加新行
	clock.Advance(10 * time.Second)
	count, err = svc.RecordHydration(ctx)
	if err != nil {
		t.Fatalf("RecordHydration returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected duplicate tap to keep count 1, got %d", count)
	}
	if store.rowCount(SeriesWater) != 1 {
		t.Fatalf("expected 1 stored row, got %d", store.rowCount(SeriesWater))
	}

	clock.Advance(31 * time.Second)
	count, err = svc.RecordHydration(ctx)
	if err != nil {
		t.Fatalf("RecordHydration returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2 after window, got %d", count)
	}
}

func TestSetCountGrowAndShrink(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, testZone)
	clock := newTestClock(base)
	svc := newTrackerForTest(store, clock)
	ctx := context.Background()

	// 昨天的一条记录不应受当日修正影响
	yesterday := base.AddDate(0, 0, -1)
	if err := store.Append(ctx, SeriesWater, []string{yesterday.Format(timestampLayout), "old"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordHydration(ctx); err != nil {
			t.Fatalf("RecordHydration returned error: %v", err)
		}
		clock.Advance(time.Minute)
	}

	count, err := svc.SetCount(ctx, MetricHydration, 3)
	if err != nil {
		t.Fatalf("SetCount returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if store.rowCount(SeriesWater) != 4 {
		t.Fatalf("expected 3 today rows + 1 yesterday, got %d", store.rowCount(SeriesWater))
	}

	count, err = svc.SetCount(ctx, MetricHydration, 6)
	if err != nil {
		t.Fatalf("SetCount returned error: %v", err)
	}
	if count != 6 {
		t.Fatalf("expected count 6, got %d", count)
	}
	if store.rowCount(SeriesWater) != 7 {
		t.Fatalf("expected 6 today rows + 1 yesterday, got %d", store.rowCount(SeriesWater))
	}
}

func TestSetCountRemovesNewestFirst(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, testZone)
	clock := newTestClock(base)
	svc := newTrackerForTest(store, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordHydration(ctx); err != nil {
			t.Fatalf("RecordHydration returned error: %v", err)
		}
		clock.Advance(time.Minute)
	}

	if _, err := svc.SetCount(ctx, MetricHydration, 3); err != nil {
		t.Fatalf("SetCount returned error: %v", err)
	}

	rows, err := store.ListAll(ctx, SeriesWater)
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// 留下的是最早的三条
	for i, row := range rows {
		want := base.Add(time.Duration(i) * time.Minute).Format(timestampLayout)
		if row[0] != want {
			t.Fatalf("row %d: expected timestamp %s, got %s", i, want, row[0])
		}
	}
}

func TestSetCountValidation(t *testing.T) {
	svc := newTrackerForTest(newFakeStore(), newTestClock(time.Now()))
	ctx := context.Background()

	if _, err := svc.SetCount(ctx, MetricHydration, -1); !errors.Is(err, ErrNegativeTarget) {
		t.Fatalf("expected ErrNegativeTarget, got %v", err)
	}
	if _, err := svc.SetCount(ctx, MetricWeight, 3); !errors.Is(err, ErrUnsupportedMetric) {
		t.Fatalf("expected ErrUnsupportedMetric, got %v", err)
	}
}

func TestDeleteMostRecent(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock(time.Date(2026, 3, 2, 9, 0, 0, 0, testZone))
	svc := newTrackerForTest(store, clock)
	ctx := context.Background()

	if _, err := svc.DeleteMostRecent(ctx, MetricPosture); !errors.Is(err, ErrNothingToDelete) {
		t.Fatalf("expected ErrNothingToDelete, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.RecordPostureBreak(ctx); err != nil {
			t.Fatalf("RecordPostureBreak returned error: %v", err)
		}
		clock.Advance(time.Minute)
	}

	remaining, err := svc.DeleteMostRecent(ctx, MetricPosture)
	if err != nil {
		t.Fatalf("DeleteMostRecent returned error: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", remaining)
	}
}

func TestClearToday(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, testZone)
	clock := newTestClock(base)
	svc := newTrackerForTest(store, clock)
	ctx := context.Background()

	yesterday := base.AddDate(0, 0, -1)
	if err := store.Append(ctx, SeriesStand, []string{yesterday.Format(timestampLayout), "old"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.RecordPostureBreak(ctx); err != nil {
			t.Fatalf("RecordPostureBreak returned error: %v", err)
		}
		clock.Advance(time.Minute)
	}

	removed, err := svc.ClearToday(ctx, MetricPosture)
	if err != nil {
		t.Fatalf("ClearToday returned error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if store.rowCount(SeriesStand) != 1 {
		t.Fatalf("expected yesterday row to survive, got %d rows", store.rowCount(SeriesStand))
	}
}

func TestRecordExercise(t *testing.T) {
	store := newFakeStore()
	svc := newTrackerForTest(store, newTestClock(time.Date(2026, 3, 2, 9, 0, 0, 0, testZone)))
	ctx := context.Background()

	record, err := svc.RecordExercise(ctx, "跑步", 30)
	if err != nil {
		t.Fatalf("RecordExercise returned error: %v", err)
	}
	if record.Calories != 300 {
		t.Fatalf("expected 300 calories for 跑步 30, got %d", record.Calories)
	}

	// 未知类型按保守估算
	record, err = svc.RecordExercise(ctx, "攀岩", 10)
	if err != nil {
		t.Fatalf("RecordExercise returned error: %v", err)
	}
	if record.Calories != 50 {
		t.Fatalf("expected fallback rate 5/min, got %d", record.Calories)
	}

	if _, err := svc.RecordExercise(ctx, "跑步", 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestRecordWeightValidation(t *testing.T) {
	svc := newTrackerForTest(newFakeStore(), newTestClock(time.Now()))
	ctx := context.Background()

	if err := svc.RecordWeight(ctx, 10); !errors.Is(err, ErrWeightOutOfRange) {
		t.Fatalf("expected ErrWeightOutOfRange, got %v", err)
	}
	if err := svc.RecordWeight(ctx, 400); !errors.Is(err, ErrWeightOutOfRange) {
		t.Fatalf("expected ErrWeightOutOfRange, got %v", err)
	}
	if err := svc.RecordWeight(ctx, 65.5); err != nil {
		t.Fatalf("RecordWeight returned error: %v", err)
	}
}

func TestRecordSleepValidation(t *testing.T) {
	svc := newTrackerForTest(newFakeStore(), newTestClock(time.Now()))
	ctx := context.Background()

	if err := svc.RecordSleep(ctx, 25, 3, ""); !errors.Is(err, ErrInvalidSleepHours) {
		t.Fatalf("expected ErrInvalidSleepHours, got %v", err)
	}
	if err := svc.RecordSleep(ctx, 7.5, 0, ""); !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("expected ErrInvalidQuality, got %v", err)
	}
	if err := svc.RecordSleep(ctx, 7.5, 4, "睡得不錯"); err != nil {
		t.Fatalf("RecordSleep returned error: %v", err)
	}
}

func TestRecordMoodScore(t *testing.T) {
	store := newFakeStore()
	svc := newTrackerForTest(store, newTestClock(time.Now()))
	ctx := context.Background()

	score, err := svc.RecordMood(ctx, "😄", "")
	if err != nil {
		t.Fatalf("RecordMood returned error: %v", err)
	}
	if score != 5 {
		t.Fatalf("expected score 5 for 😄, got %d", score)
	}

	// 未收录的表情记为中性
	score, err = svc.RecordMood(ctx, "🦖", "")
	if err != nil {
		t.Fatalf("RecordMood returned error: %v", err)
	}
	if score != 3 {
		t.Fatalf("expected neutral score 3, got %d", score)
	}
}

func TestRecordHydrationStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = rowstore.ErrStoreUnavailable
	svc := newTrackerForTest(store, newTestClock(time.Now()))

	if _, err := svc.RecordHydration(context.Background()); !errors.Is(err, rowstore.ErrStoreUnavailable) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

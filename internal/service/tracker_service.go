package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neonpulse/internal/cache"
	"github.com/neonpulse/internal/rowstore"
)

var (
	// ErrNegativeTarget 在把当日计数设置为负数时返回。
	ErrNegativeTarget = errors.New("target count must not be negative")
	// ErrUnsupportedMetric 在对不支持该操作的指标执行计数类变更时返回。
	ErrUnsupportedMetric = errors.New("metric does not support this operation")
	// ErrInvalidDuration 在运动时长不是正数时返回。
	ErrInvalidDuration = errors.New("exercise duration must be positive")
	// ErrWeightOutOfRange 在体重超出合理区间（20–300kg）时返回。
	ErrWeightOutOfRange = errors.New("weight out of range")
	// ErrInvalidSleepHours 在睡眠时长超出 0–24 小时时返回。
	ErrInvalidSleepHours = errors.New("sleep hours out of range")
	// ErrInvalidQuality 在睡眠质量不在 1–5 时返回。
	ErrInvalidQuality = errors.New("sleep quality must be between 1 and 5")
	// ErrNothingToDelete 在当日没有可删除的记录时返回。
	ErrNothingToDelete = errors.New("no entry recorded today")
)

// debounceWindow 是轻点型事件（喝水/起身）的最小间隔，
// 用来吞掉 at-least-once 投递带来的重复消息。
const debounceWindow = 30 * time.Second

// moodScores 把表情映射为 1–5 的情绪分，未收录的表情记为中性 3。
var moodScores = map[string]int{
	"😄": 5,
	"🤩": 5,
	"😊": 4,
	"🙂": 4,
	"😐": 3,
	"😞": 2,
	"😟": 2,
	"😢": 1,
	"😭": 1,
}

// TrackerService 承担全部写路径：记录事件、修正当日计数、删除记录。
// 同一序列的变更在进程内串行执行，消除先读后写的竞态；
// 跨进程共用同一份表格时仍无法互斥，这是已知限制。
type TrackerService struct {
	store rowstore.Store
	cache *cache.Cache
	zone  *time.Location
	now   func() time.Time

	mu     sync.Mutex
	series map[string]*sync.Mutex
}

// NewTrackerService 构造 TrackerService；now 传 nil 时使用系统时钟。
func NewTrackerService(store rowstore.Store, c *cache.Cache, zone *time.Location, now func() time.Time) *TrackerService {
	if now == nil {
		now = time.Now
	}
	return &TrackerService{
		store:  store,
		cache:  c,
		zone:   zone,
		now:    now,
		series: make(map[string]*sync.Mutex),
	}
}

// lockSeries 返回某序列的互斥锁，按需创建。
func (s *TrackerService) lockSeries(series string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.series[series]
	if !ok {
		lock = &sync.Mutex{}
		s.series[series] = lock
	}
	return lock
}

func (s *TrackerService) localNow() time.Time {
	return s.now().In(s.zone)
}

func (s *TrackerService) today() string {
	return s.localNow().Format(dateLayout)
}

func (s *TrackerService) invalidateDerived(metric Metric) {
	keys := []string{cache.KeyTodayStats, cache.KeyWeekStats, cache.KeyStreak}
	if metric == MetricWeight {
		keys = append(keys, cache.KeyWeightSummary)
	}
	s.cache.Invalidate(keys...)
}

// RecordHydration 记录一次喝水，返回记录后的当日杯数。
// 30 秒内的重复轻点不会追加新行，直接返回现有计数。
func (s *TrackerService) RecordHydration(ctx context.Context) (int, error) {
	return s.recordTap(ctx, MetricHydration)
}

// RecordPostureBreak 记录一次起身，语义同 RecordHydration。
func (s *TrackerService) RecordPostureBreak(ctx context.Context) (int, error) {
	return s.recordTap(ctx, MetricPosture)
}

func (s *TrackerService) recordTap(ctx context.Context, metric Metric) (int, error) {
	series := metric.Series()
	lock := s.lockSeries(series)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.store.ListAll(ctx, series)
	if err != nil {
		return 0, fmt.Errorf("record %s: %w", metric, err)
	}

	now := s.localNow()
	today := now.Format(dateLayout)

	count := 0
	var latest time.Time
	for _, row := range rows {
		if dayOf(cell(row, 0), s.zone) != today {
			continue
		}
		count++
		if t := parseTimestamp(cell(row, 0), s.zone); t.After(latest) {
			latest = t
		}
	}

	// 去抖：最近一条记录还在窗口内就视为重复投递
	if !latest.IsZero() && now.Sub(latest) < debounceWindow {
		return count, nil
	}

	row := []string{now.Format(timestampLayout), uuid.NewString()}
	if err := s.store.Append(ctx, series, row); err != nil {
		return 0, fmt.Errorf("record %s: %w", metric, err)
	}

	s.invalidateDerived(metric)
	return count + 1, nil
}

// ExerciseRecord 返回一次运动记录的结果。
type ExerciseRecord struct {
	TypeLabel string `json:"type"`
	Minutes   int    `json:"minutes"`
	Calories  int    `json:"calories"`
}

// RecordExercise 记录一次运动，卡路里按类型估算表折算。
func (s *TrackerService) RecordExercise(ctx context.Context, typeLabel string, minutes int) (ExerciseRecord, error) {
	if minutes <= 0 {
		return ExerciseRecord{}, ErrInvalidDuration
	}

	series := SeriesExercise
	lock := s.lockSeries(series)
	lock.Lock()
	defer lock.Unlock()

	calories := minutes * CaloriesPerMinute(typeLabel)
	row := []string{
		s.localNow().Format(timestampLayout),
		typeLabel,
		strconv.Itoa(minutes),
		strconv.Itoa(calories),
		uuid.NewString(),
	}
	if err := s.store.Append(ctx, series, row); err != nil {
		return ExerciseRecord{}, fmt.Errorf("record exercise: %w", err)
	}

	s.invalidateDerived(MetricExercise)
	return ExerciseRecord{TypeLabel: typeLabel, Minutes: minutes, Calories: calories}, nil
}

// RecordWeight 记录体重（公斤），超出 20–300 的输入直接拒绝。
func (s *TrackerService) RecordWeight(ctx context.Context, kg float64) error {
	if kg < 20 || kg > 300 {
		return ErrWeightOutOfRange
	}

	lock := s.lockSeries(SeriesWeight)
	lock.Lock()
	defer lock.Unlock()

	row := []string{
		s.localNow().Format(timestampLayout),
		strconv.FormatFloat(kg, 'f', 1, 64),
		uuid.NewString(),
	}
	if err := s.store.Append(ctx, SeriesWeight, row); err != nil {
		return fmt.Errorf("record weight: %w", err)
	}

	s.invalidateDerived(MetricWeight)
	return nil
}

// RecordSleep 记录一晚睡眠；日期取当天，时长与质量在边界校验。
func (s *TrackerService) RecordSleep(ctx context.Context, hours float64, quality int, note string) error {
	if hours < 0 || hours > 24 {
		return ErrInvalidSleepHours
	}
	if quality < 1 || quality > 5 {
		return ErrInvalidQuality
	}

	lock := s.lockSeries(SeriesSleep)
	lock.Lock()
	defer lock.Unlock()

	row := []string{
		s.today(),
		strconv.FormatFloat(hours, 'f', 1, 64),
		strconv.Itoa(quality),
		note,
		uuid.NewString(),
	}
	if err := s.store.Append(ctx, SeriesSleep, row); err != nil {
		return fmt.Errorf("record sleep: %w", err)
	}
	return nil
}

// RecordMeal 记录一餐；calories 传 0 表示未知。
func (s *TrackerService) RecordMeal(ctx context.Context, mealType, foods string, calories int) error {
	if calories < 0 {
		calories = 0
	}

	lock := s.lockSeries(SeriesMeal)
	lock.Lock()
	defer lock.Unlock()

	row := []string{
		s.localNow().Format(timestampLayout),
		mealType,
		foods,
		strconv.Itoa(calories),
		uuid.NewString(),
	}
	if err := s.store.Append(ctx, SeriesMeal, row); err != nil {
		return fmt.Errorf("record meal: %w", err)
	}
	return nil
}

// RecordMood 记录一次心情，情绪分由表情推导。
func (s *TrackerService) RecordMood(ctx context.Context, emoji, note string) (int, error) {
	score, ok := moodScores[emoji]
	if !ok {
		score = 3
	}

	lock := s.lockSeries(SeriesMood)
	lock.Lock()
	defer lock.Unlock()

	row := []string{
		s.localNow().Format(timestampLayout),
		emoji,
		strconv.Itoa(score),
		note,
		uuid.NewString(),
	}
	if err := s.store.Append(ctx, SeriesMood, row); err != nil {
		return 0, fmt.Errorf("record mood: %w", err)
	}
	return score, nil
}

// SetCount 把某个轻点型指标的当日计数调整为 target：
// 不足则补写、超出则从最新一条开始删除，其余日期的数据不受影响。
func (s *TrackerService) SetCount(ctx context.Context, metric Metric, target int) (int, error) {
	if target < 0 {
		return 0, ErrNegativeTarget
	}
	if metric != MetricHydration && metric != MetricPosture {
		return 0, ErrUnsupportedMetric
	}

	series := metric.Series()
	lock := s.lockSeries(series)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.store.ListAll(ctx, series)
	if err != nil {
		return 0, fmt.Errorf("set count %s: %w", metric, err)
	}

	today := s.today()
	indices := todayIndices(rows, s.zone, today)

	switch {
	case len(indices) < target:
		now := s.localNow().Format(timestampLayout)
		for i := len(indices); i < target; i++ {
			if err := s.store.Append(ctx, series, []string{now, uuid.NewString()}); err != nil {
				return 0, fmt.Errorf("set count %s: %w", metric, err)
			}
		}
	case len(indices) > target:
		// 从最大的下标往回删，保证尚未处理的下标不漂移
		for i := len(indices) - 1; i >= target; i-- {
			if err := s.store.DeleteAt(ctx, series, indices[i]); err != nil {
				return 0, fmt.Errorf("set count %s: %w", metric, err)
			}
		}
	}

	s.invalidateDerived(metric)
	return target, nil
}

// DeleteMostRecent 删除某指标当日最新的一条记录，返回剩余当日计数。
func (s *TrackerService) DeleteMostRecent(ctx context.Context, metric Metric) (int, error) {
	series := metric.Series()
	lock := s.lockSeries(series)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.store.ListAll(ctx, series)
	if err != nil {
		return 0, fmt.Errorf("delete recent %s: %w", metric, err)
	}

	today := s.today()
	indices := todayIndices(rows, s.zone, today)
	if len(indices) == 0 {
		return 0, ErrNothingToDelete
	}

	if err := s.store.DeleteAt(ctx, series, indices[len(indices)-1]); err != nil {
		return 0, fmt.Errorf("delete recent %s: %w", metric, err)
	}

	s.invalidateDerived(metric)
	return len(indices) - 1, nil
}

// ClearToday 删除某指标当日的全部记录，返回删除的条数。
func (s *TrackerService) ClearToday(ctx context.Context, metric Metric) (int, error) {
	series := metric.Series()
	lock := s.lockSeries(series)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.store.ListAll(ctx, series)
	if err != nil {
		return 0, fmt.Errorf("clear today %s: %w", metric, err)
	}

	today := s.today()
	indices := todayIndices(rows, s.zone, today)
	for i := len(indices) - 1; i >= 0; i-- {
		if err := s.store.DeleteAt(ctx, series, indices[i]); err != nil {
			return 0, fmt.Errorf("clear today %s: %w", metric, err)
		}
	}

	if len(indices) > 0 {
		s.invalidateDerived(metric)
	}
	return len(indices), nil
}

// todayIndices 返回快照里属于 today 的行下标，保持追加顺序。
func todayIndices(rows [][]string, zone *time.Location, today string) []int {
	var indices []int
	for i, row := range rows {
		if dayOf(cell(row, 0), zone) == today {
			indices = append(indices, i)
		}
	}
	return indices
}

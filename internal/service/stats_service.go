package service

import (
	"context"
	"fmt"
	"time"

	"github.com/neonpulse/internal/cache"
	"github.com/neonpulse/internal/rowstore"
)

// DailyStats 是某个日历日的聚合结果，字段命名与既有看板一致。
type DailyStats struct {
	Date             string          `json:"date"`
	HydrationCount   int             `json:"water_count"`
	PostureCount     int             `json:"stand_count"`
	ExerciseMinutes  int             `json:"exercise_minutes"`
	ExerciseCalories int             `json:"exercise_calories"`
	Exercises        []ExerciseEntry `json:"exercises"`
}

// ExerciseEntry 供展示层列出当日的运动明细。
type ExerciseEntry struct {
	TypeLabel string `json:"type"`
	Minutes   int    `json:"minutes"`
}

// NewZeroDailyStats 返回全零的日统计，用于存储不可用时的兜底响应。
func NewZeroDailyStats(date string) DailyStats {
	return DailyStats{Date: date, Exercises: []ExerciseEntry{}}
}

// WeeklyDay 是周报中的单日条目，带有按当前目标判定的达标标记。
type WeeklyDay struct {
	DailyStats
	Weekday      string `json:"weekday"`
	HydrationMet bool   `json:"water_met"`
	PostureMet   bool   `json:"stand_met"`
	ExerciseMet  bool   `json:"exercise_met"`
	AllMet       bool   `json:"all_met"`
}

// WeeklySummary 覆盖包含今天的那个自然周（周一起算）。
// 目标统一取当前配置，不按历史日期回溯当时的目标。
type WeeklySummary struct {
	WeekStart            string      `json:"week_start"`
	Days                 []WeeklyDay `json:"days"`
	TotalHydration       int         `json:"total_water"`
	TotalPosture         int         `json:"total_stand"`
	TotalExerciseMinutes int         `json:"total_exercise_minutes"`
	TotalCalories        int         `json:"total_exercise_calories"`
	DaysHydrationMet     int         `json:"days_water_met"`
	DaysPostureMet       int         `json:"days_stand_met"`
	DaysExerciseMet      int         `json:"days_exercise_met"`
	DaysAllGoalsMet      int         `json:"days_all_goals_met"`
	Goals                GoalConfig  `json:"goals"`
}

// WeightEntry 是单条体重记录。
type WeightEntry struct {
	Timestamp string  `json:"timestamp"`
	Date      string  `json:"date"`
	Kilograms float64 `json:"kg"`
}

// WeightSummary 汇总体重走势。
type WeightSummary struct {
	Count    int           `json:"count"`
	Latest   float64       `json:"latest"`
	LatestAt string        `json:"latest_at"`
	First    float64       `json:"first"`
	Change   float64       `json:"change"`
	Min      float64       `json:"min"`
	Max      float64       `json:"max"`
	Average  float64       `json:"average"`
	Recent   []WeightEntry `json:"recent"`
}

// LifetimeTotals 是成就判定所需的各指标累计值。
type LifetimeTotals struct {
	HydrationCount   int
	PostureCount     int
	ExerciseMinutes  int
	ExerciseSessions int
	WeightEntries    int
	SleepEntries     int
	MealEntries      int
	MoodEntries      int
}

// weekdayLabels 按周一起算的中文星期标签。
var weekdayLabels = []string{"一", "二", "三", "四", "五", "六", "日"}

// StatsService 把行存储的原始行扫描成按天/按周的派生统计。
// 每次查询都完整重扫快照，不做增量，这样乱序写入也不会算错。
type StatsService struct {
	store rowstore.Store
	cache *cache.Cache
	goals *GoalService
	zone  *time.Location
	now   func() time.Time
}

// NewStatsService 构造 StatsService；now 传 nil 时使用系统时钟。
func NewStatsService(store rowstore.Store, c *cache.Cache, goals *GoalService, zone *time.Location, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{store: store, cache: c, goals: goals, zone: zone, now: now}
}

// Today 返回固定时区下「今天」的日期文本。
func (s *StatsService) Today() string {
	return s.now().In(s.zone).Format(dateLayout)
}

// TodayStats 返回今天的聚合统计，结果经 TTL 缓存。
func (s *StatsService) TodayStats(ctx context.Context) (DailyStats, error) {
	value, err := s.cache.Get(cache.KeyTodayStats, func() (interface{}, error) {
		return s.DailyStats(ctx, s.Today())
	})
	if err != nil {
		return DailyStats{}, err
	}
	return value.(DailyStats), nil
}

// DailyStats 计算指定日期的统计，date 形如 2006-01-02。
func (s *StatsService) DailyStats(ctx context.Context, date string) (DailyStats, error) {
	buckets, err := s.dailyBuckets(ctx)
	if err != nil {
		return DailyStats{}, err
	}
	return s.statsFor(buckets, date), nil
}

// WeeklySummary 计算包含今天的自然周汇总，结果经 TTL 缓存。
func (s *StatsService) WeeklySummary(ctx context.Context) (WeeklySummary, error) {
	value, err := s.cache.Get(cache.KeyWeekStats, func() (interface{}, error) {
		return s.weeklySummary(ctx)
	})
	if err != nil {
		return WeeklySummary{}, err
	}
	return value.(WeeklySummary), nil
}

func (s *StatsService) weeklySummary(ctx context.Context) (WeeklySummary, error) {
	goals, err := s.goals.EffectiveGoals(ctx)
	if err != nil {
		return WeeklySummary{}, err
	}

	buckets, err := s.dailyBuckets(ctx)
	if err != nil {
		return WeeklySummary{}, err
	}

	weekStart := mondayOf(s.now().In(s.zone))
	summary := WeeklySummary{
		WeekStart: weekStart.Format(dateLayout),
		Days:      make([]WeeklyDay, 0, 7),
		Goals:     goals,
	}

	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i).Format(dateLayout)
		stats := s.statsFor(buckets, date)

		day := WeeklyDay{
			DailyStats:   stats,
			Weekday:      weekdayLabels[i],
			HydrationMet: stats.HydrationCount >= goals.HydrationTarget,
			PostureMet:   stats.PostureCount >= goals.PostureTarget,
			ExerciseMet:  stats.ExerciseMinutes >= goals.ExerciseMinutesTarget,
		}
		day.AllMet = day.HydrationMet && day.PostureMet && day.ExerciseMet

		summary.Days = append(summary.Days, day)
		summary.TotalHydration += stats.HydrationCount
		summary.TotalPosture += stats.PostureCount
		summary.TotalExerciseMinutes += stats.ExerciseMinutes
		summary.TotalCalories += stats.ExerciseCalories
		if day.HydrationMet {
			summary.DaysHydrationMet++
		}
		if day.PostureMet {
			summary.DaysPostureMet++
		}
		if day.ExerciseMet {
			summary.DaysExerciseMet++
		}
		if day.AllMet {
			summary.DaysAllGoalsMet++
		}
	}

	return summary, nil
}

// WeightSummary 汇总全部体重记录，结果经 TTL 缓存。
func (s *StatsService) WeightSummary(ctx context.Context) (WeightSummary, error) {
	value, err := s.cache.Get(cache.KeyWeightSummary, func() (interface{}, error) {
		return s.weightSummary(ctx)
	})
	if err != nil {
		return WeightSummary{}, err
	}
	return value.(WeightSummary), nil
}

func (s *StatsService) weightSummary(ctx context.Context) (WeightSummary, error) {
	rows, err := s.store.ListAll(ctx, SeriesWeight)
	if err != nil {
		return WeightSummary{}, fmt.Errorf("weight summary: %w", err)
	}

	summary := WeightSummary{Recent: []WeightEntry{}}
	var sum float64
	for _, row := range rows {
		kg := floatOrZero(cell(row, 1))
		if kg <= 0 {
			continue
		}

		entry := WeightEntry{
			Timestamp: cell(row, 0),
			Date:      dayOf(cell(row, 0), s.zone),
			Kilograms: kg,
		}

		if summary.Count == 0 {
			summary.First = kg
			summary.Min = kg
			summary.Max = kg
		}
		if kg < summary.Min {
			summary.Min = kg
		}
		if kg > summary.Max {
			summary.Max = kg
		}
		summary.Latest = kg
		summary.LatestAt = entry.Timestamp
		summary.Count++
		sum += kg
		summary.Recent = append(summary.Recent, entry)
	}

	if summary.Count > 0 {
		summary.Average = roundTenth(sum / float64(summary.Count))
		summary.Change = roundTenth(summary.Latest - summary.First)
	}
	if len(summary.Recent) > 7 {
		summary.Recent = summary.Recent[len(summary.Recent)-7:]
	}
	return summary, nil
}

// LifetimeTotals 扫描全部序列得到累计值，供成就引擎使用。
func (s *StatsService) LifetimeTotals(ctx context.Context) (LifetimeTotals, error) {
	var totals LifetimeTotals

	water, err := s.store.ListAll(ctx, SeriesWater)
	if err != nil {
		return totals, fmt.Errorf("lifetime totals: %w", err)
	}
	totals.HydrationCount = len(water)

	stand, err := s.store.ListAll(ctx, SeriesStand)
	if err != nil {
		return totals, fmt.Errorf("lifetime totals: %w", err)
	}
	totals.PostureCount = len(stand)

	exercise, err := s.store.ListAll(ctx, SeriesExercise)
	if err != nil {
		return totals, fmt.Errorf("lifetime totals: %w", err)
	}
	totals.ExerciseSessions = len(exercise)
	for _, row := range exercise {
		totals.ExerciseMinutes += atoiOrZero(cell(row, 2))
	}

	for series, target := range map[string]*int{
		SeriesWeight: &totals.WeightEntries,
		SeriesSleep:  &totals.SleepEntries,
		SeriesMeal:   &totals.MealEntries,
		SeriesMood:   &totals.MoodEntries,
	} {
		rows, err := s.store.ListAll(ctx, series)
		if err != nil {
			return totals, fmt.Errorf("lifetime totals: %w", err)
		}
		*target = len(rows)
	}

	return totals, nil
}

// loggedDates 返回某序列出现过记录的日期集合，供连续打卡统计使用。
func (s *StatsService) loggedDates(ctx context.Context, series string) (map[string]bool, error) {
	rows, err := s.store.ListAll(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("logged dates %s: %w", series, err)
	}

	dates := make(map[string]bool, len(rows))
	for _, row := range rows {
		if date := dayOf(cell(row, 0), s.zone); date != "" {
			dates[date] = true
		}
	}
	return dates, nil
}

// dailyBuckets 把三个核心序列各扫描一遍，按日期聚合。
func (s *StatsService) dailyBuckets(ctx context.Context) (map[string]*DailyStats, error) {
	buckets := make(map[string]*DailyStats)
	bucket := func(date string) *DailyStats {
		if b, ok := buckets[date]; ok {
			return b
		}
		b := &DailyStats{Date: date, Exercises: []ExerciseEntry{}}
		buckets[date] = b
		return b
	}

	water, err := s.store.ListAll(ctx, SeriesWater)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	for _, row := range water {
		if date := dayOf(cell(row, 0), s.zone); date != "" {
			bucket(date).HydrationCount++
		}
	}

	stand, err := s.store.ListAll(ctx, SeriesStand)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	for _, row := range stand {
		if date := dayOf(cell(row, 0), s.zone); date != "" {
			bucket(date).PostureCount++
		}
	}

	exercise, err := s.store.ListAll(ctx, SeriesExercise)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	for _, row := range exercise {
		date := dayOf(cell(row, 0), s.zone)
		if date == "" {
			continue
		}
		b := bucket(date)
		minutes := atoiOrZero(cell(row, 2))
		b.ExerciseMinutes += minutes
		b.ExerciseCalories += atoiOrZero(cell(row, 3))
		b.Exercises = append(b.Exercises, ExerciseEntry{TypeLabel: cell(row, 1), Minutes: minutes})
	}

	return buckets, nil
}

func (s *StatsService) statsFor(buckets map[string]*DailyStats, date string) DailyStats {
	if b, ok := buckets[date]; ok {
		return *b
	}
	return NewZeroDailyStats(date)
}

// mondayOf 返回 t 所在自然周的周一零点。
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

func roundTenth(f float64) float64 {
	if f < 0 {
		return float64(int(f*10-0.5)) / 10
	}
	return float64(int(f*10+0.5)) / 10
}

package service

import (
	"context"
)

// AchievementKind 区分成就的判定方式。
type AchievementKind string

const (
	// KindTotal 按累计总量判定。
	KindTotal AchievementKind = "total"
	// KindStreak 按连续天数判定。
	KindStreak AchievementKind = "streak"
)

// 成就规则使用的统计键。
const (
	statHydrationTotal = "hydration_total"
	statPostureTotal   = "posture_total"
	statExerciseTotal  = "exercise_minutes_total"
	statWeightEntries  = "weight_entries"
	statGoalStreak     = "goal_streak"
	statSleepStreak    = "sleep_streak"
	statMealStreak     = "meal_streak"
	statMoodStreak     = "mood_streak"
)

// Achievement 是一条可解锁的里程碑规则。
type Achievement struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        AchievementKind `json:"kind"`
	Stat        string          `json:"stat"`
	Threshold   int             `json:"threshold"`
}

// catalog 是静态成就表，所有规则统一按 value >= threshold 判定。
var catalog = []Achievement{
	{ID: "water-50", Name: "初級水分補給", Description: "累計喝水 50 杯", Kind: KindTotal, Stat: statHydrationTotal, Threshold: 50},
	{ID: "water-500", Name: "水分補給達人", Description: "累計喝水 500 杯", Kind: KindTotal, Stat: statHydrationTotal, Threshold: 500},
	{ID: "water-2000", Name: "行走的水庫", Description: "累計喝水 2000 杯", Kind: KindTotal, Stat: statHydrationTotal, Threshold: 2000},
	{ID: "stand-50", Name: "動起來", Description: "累計起身 50 次", Kind: KindTotal, Stat: statPostureTotal, Threshold: 50},
	{ID: "stand-500", Name: "久坐剋星", Description: "累計起身 500 次", Kind: KindTotal, Stat: statPostureTotal, Threshold: 500},
	{ID: "exercise-300", Name: "熱身完畢", Description: "累計運動 300 分鐘", Kind: KindTotal, Stat: statExerciseTotal, Threshold: 300},
	{ID: "exercise-1500", Name: "運動習慣養成", Description: "累計運動 1500 分鐘", Kind: KindTotal, Stat: statExerciseTotal, Threshold: 1500},
	{ID: "exercise-6000", Name: "鐵人精神", Description: "累計運動 6000 分鐘", Kind: KindTotal, Stat: statExerciseTotal, Threshold: 6000},
	{ID: "weight-10", Name: "體重追蹤者", Description: "累計記錄體重 10 次", Kind: KindTotal, Stat: statWeightEntries, Threshold: 10},
	{ID: "streak-3", Name: "三日小成", Description: "連續 3 天全部達標", Kind: KindStreak, Stat: statGoalStreak, Threshold: 3},
	{ID: "streak-7", Name: "一週全勤", Description: "連續 7 天全部達標", Kind: KindStreak, Stat: statGoalStreak, Threshold: 7},
	{ID: "streak-30", Name: "鋼鐵紀律", Description: "連續 30 天全部達標", Kind: KindStreak, Stat: statGoalStreak, Threshold: 30},
	{ID: "sleep-7", Name: "安眠一週", Description: "連續 7 天記錄睡眠", Kind: KindStreak, Stat: statSleepStreak, Threshold: 7},
	{ID: "meal-7", Name: "飲食日誌一週", Description: "連續 7 天記錄飲食", Kind: KindStreak, Stat: statMealStreak, Threshold: 7},
	{ID: "mood-7", Name: "心情日記一週", Description: "連續 7 天記錄心情", Kind: KindStreak, Stat: statMoodStreak, Threshold: 7},
}

// Catalog 返回完整成就表的副本。
func Catalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// AchievementService 按需全量评估成就表，不落盘、不记「已通知」状态；
// 想要「新解锁」语义的调用方自行对两次结果做差。
type AchievementService struct {
	stats   *StatsService
	streaks *StreakService
}

// NewAchievementService 构造 AchievementService。
func NewAchievementService(stats *StatsService, streaks *StreakService) *AchievementService {
	return &AchievementService{stats: stats, streaks: streaks}
}

// Unlocked 返回当前已满足阈值的成就子集。
func (s *AchievementService) Unlocked(ctx context.Context) ([]Achievement, error) {
	totals, err := s.stats.LifetimeTotals(ctx)
	if err != nil {
		return nil, err
	}

	goalStreak, err := s.streaks.Current(ctx)
	if err != nil {
		return nil, err
	}
	sleepStreak, err := s.streaks.LoggingStreak(ctx, MetricSleep)
	if err != nil {
		return nil, err
	}
	mealStreak, err := s.streaks.LoggingStreak(ctx, MetricMeal)
	if err != nil {
		return nil, err
	}
	moodStreak, err := s.streaks.LoggingStreak(ctx, MetricMood)
	if err != nil {
		return nil, err
	}

	values := map[string]int{
		statHydrationTotal: totals.HydrationCount,
		statPostureTotal:   totals.PostureCount,
		statExerciseTotal:  totals.ExerciseMinutes,
		statWeightEntries:  totals.WeightEntries,
		statGoalStreak:     goalStreak,
		statSleepStreak:    sleepStreak,
		statMealStreak:     mealStreak,
		statMoodStreak:     moodStreak,
	}

	unlocked := make([]Achievement, 0, len(catalog))
	for _, rule := range catalog {
		if values[rule.Stat] >= rule.Threshold {
			unlocked = append(unlocked, rule)
		}
	}
	return unlocked, nil
}

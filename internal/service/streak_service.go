package service

import (
	"context"
	"time"

	"github.com/neonpulse/internal/cache"
)

const (
	// maxStreakChecks 限制连续达标回溯的天数检查次数。
	maxStreakChecks = 30
	// maxLoggingStreakChecks 限制打卡连续性的回溯窗口。
	maxLoggingStreakChecks = 365
)

// StreakService 从今天起逐日往回走，统计连续达标天数。
// 今天允许「尚未完成」：不达标也不中断，只是不计入；
// 从昨天起遇到第一个不达标的日子立即停止。
type StreakService struct {
	stats *StatsService
	goals *GoalService
	cache *cache.Cache
	zone  *time.Location
	now   func() time.Time
}

// NewStreakService 构造 StreakService；now 传 nil 时使用系统时钟。
func NewStreakService(stats *StatsService, goals *GoalService, c *cache.Cache, zone *time.Location, now func() time.Time) *StreakService {
	if now == nil {
		now = time.Now
	}
	return &StreakService{stats: stats, goals: goals, cache: c, zone: zone, now: now}
}

// Current 返回当前连续达标天数，结果经 TTL 缓存。
func (s *StreakService) Current(ctx context.Context) (int, error) {
	value, err := s.cache.Get(cache.KeyStreak, func() (interface{}, error) {
		return s.walk(ctx)
	})
	if err != nil {
		return 0, err
	}
	return value.(int), nil
}

func (s *StreakService) walk(ctx context.Context) (int, error) {
	goals, err := s.goals.EffectiveGoals(ctx)
	if err != nil {
		return 0, err
	}

	buckets, err := s.stats.dailyBuckets(ctx)
	if err != nil {
		return 0, err
	}

	today := s.now().In(s.zone)
	todayKey := today.Format(dateLayout)

	streak := 0
	day := today
	for i := 0; i < maxStreakChecks; i++ {
		key := day.Format(dateLayout)
		stats := s.stats.statsFor(buckets, key)

		switch {
		case meetsAllGoals(stats, goals):
			streak++
		case key == todayKey:
			// 今天可能还没过完，不中断
		default:
			return streak, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

// meetsAllGoals 判断某日三项指标是否全部达标。
func meetsAllGoals(stats DailyStats, goals GoalConfig) bool {
	return stats.HydrationCount >= goals.HydrationTarget &&
		stats.PostureCount >= goals.PostureTarget &&
		stats.ExerciseMinutes >= goals.ExerciseMinutesTarget
}

// LoggingStreak 统计某序列连续有记录的天数（睡眠/饮食/心情打卡）。
// 与达标连续一样，今天缺卡不算中断。
func (s *StreakService) LoggingStreak(ctx context.Context, metric Metric) (int, error) {
	dates, err := s.stats.loggedDates(ctx, metric.Series())
	if err != nil {
		return 0, err
	}

	today := s.now().In(s.zone)
	todayKey := today.Format(dateLayout)

	streak := 0
	day := today
	for i := 0; i < maxLoggingStreakChecks; i++ {
		key := day.Format(dateLayout)
		switch {
		case dates[key]:
			streak++
		case key == todayKey:
			// 今天尚未打卡不中断
		default:
			return streak, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/neonpulse/internal/cache"
	"github.com/neonpulse/internal/rowstore"
)

// 设置记录中的键名，沿用既有表格的列名。
const (
	settingGoalWater     = "goal_water"
	settingGoalStand     = "goal_stand"
	settingGoalExercise  = "goal_exercise"
	settingWaterInterval = "water_interval"
	settingStandInterval = "stand_interval"
	settingDNDStart      = "dnd_start"
	settingDNDEnd        = "dnd_end"
	settingEnabled       = "enabled"
)

// GoalConfig 是三项核心指标的每日目标，解析后恒为正数。
type GoalConfig struct {
	HydrationTarget       int `json:"water_target"`
	PostureTarget         int `json:"stand_target"`
	ExerciseMinutesTarget int `json:"exercise_minutes_target"`
}

// DefaultGoals 在设置缺失、为零或非数字时生效。
var DefaultGoals = GoalConfig{
	HydrationTarget:       8,
	PostureTarget:         6,
	ExerciseMinutesTarget: 30,
}

// ReminderSettings 是提醒相关的设置快照，未收录的键透传在 Extra 里。
type ReminderSettings struct {
	WaterInterval int               `json:"water_interval"`
	StandInterval int               `json:"stand_interval"`
	DNDStart      string            `json:"dnd_start"`
	DNDEnd        string            `json:"dnd_end"`
	Enabled       bool              `json:"enabled"`
	Extra         map[string]string `json:"extra,omitempty"`
}

var (
	// ErrInvalidGoal 在目标值不是正整数时返回。
	ErrInvalidGoal = errors.New("goal must be a positive integer")
	// ErrGoalMetricUnsupported 在为不支持目标的指标设目标时返回。
	ErrGoalMetricUnsupported = errors.New("metric has no daily goal")
	// ErrInvalidSetting 在设置值未通过校验时返回。
	ErrInvalidSetting = errors.New("invalid setting value")
)

var timeOfDayPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// GoalService 负责目标与提醒设置的读写。
// 读取是设置快照的纯函数；缓存由外层 TTL 缓存承担。
type GoalService struct {
	store rowstore.Store
	cache *cache.Cache
}

// NewGoalService 构造 GoalService。
func NewGoalService(store rowstore.Store, c *cache.Cache) *GoalService {
	return &GoalService{store: store, cache: c}
}

// EffectiveGoals 返回当前生效的目标：存储值为正整数时采用，否则回退默认。
func (s *GoalService) EffectiveGoals(ctx context.Context) (GoalConfig, error) {
	value, err := s.cache.Get(cache.KeyGoals, func() (interface{}, error) {
		settings, err := s.store.ReadSettings(ctx)
		if err != nil {
			return GoalConfig{}, fmt.Errorf("effective goals: %w", err)
		}
		return resolveGoals(settings), nil
	})
	if err != nil {
		return GoalConfig{}, err
	}
	return value.(GoalConfig), nil
}

// resolveGoals 对设置快照逐项做正整数校验，不合法即回退默认值。
func resolveGoals(settings map[string]string) GoalConfig {
	goals := DefaultGoals
	if v := positiveInt(settings[settingGoalWater]); v > 0 {
		goals.HydrationTarget = v
	}
	if v := positiveInt(settings[settingGoalStand]); v > 0 {
		goals.PostureTarget = v
	}
	if v := positiveInt(settings[settingGoalExercise]); v > 0 {
		goals.ExerciseMinutesTarget = v
	}
	return goals
}

// SetGoal 更新某指标的每日目标并使相关派生视图失效。
func (s *GoalService) SetGoal(ctx context.Context, metric Metric, value int) error {
	if value <= 0 {
		return ErrInvalidGoal
	}

	var key string
	switch metric {
	case MetricHydration:
		key = settingGoalWater
	case MetricPosture:
		key = settingGoalStand
	case MetricExercise:
		key = settingGoalExercise
	default:
		return ErrGoalMetricUnsupported
	}

	if err := s.store.WriteSetting(ctx, key, strconv.Itoa(value)); err != nil {
		return fmt.Errorf("set goal %s: %w", metric, err)
	}

	// 目标影响周报达标数与连续天数
	s.cache.Invalidate(cache.KeyGoals, cache.KeyWeekStats, cache.KeyStreak, cache.KeySettings)
	return nil
}

// Settings 返回提醒设置快照，缺失项补默认值。
func (s *GoalService) Settings(ctx context.Context) (ReminderSettings, error) {
	value, err := s.cache.Get(cache.KeySettings, func() (interface{}, error) {
		raw, err := s.store.ReadSettings(ctx)
		if err != nil {
			return ReminderSettings{}, fmt.Errorf("read settings: %w", err)
		}
		return resolveSettings(raw), nil
	})
	if err != nil {
		return ReminderSettings{}, err
	}
	return value.(ReminderSettings), nil
}

// DefaultReminderSettings 返回全默认的提醒设置，供存储不可用时兜底。
func DefaultReminderSettings() ReminderSettings {
	return resolveSettings(nil)
}

func resolveSettings(raw map[string]string) ReminderSettings {
	settings := ReminderSettings{
		WaterInterval: 60,
		StandInterval: 45,
		DNDStart:      "22:00",
		DNDEnd:        "08:00",
		Enabled:       true,
	}

	if v := positiveInt(raw[settingWaterInterval]); v > 0 {
		settings.WaterInterval = v
	}
	if v := positiveInt(raw[settingStandInterval]); v > 0 {
		settings.StandInterval = v
	}
	if v := strings.TrimSpace(raw[settingDNDStart]); timeOfDayPattern.MatchString(v) {
		settings.DNDStart = v
	}
	if v := strings.TrimSpace(raw[settingDNDEnd]); timeOfDayPattern.MatchString(v) {
		settings.DNDEnd = v
	}
	if v := strings.TrimSpace(raw[settingEnabled]); v != "" {
		settings.Enabled = strings.EqualFold(v, "true")
	}

	known := map[string]bool{
		settingWaterInterval: true, settingStandInterval: true,
		settingDNDStart: true, settingDNDEnd: true, settingEnabled: true,
		settingGoalWater: true, settingGoalStand: true, settingGoalExercise: true,
	}
	for key, value := range raw {
		if known[key] {
			continue
		}
		if settings.Extra == nil {
			settings.Extra = make(map[string]string)
		}
		settings.Extra[key] = value
	}

	return settings
}

// UpdateSetting 写入一项设置。已知键按各自规则校验，
// 未知键原样透传以保持向前兼容。
func (s *GoalService) UpdateSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case settingWaterInterval, settingStandInterval:
		if positiveInt(value) <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer", ErrInvalidSetting, key)
		}
	case settingDNDStart, settingDNDEnd:
		if !timeOfDayPattern.MatchString(value) {
			return fmt.Errorf("%w: %s must look like 22:00", ErrInvalidSetting, key)
		}
	case settingEnabled:
		if !strings.EqualFold(value, "true") && !strings.EqualFold(value, "false") {
			return fmt.Errorf("%w: enabled must be true or false", ErrInvalidSetting)
		}
	case settingGoalWater, settingGoalStand, settingGoalExercise:
		if positiveInt(value) <= 0 {
			return ErrInvalidGoal
		}
	}

	if err := s.store.WriteSetting(ctx, key, value); err != nil {
		return fmt.Errorf("update setting %s: %w", key, err)
	}

	s.cache.Invalidate(cache.KeySettings, cache.KeyGoals, cache.KeyWeekStats, cache.KeyStreak)
	return nil
}

// positiveInt 解析正整数，任何不合法输入都返回 0。
func positiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

package service

import (
	"strconv"
	"strings"
	"time"
)

// Metric 标识一类健康事件，对应行存储里的一个序列。
type Metric string

const (
	MetricHydration Metric = "hydration"
	MetricPosture   Metric = "posture"
	MetricExercise  Metric = "exercise"
	MetricWeight    Metric = "weight"
	MetricSleep     Metric = "sleep"
	MetricMeal      Metric = "meal"
	MetricMood      Metric = "mood"
)

// 行存储中的序列名，沿用既有表格的工作表命名。
const (
	SeriesWater    = "water_log"
	SeriesStand    = "stand_log"
	SeriesExercise = "exercise_log"
	SeriesWeight   = "weight_log"
	SeriesSleep    = "sleep_log"
	SeriesMeal     = "meal_log"
	SeriesMood     = "mood_log"
)

// 时间戳与日期在表格中的文本格式。
const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

// Series 返回该指标在行存储中的序列名。
func (m Metric) Series() string {
	switch m {
	case MetricHydration:
		return SeriesWater
	case MetricPosture:
		return SeriesStand
	case MetricExercise:
		return SeriesExercise
	case MetricWeight:
		return SeriesWeight
	case MetricSleep:
		return SeriesSleep
	case MetricMeal:
		return SeriesMeal
	case MetricMood:
		return SeriesMood
	}
	return string(m)
}

// ParseMetric 解析外部输入的指标名，接受英文标识与表格序列名两种写法。
func ParseMetric(raw string) (Metric, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hydration", "water", SeriesWater:
		return MetricHydration, true
	case "posture", "stand", SeriesStand:
		return MetricPosture, true
	case "exercise", SeriesExercise:
		return MetricExercise, true
	case "weight", SeriesWeight:
		return MetricWeight, true
	case "sleep", SeriesSleep:
		return MetricSleep, true
	case "meal", SeriesMeal:
		return MetricMeal, true
	case "mood", SeriesMood:
		return MetricMood, true
	}
	return "", false
}

// exerciseCalories 是每分钟卡路里估算表，未知类型按「其他」计。
var exerciseCalories = map[string]int{
	"跑步": 10,
	"走路": 4,
	"游泳": 12,
	"騎車": 8,
	"重訓": 6,
	"瑜伽": 4,
	"跳繩": 12,
	"籃球": 8,
	"羽球": 7,
	"桌球": 5,
	"其他": 5,
}

const defaultCaloriesPerMinute = 5

// CaloriesPerMinute 返回某运动类型的每分钟卡路里估算值。
func CaloriesPerMinute(typeLabel string) int {
	if rate, ok := exerciseCalories[strings.TrimSpace(typeLabel)]; ok {
		return rate
	}
	return defaultCaloriesPerMinute
}

// KnownExerciseType 判断输入是否为内建的运动类型。
func KnownExerciseType(typeLabel string) bool {
	_, ok := exerciseCalories[strings.TrimSpace(typeLabel)]
	return ok
}

// atoiOrZero 把单元格文本解析为整数，任何解析失败都按 0 处理，
// 聚合永远不会因脏数据报错。
func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// floatOrZero 同 atoiOrZero，用于体重等小数字段。
func floatOrZero(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return f
}

// cell 安全取出一行的第 i 个单元格，越界返回空串。
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// dayOf 把时间戳文本解析为固定时区下的日期桶；无法解析时返回空串，
// 该行随即被所有按天统计忽略。
func dayOf(ts string, zone *time.Location) string {
	raw := strings.TrimSpace(ts)
	if raw == "" {
		return ""
	}
	if t, err := time.ParseInLocation(timestampLayout, raw, zone); err == nil {
		return t.Format(dateLayout)
	}
	// sleep_log 这类序列直接存日期
	if t, err := time.ParseInLocation(dateLayout, raw, zone); err == nil {
		return t.Format(dateLayout)
	}
	return ""
}

// parseTimestamp 解析时间戳文本；失败时返回零值。
func parseTimestamp(ts string, zone *time.Location) time.Time {
	t, err := time.ParseInLocation(timestampLayout, strings.TrimSpace(ts), zone)
	if err != nil {
		return time.Time{}
	}
	return t
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/neonpulse/internal/rowstore"
	"github.com/neonpulse/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// respondServiceError 把核心层的哨兵错误映射为合适的 HTTP 状态码。
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNegativeTarget),
		errors.Is(err, service.ErrInvalidGoal),
		errors.Is(err, service.ErrInvalidSetting),
		errors.Is(err, service.ErrUnsupportedMetric),
		errors.Is(err, service.ErrGoalMetricUnsupported),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrWeightOutOfRange),
		errors.Is(err, service.ErrInvalidSleepHours),
		errors.Is(err, service.ErrInvalidQuality):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNothingToDelete):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, rowstore.ErrStoreUnavailable):
		respondError(c, http.StatusServiceUnavailable, "row store unavailable")
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}

// weeklyPrompt 把周报压缩成喂给模型的一段文本。
func weeklyPrompt(summary service.WeeklySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "本週（%s 起）：喝水 %d 杯、起身 %d 次、運動 %d 分鐘。\n",
		summary.WeekStart, summary.TotalHydration, summary.TotalPosture, summary.TotalExerciseMinutes)
	fmt.Fprintf(&b, "達標天數：喝水 %d 天、起身 %d 天、運動 %d 天、全部達標 %d 天。\n",
		summary.DaysHydrationMet, summary.DaysPostureMet, summary.DaysExerciseMet, summary.DaysAllGoalsMet)
	fmt.Fprintf(&b, "目前目標：每日喝水 %d 杯、起身 %d 次、運動 %d 分鐘。",
		summary.Goals.HydrationTarget, summary.Goals.PostureTarget, summary.Goals.ExerciseMinutesTarget)
	return b.String()
}

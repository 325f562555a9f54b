package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/neonpulse/internal/line"
	"github.com/neonpulse/internal/service"
)

type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

type webhookPayload struct {
	Events []webhookEvent `json:"events"`
}

const helpText = "🤖 指令列表：\n• 已喝水 / 已起身\n• 記錄運動（或直接輸入：跑步 30）\n• 體重 65.5\n• 睡眠 7.5 4\n• 早餐 燕麥 350\n• 心情 😊 備註\n• 今日統計 / 本週統計 / 連續 / 成就\n• 設定\n• 喝水設為 3 / 刪除喝水 / 清空喝水"

// Callback 处理 LINE webhook：验签后逐事件分发文本指令并回复。
func (a *API) Callback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable body")
		return
	}

	if !line.ValidateSignature(a.channelSecret, body, c.GetHeader("X-Line-Signature")) {
		respondError(c, http.StatusBadRequest, "invalid signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx := c.Request.Context()
	for _, event := range payload.Events {
		if event.Type != "message" || event.Message.Type != "text" {
			continue
		}

		messages := a.dispatch(ctx, strings.TrimSpace(event.Message.Text))
		if len(messages) == 0 {
			continue
		}
		if err := a.line.Reply(ctx, event.ReplyToken, messages...); err != nil {
			log.Printf("webhook: reply failed: %v", err)
		}
	}

	c.String(http.StatusOK, "OK")
}

// dispatch 把一条用户文本映射到核心操作并生成回复。
func (a *API) dispatch(ctx context.Context, text string) []line.Message {
	switch {
	case text == "已喝水":
		count, err := a.tracker.RecordHydration(ctx)
		if err != nil {
			return errorReply(err)
		}
		a.dispatchEnrichment(ctx)
		return textReply(fmt.Sprintf("💧 已記錄！今日第 %d 杯", count))

	case text == "已起身":
		count, err := a.tracker.RecordPostureBreak(ctx)
		if err != nil {
			return errorReply(err)
		}
		a.dispatchEnrichment(ctx)
		return textReply(fmt.Sprintf("🧍 已記錄！今日第 %d 次", count))

	case text == "記錄運動":
		return []line.Message{line.FlexMessage("記錄運動", line.ExercisePromptBubble())}

	case text == "今日統計":
		stats, err := a.stats.TodayStats(ctx)
		if err != nil {
			stats = service.NewZeroDailyStats(a.stats.Today())
		}
		return []line.Message{line.FlexMessage("今日統計", line.StatsBubble(
			stats.Date, stats.HydrationCount, stats.PostureCount, stats.ExerciseMinutes, stats.ExerciseCalories))}

	case text == "本週統計":
		summary, err := a.stats.WeeklySummary(ctx)
		if err != nil {
			return textReply("📊 本週資料暫時拿不到，稍後再試")
		}
		return textReply(fmt.Sprintf(
			"📅 本週（%s 起）\n💧 喝水 %d 杯\n🧍 起身 %d 次\n🏃 運動 %d 分鐘\n✅ 全部達標 %d 天",
			summary.WeekStart, summary.TotalHydration, summary.TotalPosture,
			summary.TotalExerciseMinutes, summary.DaysAllGoalsMet))

	case text == "連續" || text == "連續達標":
		streak, err := a.streaks.Current(ctx)
		if err != nil {
			streak = 0
		}
		return textReply(fmt.Sprintf("🔥 目前連續達標 %d 天", streak))

	case text == "成就":
		unlocked, err := a.achievements.Unlocked(ctx)
		if err != nil {
			return textReply("🏆 成就資料暫時拿不到，稍後再試")
		}
		if len(unlocked) == 0 {
			return textReply("🏆 還沒有解鎖任何成就，繼續加油！")
		}
		var b strings.Builder
		b.WriteString(fmt.Sprintf("🏆 已解鎖 %d 項成就：\n", len(unlocked)))
		for _, achievement := range unlocked {
			fmt.Fprintf(&b, "• %s — %s\n", achievement.Name, achievement.Description)
		}
		return textReply(strings.TrimRight(b.String(), "\n"))

	case text == "設定":
		settings, err := a.goals.Settings(ctx)
		if err != nil {
			settings = service.DefaultReminderSettings()
		}
		goals, err := a.goals.EffectiveGoals(ctx)
		if err != nil {
			goals = service.DefaultGoals
		}
		return []line.Message{line.FlexMessage("設定", line.SettingsBubble(
			settings.Enabled, settings.WaterInterval, settings.StandInterval,
			settings.DNDStart, settings.DNDEnd,
			goals.HydrationTarget, goals.PostureTarget, goals.ExerciseMinutesTarget))}

	case text == "開啟提醒":
		if err := a.goals.UpdateSetting(ctx, "enabled", "true"); err != nil {
			return errorReply(err)
		}
		return textReply("✅ 提醒功能已開啟")

	case text == "關閉提醒":
		if err := a.goals.UpdateSetting(ctx, "enabled", "false"); err != nil {
			return errorReply(err)
		}
		return textReply("✅ 提醒功能已關閉")

	case strings.HasPrefix(text, "勿擾"):
		parts := strings.Split(strings.TrimSpace(strings.TrimPrefix(text, "勿擾")), "-")
		if len(parts) != 2 {
			return textReply("格式錯誤，請輸入：勿擾 22:00-08:00")
		}
		if err := a.goals.UpdateSetting(ctx, "dnd_start", strings.TrimSpace(parts[0])); err != nil {
			return errorReply(err)
		}
		if err := a.goals.UpdateSetting(ctx, "dnd_end", strings.TrimSpace(parts[1])); err != nil {
			return errorReply(err)
		}
		return textReply(fmt.Sprintf("✅ 勿擾時段已設為 %s - %s", strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])))

	case strings.HasPrefix(text, "喝水間隔"):
		return a.updateIntervalReply(ctx, text, "喝水間隔", "water_interval", "💧 喝水提醒間隔已設為 %d 分鐘")

	case strings.HasPrefix(text, "久坐間隔"):
		return a.updateIntervalReply(ctx, text, "久坐間隔", "stand_interval", "🧍 久坐提醒間隔已設為 %d 分鐘")

	case strings.HasPrefix(text, "喝水目標"):
		return a.setGoalReply(ctx, text, "喝水目標", service.MetricHydration, "💧 每日喝水目標已設為 %d 杯")

	case strings.HasPrefix(text, "起身目標"):
		return a.setGoalReply(ctx, text, "起身目標", service.MetricPosture, "🧍 每日起身目標已設為 %d 次")

	case strings.HasPrefix(text, "運動目標"):
		return a.setGoalReply(ctx, text, "運動目標", service.MetricExercise, "🏃 每日運動目標已設為 %d 分鐘")

	case strings.HasPrefix(text, "喝水設為"):
		return a.setCountReply(ctx, text, "喝水設為", service.MetricHydration, "💧 今日喝水已調整為 %d 杯")

	case strings.HasPrefix(text, "起身設為"):
		return a.setCountReply(ctx, text, "起身設為", service.MetricPosture, "🧍 今日起身已調整為 %d 次")

	case text == "刪除喝水":
		return a.deleteRecentReply(ctx, service.MetricHydration, "💧 已刪除最近一筆，今日剩 %d 杯")

	case text == "刪除起身":
		return a.deleteRecentReply(ctx, service.MetricPosture, "🧍 已刪除最近一筆，今日剩 %d 次")

	case text == "清空喝水":
		removed, err := a.tracker.ClearToday(ctx, service.MetricHydration)
		if err != nil {
			return errorReply(err)
		}
		return textReply(fmt.Sprintf("💧 已清空今日喝水記錄（%d 筆）", removed))

	case text == "清空起身":
		removed, err := a.tracker.ClearToday(ctx, service.MetricPosture)
		if err != nil {
			return errorReply(err)
		}
		return textReply(fmt.Sprintf("🧍 已清空今日起身記錄（%d 筆）", removed))

	case strings.HasPrefix(text, "體重"):
		raw := strings.TrimSpace(strings.TrimPrefix(text, "體重"))
		kg, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return textReply("格式錯誤，請輸入：體重 65.5")
		}
		if err := a.tracker.RecordWeight(ctx, kg); err != nil {
			return errorReply(err)
		}
		return textReply(fmt.Sprintf("⚖️ 已記錄體重 %.1f kg", kg))

	case strings.HasPrefix(text, "睡眠"):
		return a.recordSleepReply(ctx, text)

	case strings.HasPrefix(text, "早餐"), strings.HasPrefix(text, "午餐"),
		strings.HasPrefix(text, "晚餐"), strings.HasPrefix(text, "點心"):
		return a.recordMealReply(ctx, text)

	case strings.HasPrefix(text, "心情"):
		fields := strings.Fields(strings.TrimSpace(strings.TrimPrefix(text, "心情")))
		if len(fields) == 0 {
			return textReply("格式錯誤，請輸入：心情 😊 備註（備註可省略）")
		}
		note := strings.Join(fields[1:], " ")
		score, err := a.tracker.RecordMood(ctx, fields[0], note)
		if err != nil {
			return errorReply(err)
		}
		return textReply(fmt.Sprintf("%s 已記錄心情（%d 分）", fields[0], score))
	}

	// 運動輸入：類型 + 分鐘數
	if fields := strings.Fields(text); len(fields) >= 2 && service.KnownExerciseType(fields[0]) {
		minutes, err := strconv.Atoi(fields[1])
		if err != nil || minutes <= 0 {
			return textReply("格式錯誤，請輸入：運動類型 分鐘數\n例如：跑步 30")
		}
		record, err := a.tracker.RecordExercise(ctx, fields[0], minutes)
		if err != nil {
			return errorReply(err)
		}
		a.dispatchEnrichment(ctx)
		return textReply(fmt.Sprintf("🏃 已記錄 %s %d 分鐘\n🔥 消耗約 %d 卡路里", record.TypeLabel, record.Minutes, record.Calories))
	}

	return textReply(helpText)
}

func (a *API) updateIntervalReply(ctx context.Context, text, prefix, key, format string) []line.Message {
	raw := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return textReply(fmt.Sprintf("格式錯誤，請輸入：%s 數字", prefix))
	}
	if err := a.goals.UpdateSetting(ctx, key, raw); err != nil {
		return errorReply(err)
	}
	return textReply(fmt.Sprintf(format, minutes))
}

func (a *API) setGoalReply(ctx context.Context, text, prefix string, metric service.Metric, format string) []line.Message {
	raw := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return textReply(fmt.Sprintf("格式錯誤，請輸入：%s 數字", prefix))
	}
	if err := a.goals.SetGoal(ctx, metric, value); err != nil {
		return errorReply(err)
	}
	return textReply(fmt.Sprintf(format, value))
}

func (a *API) setCountReply(ctx context.Context, text, prefix string, metric service.Metric, format string) []line.Message {
	raw := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	target, err := strconv.Atoi(raw)
	if err != nil {
		return textReply(fmt.Sprintf("格式錯誤，請輸入：%s 數字", prefix))
	}
	count, err := a.tracker.SetCount(ctx, metric, target)
	if err != nil {
		return errorReply(err)
	}
	return textReply(fmt.Sprintf(format, count))
}

func (a *API) deleteRecentReply(ctx context.Context, metric service.Metric, format string) []line.Message {
	remaining, err := a.tracker.DeleteMostRecent(ctx, metric)
	if err != nil {
		return errorReply(err)
	}
	return textReply(fmt.Sprintf(format, remaining))
}

func (a *API) recordSleepReply(ctx context.Context, text string) []line.Message {
	fields := strings.Fields(strings.TrimSpace(strings.TrimPrefix(text, "睡眠")))
	if len(fields) < 2 {
		return textReply("格式錯誤，請輸入：睡眠 小時 品質(1-5) 備註\n例如：睡眠 7.5 4")
	}

	hours, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return textReply("格式錯誤，睡眠小時要是數字，例如：睡眠 7.5 4")
	}
	quality, err := strconv.Atoi(fields[1])
	if err != nil {
		return textReply("格式錯誤，睡眠品質要是 1-5 的整數")
	}

	note := strings.Join(fields[2:], " ")
	if err := a.tracker.RecordSleep(ctx, hours, quality, note); err != nil {
		return errorReply(err)
	}
	return textReply(fmt.Sprintf("😴 已記錄睡眠 %.1f 小時（品質 %d/5）", hours, quality))
}

func (a *API) recordMealReply(ctx context.Context, text string) []line.Message {
	mealType := string([]rune(text)[:2])
	fields := strings.Fields(strings.TrimSpace(strings.TrimPrefix(text, mealType)))
	if len(fields) == 0 {
		return textReply("格式錯誤，請輸入：早餐 燕麥 牛奶 350（卡路里可省略）")
	}

	calories := 0
	foods := fields
	if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && len(fields) > 1 {
		calories = n
		foods = fields[:len(fields)-1]
	}

	if err := a.tracker.RecordMeal(ctx, mealType, strings.Join(foods, " "), calories); err != nil {
		return errorReply(err)
	}
	if calories > 0 {
		return textReply(fmt.Sprintf("🍽️ 已記錄%s：%s（約 %d 卡）", mealType, strings.Join(foods, " "), calories))
	}
	return textReply(fmt.Sprintf("🍽️ 已記錄%s：%s", mealType, strings.Join(foods, " ")))
}

// dispatchEnrichment 在记录成功后派发后台教练推送，不阻塞回复。
func (a *API) dispatchEnrichment(ctx context.Context) {
	stats, err := a.stats.TodayStats(ctx)
	if err != nil {
		stats = service.NewZeroDailyStats(a.stats.Today())
	}
	streak, err := a.streaks.Current(ctx)
	if err != nil {
		streak = 0
	}
	a.enrich.Dispatch(stats, streak)
}

func textReply(text string) []line.Message {
	return []line.Message{line.TextMessage(text)}
}

func errorReply(err error) []line.Message {
	switch {
	case errors.Is(err, service.ErrWeightOutOfRange):
		return textReply("⚖️ 體重要在 20–300 公斤之間")
	case errors.Is(err, service.ErrInvalidSleepHours):
		return textReply("😴 睡眠時數要在 0–24 小時之間")
	case errors.Is(err, service.ErrInvalidQuality):
		return textReply("😴 睡眠品質要是 1–5 的整數")
	case errors.Is(err, service.ErrNegativeTarget):
		return textReply("數量不能是負的")
	case errors.Is(err, service.ErrInvalidGoal):
		return textReply("目標要是正整數")
	case errors.Is(err, service.ErrNothingToDelete):
		return textReply("今天還沒有可刪除的記錄")
	}
	log.Printf("webhook: operation failed: %v", err)
	return textReply("⚠️ 系統暫時無法處理，請稍後再試")
}

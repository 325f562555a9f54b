package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neonpulse/internal/line"
	"github.com/neonpulse/internal/service"
)

// API 汇集各处理函数共享的服务依赖。
type API struct {
	tracker       *service.TrackerService
	stats         *service.StatsService
	goals         *service.GoalService
	streaks       *service.StreakService
	achievements  *service.AchievementService
	enrich        *service.EnrichmentService
	line          *line.Client
	channelSecret string
}

// NewAPI 构造处理器集合。
func NewAPI(
	tracker *service.TrackerService,
	stats *service.StatsService,
	goals *service.GoalService,
	streaks *service.StreakService,
	achievements *service.AchievementService,
	enrich *service.EnrichmentService,
	lineClient *line.Client,
	channelSecret string,
) *API {
	return &API{
		tracker:       tracker,
		stats:         stats,
		goals:         goals,
		streaks:       streaks,
		achievements:  achievements,
		enrich:        enrich,
		line:          lineClient,
		channelSecret: channelSecret,
	}
}

// Today 返回今日统计。
// 查询端点不向调用方抛错：存储不可用时退回缓存旧值，再不行给全零对象。
func (a *API) Today(c *gin.Context) {
	stats, err := a.stats.TodayStats(c.Request.Context())
	if err != nil {
		log.Printf("api: today stats unavailable: %v", err)
		stats = service.NewZeroDailyStats(a.stats.Today())
	}
	c.JSON(http.StatusOK, stats)
}

// Week 返回本周汇总。
func (a *API) Week(c *gin.Context) {
	summary, err := a.stats.WeeklySummary(c.Request.Context())
	if err != nil {
		log.Printf("api: weekly summary unavailable: %v", err)
		summary = service.WeeklySummary{Days: []service.WeeklyDay{}, Goals: service.DefaultGoals}
	}
	c.JSON(http.StatusOK, summary)
}

// Streak 返回当前连续达标天数。
func (a *API) Streak(c *gin.Context) {
	streak, err := a.streaks.Current(c.Request.Context())
	if err != nil {
		log.Printf("api: streak unavailable: %v", err)
		streak = 0
	}
	c.JSON(http.StatusOK, gin.H{"streak": streak})
}

// Goals 返回当前生效的目标。
func (a *API) Goals(c *gin.Context) {
	goals, err := a.goals.EffectiveGoals(c.Request.Context())
	if err != nil {
		log.Printf("api: goals unavailable: %v", err)
		goals = service.DefaultGoals
	}
	c.JSON(http.StatusOK, goals)
}

// SetGoal 更新某项指标的每日目标。
func (a *API) SetGoal(c *gin.Context) {
	metric, ok := service.ParseMetric(c.Param("metric"))
	if !ok {
		respondError(c, http.StatusBadRequest, "unknown metric")
		return
	}

	var input struct {
		Value int `json:"value"`
	}
	if !bindJSON(c, &input, "value must be an integer") {
		return
	}

	if err := a.goals.SetGoal(c.Request.Context(), metric, input.Value); err != nil {
		respondServiceError(c, err)
		return
	}

	goals, err := a.goals.EffectiveGoals(c.Request.Context())
	if err != nil {
		goals = service.DefaultGoals
	}
	c.JSON(http.StatusOK, goals)
}

// Achievements 返回已解锁的成就与完整成就表。
func (a *API) Achievements(c *gin.Context) {
	unlocked, err := a.achievements.Unlocked(c.Request.Context())
	if err != nil {
		log.Printf("api: achievements unavailable: %v", err)
		unlocked = []service.Achievement{}
	}
	c.JSON(http.StatusOK, gin.H{
		"unlocked": unlocked,
		"catalog":  service.Catalog(),
	})
}

// Weight 返回体重走势汇总。
func (a *API) Weight(c *gin.Context) {
	summary, err := a.stats.WeightSummary(c.Request.Context())
	if err != nil {
		log.Printf("api: weight summary unavailable: %v", err)
		summary = service.WeightSummary{Recent: []service.WeightEntry{}}
	}
	c.JSON(http.StatusOK, summary)
}

// Settings 返回提醒设置。
func (a *API) Settings(c *gin.Context) {
	settings, err := a.goals.Settings(c.Request.Context())
	if err != nil {
		log.Printf("api: settings unavailable: %v", err)
		settings = service.DefaultReminderSettings()
	}
	c.JSON(http.StatusOK, settings)
}

// Coach 即时生成一段教练点评并渲染为 HTML，供看板嵌入。
// 属尽力而为：生成失败时返回空内容而不是错误。
func (a *API) Coach(c *gin.Context) {
	summary, err := a.stats.WeeklySummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"html": ""})
		return
	}

	prompt := weeklyPrompt(summary)
	text, err := a.enrich.Generate(c.Request.Context(), "你是一個健康教練，請用繁體中文 Markdown 總結這週的表現並給出建議。", prompt)
	if err != nil {
		log.Printf("api: coach text failed: %v", err)
		c.JSON(http.StatusOK, gin.H{"html": ""})
		return
	}

	html, err := a.enrich.RenderCoachHTML(text)
	if err != nil {
		log.Printf("api: coach render failed: %v", err)
		html = ""
	}
	c.JSON(http.StatusOK, gin.H{"html": html})
}

// Health 健康检查。
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "neon-pulse-bot"})
}

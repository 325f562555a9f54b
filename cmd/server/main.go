package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neonpulse/internal/cache"
	"github.com/neonpulse/internal/config"
	"github.com/neonpulse/internal/handler"
	"github.com/neonpulse/internal/line"
	"github.com/neonpulse/internal/router"
	"github.com/neonpulse/internal/rowstore"
	"github.com/neonpulse/internal/service"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open row store: %v", err)
	}

	zone := time.FixedZone(fmt.Sprintf("UTC%+d", cfg.TimeZoneOffsetHours), cfg.TimeZoneOffsetHours*3600)
	derived := cache.New(cache.DefaultTTL, nil)

	lineClient := line.NewClient(cfg.LineChannelAccessToken)
	tracker := service.NewTrackerService(store, derived, zone, nil)
	goals := service.NewGoalService(store, derived)
	stats := service.NewStatsService(store, derived, goals, zone, nil)
	streaks := service.NewStreakService(stats, goals, derived, zone, nil)
	achievements := service.NewAchievementService(stats, streaks)
	enrich := service.NewEnrichmentService(cfg.OpenAIAPIKey, lineClient, cfg.LinePushTo)

	api := handler.NewAPI(tracker, stats, goals, streaks, achievements, enrich, lineClient, cfg.LineChannelSecret)

	r := router.SetupRouter(api)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}

// openStore 按配置选择行存储后端，默认本地 sqlite。
func openStore(cfg config.AppConfig) (rowstore.Store, error) {
	if cfg.RowStore == "sheets" {
		if cfg.SpreadsheetID == "" {
			return nil, fmt.Errorf("SPREADSHEET_ID is required when ROW_STORE=sheets")
		}
		return rowstore.NewSheetsStore(context.Background(), cfg.SpreadsheetID, []byte(cfg.GoogleCredentialsJSON))
	}

	gdb, err := rowstore.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return rowstore.NewSQLiteStore(gdb), nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr             string
	Port                   string
	GinMode                string
	RowStore               string
	DatabasePath           string
	SpreadsheetID          string
	GoogleCredentialsJSON  string
	LineChannelAccessToken string
	LineChannelSecret      string
	LinePushTo             string
	OpenAIAPIKey           string
	TimeZoneOffsetHours    int
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	rowStore := strings.ToLower(strings.TrimSpace(os.Getenv("ROW_STORE")))
	if rowStore != "sheets" {
		rowStore = "sqlite"
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "neonpulse.db"
	}

	offset := 8
	if raw := strings.TrimSpace(os.Getenv("TZ_OFFSET_HOURS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= -12 && n <= 14 {
			offset = n
		}
	}

	return AppConfig{
		ListenAddr:             listenAddr,
		Port:                   port,
		GinMode:                ginMode,
		RowStore:               rowStore,
		DatabasePath:           databasePath,
		SpreadsheetID:          strings.TrimSpace(os.Getenv("SPREADSHEET_ID")),
		GoogleCredentialsJSON:  strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON")),
		LineChannelAccessToken: strings.TrimSpace(os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")),
		LineChannelSecret:      strings.TrimSpace(os.Getenv("LINE_CHANNEL_SECRET")),
		LinePushTo:             strings.TrimSpace(os.Getenv("LINE_PUSH_TO")),
		OpenAIAPIKey:           strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		TimeZoneOffsetHours:    offset,
	}
}

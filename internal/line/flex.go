package line

import "fmt"

// 既有看板的霓虹配色。
const (
	colorBackground = "#0a0a12"
	colorSeparator  = "#333355"
	colorCyan       = "#00f5ff"
	colorGreen      = "#39ff14"
	colorOrange     = "#ff6b00"
	colorPink       = "#ff0080"
	colorViolet     = "#8888ff"
	colorWhite      = "#ffffff"
	colorMuted      = "#aaaaaa"
	colorFaint      = "#666688"
)

func bubble(contents []map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":   "bubble",
		"styles": map[string]interface{}{"body": map[string]interface{}{"backgroundColor": colorBackground}},
		"body": map[string]interface{}{
			"type":     "box",
			"layout":   "vertical",
			"contents": contents,
		},
	}
}

func titleText(text, color string) map[string]interface{} {
	return map[string]interface{}{"type": "text", "text": text, "weight": "bold", "size": "xl", "color": color}
}

func separator() map[string]interface{} {
	return map[string]interface{}{"type": "separator", "margin": "md", "color": colorSeparator}
}

func statRow(label, labelColor, value string) map[string]interface{} {
	return map[string]interface{}{
		"type":   "box",
		"layout": "horizontal",
		"contents": []map[string]interface{}{
			{"type": "text", "text": label, "color": labelColor, "flex": 2},
			{"type": "text", "text": value, "color": colorWhite, "align": "end", "flex": 1},
		},
	}
}

func statRows(rows []map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":     "box",
		"layout":   "vertical",
		"margin":   "lg",
		"spacing":  "md",
		"contents": rows,
	}
}

// StatsBubble 构造单日统计的 Flex 气泡。
func StatsBubble(date string, waterCount, standCount, exerciseMinutes, exerciseCalories int) map[string]interface{} {
	return bubble([]map[string]interface{}{
		titleText(fmt.Sprintf("📊 %s 統計", date), colorCyan),
		separator(),
		statRows([]map[string]interface{}{
			statRow("💧 喝水", colorCyan, fmt.Sprintf("%d 次", waterCount)),
			statRow("🧍 起身", colorGreen, fmt.Sprintf("%d 次", standCount)),
			statRow("🏃 運動", colorOrange, fmt.Sprintf("%d 分鐘", exerciseMinutes)),
			statRow("🔥 消耗", colorPink, fmt.Sprintf("%d 卡", exerciseCalories)),
		}),
	})
}

// SettingsBubble 构造目标与提醒设置的 Flex 气泡。
func SettingsBubble(enabled bool, waterInterval, standInterval int, dndStart, dndEnd string, waterGoal, standGoal, exerciseGoal int) map[string]interface{} {
	status := "🔴 關閉"
	if enabled {
		status = "🟢 開啟"
	}

	return bubble([]map[string]interface{}{
		titleText("⚙️ 目前設定", colorViolet),
		separator(),
		statRows([]map[string]interface{}{
			statRow("提醒狀態", colorMuted, status),
			statRow("💧 喝水間隔", colorCyan, fmt.Sprintf("%d 分鐘", waterInterval)),
			statRow("🧍 久坐間隔", colorGreen, fmt.Sprintf("%d 分鐘", standInterval)),
			statRow("🌙 勿擾時段", colorPink, fmt.Sprintf("%s-%s", dndStart, dndEnd)),
			statRow("💧 喝水目標", colorCyan, fmt.Sprintf("%d 杯/日", waterGoal)),
			statRow("🧍 起身目標", colorGreen, fmt.Sprintf("%d 次/日", standGoal)),
			statRow("🏃 運動目標", colorOrange, fmt.Sprintf("%d 分鐘/日", exerciseGoal)),
		}),
		separator(),
		{
			"type":   "text",
			"text":   "輸入指令修改：\n• 喝水間隔 30\n• 久坐間隔 60\n• 勿擾 23:00-07:00\n• 喝水目標 8\n• 開啟提醒 / 關閉提醒",
			"color":  colorFaint,
			"size":   "sm",
			"margin": "md",
			"wrap":   true,
		},
	})
}

// ExercisePromptBubble 构造运动输入提示的 Flex 气泡。
func ExercisePromptBubble() map[string]interface{} {
	return bubble([]map[string]interface{}{
		titleText("🏃 記錄運動", colorOrange),
		separator(),
		{"type": "text", "text": "請輸入運動類型和時間，例如：", "color": colorMuted, "margin": "lg", "wrap": true},
		{
			"type":    "box",
			"layout":  "vertical",
			"margin":  "md",
			"spacing": "sm",
			"contents": []map[string]interface{}{
				{"type": "text", "text": "• 跑步 30", "color": colorWhite},
				{"type": "text", "text": "• 游泳 45", "color": colorWhite},
				{"type": "text", "text": "• 重訓 60", "color": colorWhite},
			},
		},
		separator(),
		{
			"type":   "text",
			"text":   "支援類型：跑步、走路、游泳、騎車、重訓、瑜伽、跳繩、籃球、羽球、桌球、其他",
			"color":  colorFaint,
			"size":   "xs",
			"margin": "md",
			"wrap":   true,
		},
	})
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/neonpulse/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API) *gin.Engine {
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/health", api.Health)

	// LINE webhook
	r.POST("/callback", api.Callback)

	// 看板 API
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/today", api.Today)
		apiGroup.GET("/week", api.Week)
		apiGroup.GET("/streak", api.Streak)
		apiGroup.GET("/goals", api.Goals)
		apiGroup.PUT("/goals/:metric", api.SetGoal)
		apiGroup.GET("/achievements", api.Achievements)
		apiGroup.GET("/weight", api.Weight)
		apiGroup.GET("/settings", api.Settings)
		apiGroup.GET("/coach", api.Coach)
	}

	return r
}

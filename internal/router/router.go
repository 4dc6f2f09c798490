package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("habitlog_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	r.POST("/login", handler.Login)
	r.GET("/logout", handler.Logout)

	// 需要认证的 API 路由
	apiGroup := r.Group("/api")
	apiGroup.Use(handler.AuthRequired())
	{
		apiGroup.GET("/habits", api.ListHabits)
		apiGroup.POST("/habits", api.CreateHabit)
		apiGroup.GET("/habits/:id", api.GetHabit)
		apiGroup.PUT("/habits/:id", api.UpdateHabit)
		apiGroup.DELETE("/habits/:id", api.DeleteHabit)

		apiGroup.GET("/habits/:id/logs", api.GetHabitLogs)
		apiGroup.POST("/habits/:id/toggle", api.ToggleHabitLog)
		apiGroup.GET("/logs", api.GetUserLogs)

		apiGroup.GET("/overview", api.GetOverview)
		apiGroup.GET("/heatmap", api.GetHeatmap)
	}

	return r
}

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-summarizer/api/handlers"
	"github.com/feichai0017/document-summarizer/api/middleware"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger) {
	// 全局中间件
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS())

	// API 版本组
	v1 := r.Group("/api/v1")

	// 健康检查
	v1.GET("/health", handlers.Health)

	docs := v1.Group("/documents")
	{
		docs.POST("", h.Document.Upload)
		docs.GET("", h.Document.List)
		docs.GET("/:id", h.Document.Get)
		docs.GET("/:id/messages", h.Document.Messages)
		docs.POST("/:id/messages", h.Document.Ask)
	}

	v1.GET("/settings", h.Settings.Get)
	v1.PUT("/settings", h.Settings.Put)

	tasks := v1.Group("/tasks")
	{
		tasks.GET("/:taskId", h.Task.GetStatus)
		tasks.DELETE("/:taskId", h.Task.Cancel)
	}
}

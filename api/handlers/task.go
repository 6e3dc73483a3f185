package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-summarizer/internal/service/document"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

type TaskHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

func NewTaskHandler(service document.DocumentProcessor, log logger.Logger) *TaskHandler {
	return &TaskHandler{service: service, logger: log}
}

// GetStatus 获取任务状态
func (h *TaskHandler) GetStatus(c *gin.Context) {
	status, err := h.service.GetTaskStatus(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Cancel 取消处理任务
func (h *TaskHandler) Cancel(c *gin.Context) {
	taskID := c.Param("taskId")
	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

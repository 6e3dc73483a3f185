package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-summarizer/internal/service/document"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
	Settings *SettingsHandler
	Task     *TaskHandler
}

func NewHandlers(
	documentService document.DocumentProcessor,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(documentService, log),
		Settings: NewSettingsHandler(documentService, log),
		Task:     NewTaskHandler(documentService, log),
	}
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleError 统一错误处理: the status follows the error kind.
func handleError(c *gin.Context, log logger.Logger, err error) {
	status := apperrors.StatusCode(err)
	kind := string(apperrors.KindOf(err))
	if kind == "" {
		kind = "internal"
	}

	resp := ErrorResponse{Error: kind, Message: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		resp.Message = appErr.Message
	}

	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	log = logger.NewContextLogger(log).FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
		if kind == "internal" {
			resp.Message = "internal server error"
		}
	} else {
		log.Warn("Request rejected", fields...)
	}
	c.AbortWithStatusJSON(status, resp)
}

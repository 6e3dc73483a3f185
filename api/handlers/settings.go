package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/internal/service/document"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

type SettingsHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

func NewSettingsHandler(service document.DocumentProcessor, log logger.Logger) *SettingsHandler {
	return &SettingsHandler{service: service, logger: log}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.service.GetSettings(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) Put(c *gin.Context) {
	var s models.ModelSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		handleError(c, h.logger, apperrors.NewValidationError("settings", "invalid settings body: "+err.Error()))
		return
	}
	saved, err := h.service.UpdateSettings(c.Request.Context(), s)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

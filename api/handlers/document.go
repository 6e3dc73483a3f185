package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-summarizer/internal/service/document"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

type DocumentHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

func NewDocumentHandler(service document.DocumentProcessor, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  log,
	}
}

// Upload accepts a multipart form with either "file" or "url", plus an
// optional "title".
func (h *DocumentHandler) Upload(c *gin.Context) {
	req := document.UploadRequest{
		URL:   c.PostForm("url"),
		Title: c.PostForm("title"),
	}

	file, header, err := c.Request.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		req.File = file
		req.Filename = header.Filename
		req.Size = header.Size
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		handleError(c, h.logger, apperrors.NewValidationError("file", "invalid file upload: "+err.Error()))
		return
	}

	res, err := h.service.Upload(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handleError(c, h.logger, apperrors.NewValidationError("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	docs, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Messages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *DocumentHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, h.logger, apperrors.NewValidationError("question", "question is required"))
		return
	}

	answer, err := h.service.Ask(c.Request.Context(), c.Param("id"), req.Question)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, AskResponse{Answer: answer})
}

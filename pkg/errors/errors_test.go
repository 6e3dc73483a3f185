package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByKind(t *testing.T) {
	err := NewSummarizationError("summarize.map", "chunk 2", stderrors.New("boom"))
	wrapped := fmt.Errorf("pipeline: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrSummarization))
	assert.False(t, stderrors.Is(wrapped, ErrIndexing))
	assert.Equal(t, "summarize.map: summarization: chunk 2: boom", err.Error())
}

func TestAppError_UnwrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewIndexingError("index.save", "", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindIndexing, KindOf(fmt.Errorf("outer: %w", err)))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("file", "too large"), http.StatusBadRequest},
		{"index not found", NewIndexNotFoundError("doc-1"), http.StatusNotFound},
		{"not found", NewNotFoundError("document"), http.StatusNotFound},
		{"conflict", NewConflictError("busy"), http.StatusConflict},
		{"extraction", NewExtractionError("extract", "empty", nil), http.StatusUnprocessableEntity},
		{"configuration", NewConfigurationError("settings", "missing"), http.StatusInternalServerError},
		{"plain", stderrors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

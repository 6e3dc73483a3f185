package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind groups errors by the stage or rule that produced them.
type Kind string

const (
	KindExtraction    Kind = "extraction"
	KindSummarization Kind = "summarization"
	KindIndexing      Kind = "indexing"
	KindIndexNotFound Kind = "index_not_found"
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
)

// Sentinels for errors.Is checks. Matching is by Kind only.
var (
	ErrExtraction    = &AppError{Kind: KindExtraction}
	ErrSummarization = &AppError{Kind: KindSummarization}
	ErrIndexing      = &AppError{Kind: KindIndexing}
	ErrIndexNotFound = &AppError{Kind: KindIndexNotFound}
	ErrConfiguration = &AppError{Kind: KindConfiguration}
	ErrValidation    = &AppError{Kind: KindValidation}
	ErrNotFound      = &AppError{Kind: KindNotFound}
	ErrConflict      = &AppError{Kind: KindConflict}
)

// AppError is a structured application error
type AppError struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, message string, cause error) *AppError {
	return &AppError{Kind: kind, Op: op, Message: message, Cause: cause}
}

// NewExtractionError is raised for unreadable sources or empty text.
func NewExtractionError(op, message string, cause error) *AppError {
	return newError(KindExtraction, op, message, cause)
}

// NewSummarizationError is raised when a map or reduce LLM call fails.
func NewSummarizationError(op, message string, cause error) *AppError {
	return newError(KindSummarization, op, message, cause)
}

// NewIndexingError is raised when embedding or index persistence fails.
func NewIndexingError(op, message string, cause error) *AppError {
	return newError(KindIndexing, op, message, cause)
}

// NewIndexNotFoundError is raised when no persisted index exists for a document.
func NewIndexNotFoundError(documentID string) *AppError {
	return newError(KindIndexNotFound, "index.load", fmt.Sprintf("no index for document %s", documentID), nil)
}

// NewConfigurationError is raised for missing settings or credentials.
func NewConfigurationError(op, message string) *AppError {
	return newError(KindConfiguration, op, message, nil)
}

func NewValidationError(field, message string) *AppError {
	return newError(KindValidation, field, message, nil)
}

func NewNotFoundError(message string) *AppError {
	return newError(KindNotFound, "", message, nil)
}

func NewConflictError(message string) *AppError {
	return newError(KindConflict, "", message, nil)
}

// KindOf returns the kind of the first AppError in the chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound, KindIndexNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExtraction, KindSummarization, KindIndexing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

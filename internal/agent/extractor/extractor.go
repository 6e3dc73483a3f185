package extractor

import (
	"context"
	"fmt"

	"github.com/feichai0017/document-summarizer/internal/models"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

// Outcome tells the orchestrator whether the text came from the source or
// is a placeholder.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeDegraded
)

func (o Outcome) String() string {
	if o == OutcomeDegraded {
		return "degraded"
	}
	return "ok"
}

// Result of an extraction. For Degraded results Text and Title hold
// placeholders and Reason holds the swallowed cause.
type Result struct {
	Text    string
	Title   string
	Outcome Outcome
	Reason  error
}

func OK(text, title string) Result {
	return Result{Text: text, Title: title, Outcome: OutcomeOK}
}

func Degraded(text, title string, reason error) Result {
	return Result{Text: text, Title: title, Outcome: OutcomeDegraded, Reason: reason}
}

// Extractor turns a document's source into raw text. Unreadable sources are
// reported as ExtractionError.
type Extractor interface {
	Extract(ctx context.Context, doc *models.Document) (Result, error)
}

// Registry picks the extractor for a document variant.
type Registry struct {
	extractors map[models.Variant]Extractor
	logger     logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		extractors: make(map[models.Variant]Extractor),
		logger:     log,
	}
}

func (r *Registry) Register(v models.Variant, e Extractor) {
	r.extractors[v] = e
}

func (r *Registry) Get(v models.Variant) (Extractor, error) {
	e, ok := r.extractors[v]
	if !ok {
		r.logger.Error("No extractor found", logger.String("variant", string(v)))
		return nil, apperrors.NewExtractionError("extract", fmt.Sprintf("no extractor for variant %q", v), nil)
	}
	return e, nil
}

// Extract dispatches on doc.Variant.
func (r *Registry) Extract(ctx context.Context, doc *models.Document) (Result, error) {
	e, err := r.Get(doc.Variant)
	if err != nil {
		return Result{}, err
	}
	return e.Extract(ctx, doc)
}

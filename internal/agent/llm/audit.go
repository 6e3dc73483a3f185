package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

// CallRecorder persists call logs.
type CallRecorder interface {
	RecordCall(ctx context.Context, call *models.CallLog) error
}

// Audited writes a CallLog for every chat call. A failed write is logged and
// never changes the call's outcome.
type Audited struct {
	next     ChatModel
	recorder CallRecorder
	logger   logger.Logger
	now      func() time.Time
}

func NewAudited(next ChatModel, recorder CallRecorder, log logger.Logger) *Audited {
	return &Audited{next: next, recorder: recorder, logger: log, now: time.Now}
}

func (a *Audited) Chat(ctx context.Context, req Request) (string, error) {
	out, callErr := a.next.Chat(ctx, req)

	messages, _ := json.Marshal(req.Messages)
	result := map[string]string{"status": "success", "message": out}
	if callErr != nil {
		result = map[string]string{"status": "error", "error": callErr.Error()}
	}
	resultJSON, _ := json.Marshal(result)

	call := &models.CallLog{
		ID:           uuid.NewString(),
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxRetries:   req.MaxRetries,
		Messages:     messages,
		Result:       resultJSON,
		IsSuccessful: callErr == nil,
		IsRetried:    retryCount(ctx) > 0,
		CreatedAt:    a.now().UTC(),
	}
	// the call log must be written even when the task context is done
	if err := a.recorder.RecordCall(context.WithoutCancel(ctx), call); err != nil {
		a.logger.Warn("Failed to record llm call", logger.String("model", req.Model), logger.Error(err))
	}
	return out, callErr
}

package logger

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	taskIDKey
	documentIDKey
)

// WithRequestID stores the HTTP request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithTaskID stores the queue task id on ctx.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// WithDocumentID stores the document being processed on ctx.
func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, documentIDKey, id)
}

// ContextLogger adds context support
type ContextLogger interface {
	Logger
	FromContext(ctx context.Context) Logger
}

type contextLogger struct {
	Logger
}

func NewContextLogger(l Logger) ContextLogger {
	return &contextLogger{Logger: l}
}

// FromContext returns a logger carrying the ids found on ctx.
func (l *contextLogger) FromContext(ctx context.Context) Logger {
	fields := make([]Field, 0, 3)
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, String("request_id", id))
	}
	if id, ok := ctx.Value(taskIDKey).(string); ok && id != "" {
		fields = append(fields, TaskID(id))
	}
	if id, ok := ctx.Value(documentIDKey).(string); ok && id != "" {
		fields = append(fields, DocumentID(id))
	}
	if len(fields) == 0 {
		return l.Logger
	}
	return l.With(fields...)
}

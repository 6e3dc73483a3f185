package document

import (
	"context"
	"io"
	"time"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/pkg/converters"
	"github.com/feichai0017/document-summarizer/pkg/queue"
)

// UploadRequest carries either a PDF (File, Filename, Size) or a video URL.
type UploadRequest struct {
	File     io.ReadSeeker
	Filename string
	Size     int64
	URL      string
	Title    string
}

type UploadResult struct {
	Document converters.DocumentView `json:"document"`
	TaskID   string                  `json:"taskId"`
}

type DocumentProcessor interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	List(ctx context.Context, limit int) ([]converters.DocumentView, error)
	Get(ctx context.Context, id string) (*converters.DocumentView, error)
	Messages(ctx context.Context, id string) ([]converters.MessageView, error)
	Ask(ctx context.Context, id, question string) (string, error)
	GetSettings(ctx context.Context) (models.ModelSettings, error)
	UpdateSettings(ctx context.Context, s models.ModelSettings) (models.ModelSettings, error)
	GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	Cleanup(ctx context.Context, olderThan time.Duration) error
	HandleDocument(ctx context.Context, documentID string) error
}

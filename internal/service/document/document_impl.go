package document

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/internal/repository"
	"github.com/feichai0017/document-summarizer/internal/utils/validator"
	"github.com/feichai0017/document-summarizer/pkg/converters"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
	"github.com/feichai0017/document-summarizer/pkg/queue"
	"github.com/feichai0017/document-summarizer/pkg/storage"
)

// UploadPrefix is where uploaded PDFs are stored.
const UploadPrefix = "pdfs"

// Processor runs the pipeline for one document.
type Processor interface {
	Process(ctx context.Context, documentID string) error
}

// Answerer answers a question about a processed document.
type Answerer interface {
	Answer(ctx context.Context, documentID, question string) (string, error)
}

type Store interface {
	repository.DocumentRepository
	repository.ChunkRepository
	repository.MessageRepository
	repository.SettingsRepository
	repository.CallLogRepository
}

type DocumentService struct {
	store     Store
	processor Processor
	answerer  Answerer
	queue     queue.Queue
	storage   storage.Storage
	validator *validator.DocumentValidator
	logger    logger.Logger
	config    *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize int64
	ListLimit   int
}

func NewService(
	store Store,
	processor Processor,
	answerer Answerer,
	q queue.Queue,
	files storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *DocumentService {
	if cfg == nil {
		cfg = &ServiceConfig{
			MaxFileSize: 10 * 1024 * 1024, // 10MB
			ListLimit:   5,
		}
	}
	vcfg := validator.DefaultConfig()
	if cfg.MaxFileSize > 0 {
		vcfg.MaxFileSize = cfg.MaxFileSize
	}

	return &DocumentService{
		store:     store,
		processor: processor,
		answerer:  answerer,
		queue:     q,
		storage:   files,
		validator: validator.NewDocumentValidator(log, vcfg),
		logger:    log,
		config:    cfg,
	}
}

// Upload validates the submission, stores the file, creates the document and
// enqueues its processing. New uploads are refused while any document is
// being processed.
func (s *DocumentService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	hasFile := req.File != nil
	hasURL := strings.TrimSpace(req.URL) != ""
	if hasFile == hasURL {
		return nil, apperrors.NewValidationError("upload", "provide either a PDF file or a YouTube link")
	}
	if s.queue == nil {
		return nil, apperrors.NewConfigurationError("document.upload", "task queue is not configured")
	}

	busy, err := s.store.AnyProcessing(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check processing documents: %w", err)
	}
	if busy {
		return nil, apperrors.NewConflictError("another document is being processed, try again later")
	}

	doc := &models.Document{Title: strings.TrimSpace(req.Title)}
	if hasFile {
		key, err := s.storeFile(ctx, req)
		if err != nil {
			return nil, err
		}
		doc.Variant = models.VariantDocument
		doc.File = key
	} else {
		if _, err := s.validator.ValidateURL(req.URL); err != nil {
			return nil, err
		}
		doc.Variant = models.VariantYouTube
		doc.URL = strings.TrimSpace(req.URL)
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	log := s.logger.With(logger.DocumentID(doc.ID))

	taskID, err := s.queue.EnqueueProcess(ctx, doc.ID)
	if err != nil {
		log.Error("Failed to enqueue task", logger.Error(err))
		if uerr := s.store.UpdateStatus(context.WithoutCancel(ctx), doc.ID, models.StatusFailed); uerr != nil {
			log.Error("Failed to mark document as failed", logger.Error(uerr))
		}
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info("Document processing task created",
		logger.TaskID(taskID),
		logger.String("variant", string(doc.Variant)),
	)
	return &UploadResult{Document: converters.ToDocumentView(doc), TaskID: taskID}, nil
}

func (s *DocumentService) storeFile(ctx context.Context, req UploadRequest) (string, error) {
	// 验证文件
	res, err := s.validator.ValidateFile(req.File, req.Filename, req.Size)
	if err != nil {
		return "", fmt.Errorf("failed to validate file: %w", err)
	}
	if err := res.Err(); err != nil {
		return "", err
	}

	key := path.Join(UploadPrefix, uuid.NewString(), res.FileInfo.Filename)
	if _, err := s.storage.Store(ctx, req.File, key); err != nil {
		s.logger.Error("Failed to store file",
			logger.String("filename", req.Filename),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	s.logger.Info("Stored upload",
		logger.String("key", key),
		logger.Int64("size", req.Size),
		logger.String("sha256", res.FileInfo.Hash),
	)
	return key, nil
}

func (s *DocumentService) List(ctx context.Context, limit int) ([]converters.DocumentView, error) {
	if limit <= 0 {
		limit = s.config.ListLimit
	}
	docs, err := s.store.ListLatest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return converters.ToDocumentViews(docs), nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*converters.DocumentView, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	v := converters.ToDocumentView(doc)
	return &v, nil
}

func (s *DocumentService) Messages(ctx context.Context, id string) ([]converters.MessageView, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return converters.ToMessageViews(msgs), nil
}

// Chunks returns the document's stored chunks in position order.
func (s *DocumentService) Chunks(ctx context.Context, id string) ([]models.Chunk, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	chunks, err := s.store.ListChunks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

// Calls returns the most recent LLM call log entries, newest first. A
// non-positive limit uses the store default.
func (s *DocumentService) Calls(ctx context.Context, limit int) ([]models.CallLog, error) {
	calls, err := s.store.ListCalls(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list llm calls: %w", err)
	}
	return calls, nil
}

func (s *DocumentService) Ask(ctx context.Context, id, question string) (string, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return "", err
	}
	answer, err := s.answerer.Answer(ctx, id, question)
	if err != nil {
		s.logger.Warn("Question failed",
			logger.DocumentID(id),
			logger.String("kind", string(apperrors.KindOf(err))),
			logger.Error(err),
		)
		return "", err
	}
	return answer, nil
}

func (s *DocumentService) GetSettings(ctx context.Context) (models.ModelSettings, error) {
	return s.store.GetSettings(ctx)
}

func (s *DocumentService) UpdateSettings(ctx context.Context, m models.ModelSettings) (models.ModelSettings, error) {
	if err := s.store.SaveSettings(ctx, m.WithDefaults()); err != nil {
		return models.ModelSettings{}, err
	}
	s.logger.Info("Model settings updated",
		logger.String("model", m.Model),
		logger.Float64("temperature", m.Temperature),
	)
	return s.store.GetSettings(ctx)
}

// GetTaskStatus 获取处理状态
func (s *DocumentService) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	if s.queue == nil {
		return nil, apperrors.NewConfigurationError("document.task", "task queue is not configured")
	}
	return s.queue.GetTaskStatus(ctx, taskID)
}

// CancelTask 取消任务
func (s *DocumentService) CancelTask(ctx context.Context, taskID string) error {
	if s.queue == nil {
		return apperrors.NewConfigurationError("document.task", "task queue is not configured")
	}
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("Task cancelled", logger.TaskID(taskID))
	return nil
}

// Cleanup 清理过期上传文件
func (s *DocumentService) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return apperrors.NewValidationError("older_than", "retention must be positive")
	}
	threshold := time.Now().Add(-olderThan)
	if err := s.storage.CleanupBefore(ctx, UploadPrefix, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}
	s.logger.Info("Completed uploads cleanup", logger.Time("threshold", threshold))
	return nil
}

// HandleDocument is the worker entry point.
func (s *DocumentService) HandleDocument(ctx context.Context, documentID string) error {
	return s.processor.Process(ctx, documentID)
}

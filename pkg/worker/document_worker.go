package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-summarizer/internal/agent/llm"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
	"github.com/feichai0017/document-summarizer/pkg/queue"
)

// DocumentHandler runs the processing pipeline for one document.
type DocumentHandler interface {
	HandleDocument(ctx context.Context, documentID string) error
}

// StatusSaver persists the terminal task status; *queue.AsynqQueue
// satisfies it.
type StatusSaver interface {
	SaveFinalStatus(ctx context.Context, status *queue.TaskStatus) error
}

type DocumentWorker struct {
	BaseWorker
	handler     DocumentHandler
	statuses    StatusSaver
	softTimeout time.Duration
	maxRetry    int
}

func NewDocumentWorker(cfg *Config, handler DocumentHandler, statuses StatusSaver, log logger.Logger) (*DocumentWorker, error) {
	if cfg.Queue.Concurrency <= 0 {
		return nil, fmt.Errorf("worker concurrency must be positive, got %d", cfg.Queue.Concurrency)
	}
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = queue.Queues
	}

	server := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
			// asynq 的 shutdown 等待时间要覆盖 FAILED 状态写入
			ShutdownTimeout: 30 * time.Second,
		},
	)

	w := &DocumentWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		handler:     handler,
		statuses:    statuses,
		softTimeout: cfg.Queue.SoftTimeout,
		maxRetry:    cfg.Queue.MaxRetry,
	}

	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeDocumentProcess, w.ProcessTask)
	return w, nil
}

// ProcessTask handles one document:process delivery. Errors that a retry
// cannot fix are wrapped with asynq.SkipRetry.
func (w *DocumentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		maxRetry = w.maxRetry
	}
	log := w.logger.With(logger.TaskID(taskID), logger.Int("retried", retried))

	payload, err := queue.ParseProcessPayload(t.Payload())
	if err != nil {
		log.Error("Invalid task payload", logger.Error(err), logger.String("payload", string(t.Payload())))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log = log.With(logger.DocumentID(payload.DocumentID))
	log.Info("Processing document task")

	status := &queue.TaskStatus{
		TaskID:     taskID,
		DocumentID: payload.DocumentID,
		Status:     queue.StatusRunning,
		Retried:    retried,
		StartedAt:  time.Now().UTC(),
	}
	w.writeResult(t, log, status)

	ctx = logger.WithTaskID(ctx, taskID)
	ctx = logger.WithDocumentID(ctx, payload.DocumentID)
	ctx = llm.WithRetryCount(ctx, retried)
	if w.softTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.softTimeout)
		defer cancel()
	}

	err = w.handler.HandleDocument(ctx, payload.DocumentID)
	status.FinishedAt = time.Now().UTC()
	if err != nil {
		status.Error = err.Error()
		if permanent(err) || retried >= maxRetry {
			status.Status = queue.StatusFailed
			w.writeResult(t, log, status)
			w.saveStatus(log, status)
			log.Error("Document task failed", logger.Error(err))
			if permanent(err) {
				return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
			}
			return err
		}

		// the cached status is terminal only; asynq still tracks this one
		status.Status = queue.StatusRetrying
		w.writeResult(t, log, status)
		log.Warn("Document task will be retried", logger.Error(err), logger.Int("max_retry", maxRetry))
		return err
	}

	status.Status = queue.StatusCompleted
	w.writeResult(t, log, status)
	w.saveStatus(log, status)
	log.Info("Document task completed", logger.Duration("elapsed", status.FinishedAt.Sub(status.StartedAt)))
	return nil
}

// permanent errors: the document is gone or the deployment is misconfigured.
// A ConflictError is retried; the lease of a crashed run expires within the
// lock ttl.
func permanent(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConfiguration) ||
		errors.Is(err, apperrors.ErrValidation)
}

func (w *DocumentWorker) writeResult(t *asynq.Task, log logger.Logger, status *queue.TaskStatus) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	data, err := json.Marshal(status)
	if err == nil {
		_, err = rw.Write(data)
	}
	if err != nil {
		log.Warn("Failed to write task result", logger.Error(err))
	}
}

func (w *DocumentWorker) saveStatus(log logger.Logger, status *queue.TaskStatus) {
	if w.statuses == nil || status.TaskID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.statuses.SaveFinalStatus(ctx, status); err != nil {
		log.Warn("Failed to save task status", logger.Error(err))
	}
}

func (w *DocumentWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.logger.Info("Worker started")

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

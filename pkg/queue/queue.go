// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/document-summarizer/config"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

// TaskType 定义任务类型
const (
	TaskTypeDocumentProcess = "document:process"
)

// 队列名称与权重
var Queues = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

const defaultQueue = "default"

// Queue 接口定义
type Queue interface {
	EnqueueProcess(ctx context.Context, documentID string) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveFinalStatus(ctx context.Context, status *TaskStatus) error
}

// ProcessPayload is the body of a document:process task.
type ProcessPayload struct {
	DocumentID string `json:"documentId"`
}

// TaskStatus 定义任务状态
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	DocumentID string    `json:"documentId,omitempty"`
	Status     string    `json:"status"`
	Retried    int       `json:"retried"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Task status values.
const (
	StatusPending   = "pending"
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusRetrying  = "retrying"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     redis.UniversalClient
	cfg       config.QueueConfig
	logger    logger.Logger
}

// RedisOpt converts the redis section for asynq.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	}
}

// NewRedisClient 创建状态缓存与锁共用的 Redis 客户端
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(redisCfg config.RedisConfig, cfg config.QueueConfig, rdb redis.UniversalClient, log logger.Logger) *AsynqQueue {
	redisOpt := RedisOpt(redisCfg)
	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     rdb,
		cfg:       cfg,
		logger:    log,
	}
}

func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}

// NewProcessTask builds the task for one document. The hard time limit is
// enforced by asynq through Timeout.
func NewProcessTask(documentID string, cfg config.QueueConfig) (*asynq.Task, string, error) {
	payload, err := json.Marshal(ProcessPayload{DocumentID: documentID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal task: %w", err)
	}
	taskID := uuid.NewString()
	opts := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(defaultQueue),
		asynq.MaxRetry(cfg.MaxRetry),
		asynq.Timeout(cfg.HardTimeout),
		asynq.Retention(cfg.Retention),
	}
	return asynq.NewTask(TaskTypeDocumentProcess, payload, opts...), taskID, nil
}

// ParseProcessPayload decodes and checks a document:process payload.
func ParseProcessPayload(data []byte) (ProcessPayload, error) {
	var p ProcessPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if p.DocumentID == "" {
		return p, fmt.Errorf("invalid task data: missing documentId")
	}
	return p, nil
}

// EnqueueProcess 将文档处理任务加入队列
func (q *AsynqQueue) EnqueueProcess(ctx context.Context, documentID string) (string, error) {
	t, _, err := NewProcessTask(documentID, q.cfg)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	status := &TaskStatus{
		TaskID:     info.ID,
		DocumentID: documentID,
		Status:     StatusPending,
		StartedAt:  time.Now().UTC(),
	}
	if err := q.SaveFinalStatus(ctx, status); err != nil {
		q.logger.Warn("Failed to cache task status", logger.TaskID(info.ID), logger.Error(err))
	}
	return info.ID, nil
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

// GetTaskStatus prefers a terminal status from the cache and otherwise asks
// the inspector.
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var cached *TaskStatus
	data, err := q.redis.Get(ctx, statusKey(taskID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		if isTerminal(status.Status) {
			return &status, nil
		}
		cached = &status
	}

	info, err := q.findTask(taskID)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	status := convertAsynqStatus(info)
	if cached != nil {
		status.DocumentID = cached.DocumentID
	} else if p, err := ParseProcessPayload(info.Payload); err == nil {
		status.DocumentID = p.DocumentID
	}
	if err := q.SaveFinalStatus(ctx, status); err != nil {
		q.logger.Warn("Failed to cache task status", logger.TaskID(taskID), logger.Error(err))
	}
	return status, nil
}

func (q *AsynqQueue) findTask(taskID string) (*asynq.TaskInfo, error) {
	for name := range Queues {
		info, err := q.inspector.GetTaskInfo(name, taskID)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("failed to inspect task: %w", err)
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("task %s not found", taskID))
}

// CancelTask 取消任务: running tasks get a cancel signal, queued ones are
// deleted.
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	info, err := q.findTask(taskID)
	if err != nil {
		return err
	}

	switch info.State {
	case asynq.TaskStateActive:
		if err := q.inspector.CancelProcessing(taskID); err != nil {
			return fmt.Errorf("failed to cancel task: %w", err)
		}
	case asynq.TaskStateCompleted, asynq.TaskStateArchived:
		return apperrors.NewConflictError(fmt.Sprintf("task %s already finished", taskID))
	default:
		if err := q.inspector.DeleteTask(info.Queue, taskID); err != nil {
			return fmt.Errorf("failed to cancel task: %w", err)
		}
	}

	status := convertAsynqStatus(info)
	status.Status = StatusCancelled
	status.FinishedAt = time.Now().UTC()
	if p, err := ParseProcessPayload(info.Payload); err == nil {
		status.DocumentID = p.DocumentID
	}
	return q.SaveFinalStatus(ctx, status)
}

// SaveFinalStatus 保存任务状态, 过期时间与任务保留时间一致
func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	ttl := q.cfg.Retention
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func isTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		Retried:   info.Retried,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending:
		status.Status = StatusPending
	case asynq.TaskStateScheduled:
		status.Status = StatusScheduled
	case asynq.TaskStateActive:
		status.Status = StatusRunning
	case asynq.TaskStateRetry:
		status.Status = StatusRetrying
		status.Error = info.LastErr
	case asynq.TaskStateCompleted:
		status.Status = StatusCompleted
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateArchived:
		status.Status = StatusFailed
		status.Error = info.LastErr
		status.FinishedAt = info.LastFailedAt
	default:
		status.Status = info.State.String()
	}
	return status
}

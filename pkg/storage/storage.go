package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/feichai0017/document-summarizer/config"
	"github.com/feichai0017/document-summarizer/pkg/logger"
	"github.com/feichai0017/document-summarizer/pkg/storage/local"
	"github.com/feichai0017/document-summarizer/pkg/storage/minio"
	"github.com/feichai0017/document-summarizer/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage holds uploaded PDFs and persisted vector indices. Backends report a
// missing key with an error wrapping fs.ErrNotExist.
type Storage interface {
	// Store writes reader under key, replacing any previous object.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes objects under prefix last modified before threshold.
	CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal:
		return local.NewLocalStorage(cfg.Local.Root, log)
	case StorageTypeS3:
		return s3.NewS3Storage(cfg.S3, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

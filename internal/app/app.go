// Package app builds the object graph shared by the server, the worker and
// the CLI from one loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/document-summarizer/config"
	"github.com/feichai0017/document-summarizer/internal/agent/chunker"
	"github.com/feichai0017/document-summarizer/internal/agent/extractor"
	"github.com/feichai0017/document-summarizer/internal/agent/llm"
	"github.com/feichai0017/document-summarizer/internal/agent/rag"
	"github.com/feichai0017/document-summarizer/internal/agent/summarizer"
	"github.com/feichai0017/document-summarizer/internal/index"
	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/internal/repository/sqlite"
	"github.com/feichai0017/document-summarizer/internal/service/document"
	"github.com/feichai0017/document-summarizer/internal/service/pipeline"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/lock"
	"github.com/feichai0017/document-summarizer/pkg/logger"
	"github.com/feichai0017/document-summarizer/pkg/queue"
	"github.com/feichai0017/document-summarizer/pkg/storage"
)

// Options selects the process flavour. Without a queue the document lock is
// process local and task operations are unavailable.
type Options struct {
	WithQueue bool
}

type App struct {
	Config   *config.Config
	Logger   logger.Logger
	Store    *sqlite.Store
	Files    storage.Storage
	Provider llm.Provider
	Indexer  *index.Indexer
	Pipeline *pipeline.Pipeline
	Engine   *rag.Engine
	Redis    *redis.Client
	Queue    *queue.AsynqQueue
	Service  *document.DocumentService

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.Driver != "sqlite" {
		return nil, apperrors.NewConfigurationError("config.database", fmt.Sprintf("unsupported driver %q", cfg.Database.Driver))
	}
	a.Store, err = sqlite.NewStore(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	if err := a.Store.SeedSettings(ctx, cfg.Settings); err != nil {
		return nil, fmt.Errorf("failed to seed model settings: %w", err)
	}

	a.Files, err = storage.NewStorage(cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.Provider, err = llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Provider.Close)
	chat := llm.NewAudited(a.Provider, a.Store, log.Named("llm"))

	indexStore, err := a.indexStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Indexer = index.NewIndexer(a.Provider, indexStore, log.Named("index"))

	var (
		locker lock.Locker = lock.NewMemoryLocker()
		q      queue.Queue
	)
	if opts.WithQueue {
		a.Redis = queue.NewRedisClient(cfg.Redis)
		a.closers = append(a.closers, a.Redis.Close)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = lock.NewRedisLocker(a.Redis)
		a.Queue = queue.NewAsynqQueue(cfg.Redis, cfg.Queue, a.Redis, log.Named("queue"))
		a.closers = append(a.closers, a.Queue.Close)
		q = a.Queue
	}

	a.Pipeline = pipeline.New(
		a.Store,
		a.extractors(),
		chunker.New(
			chunker.WithChunkSize(cfg.Pipeline.ChunkSize),
			chunker.WithOverlap(cfg.Pipeline.ChunkOverlap),
		),
		summarizer.New(chat, log.Named("summarizer"), summarizer.WithConcurrency(cfg.Pipeline.MapConcurrency)),
		a.Indexer,
		locker,
		log.Named("pipeline"),
		pipeline.WithLockTTL(cfg.Queue.LockTTL),
	)

	a.Engine = rag.NewEngine(a.Indexer, a.Store, a.Store, chat, log.Named("rag"),
		rag.WithTopK(cfg.Pipeline.TopK),
		rag.WithTemperature(cfg.Pipeline.QATemperature),
	)

	a.Service = document.NewService(a.Store, a.Pipeline, a.Engine, q, a.Files, log.Named("document"),
		&document.ServiceConfig{
			MaxFileSize: cfg.Upload.MaxFileSize,
			ListLimit:   cfg.Upload.ListLimit,
		})
	return a, nil
}

func (a *App) indexStore(ctx context.Context) (index.Store, error) {
	switch a.Config.Index.Backend {
	case "pgvector":
		pg, err := index.NewPgStore(ctx, a.Config.Index.PostgresDSN, a.Config.Index.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to open pgvector index: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		return pg, nil
	default:
		return index.NewBlobStore(a.Files, a.Config.Index.Prefix), nil
	}
}

func (a *App) extractors() *extractor.Registry {
	log := a.Logger.Named("extractor")
	yt := a.Config.YouTube

	r := extractor.NewRegistry(log)
	r.Register(models.VariantDocument, extractor.NewPDFExtractor(a.Files, log))
	r.Register(models.VariantYouTube, extractor.NewYouTubeExtractor(
		extractor.NewClientTranscriptSource(nil, yt.Timeout),
		extractor.YouTubeConfig{
			Languages:        yt.Languages,
			PlaceholderText:  yt.PlaceholderText,
			PlaceholderTitle: yt.PlaceholderTitle,
		},
		log,
	))
	return r
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

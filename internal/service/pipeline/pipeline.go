// Package pipeline drives one document from UPLOADED to DONE or FAILED.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feichai0017/document-summarizer/internal/agent/chunker"
	"github.com/feichai0017/document-summarizer/internal/agent/extractor"
	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/internal/repository"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/lock"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

const (
	DefaultLockTTL = time.Minute

	failureWriteTimeout = 10 * time.Second
)

// Store is the slice of the repository a run touches.
type Store interface {
	repository.DocumentRepository
	repository.ChunkRepository
	repository.SettingsRepository
}

type Summarizer interface {
	Summarize(ctx context.Context, chunks []string, settings models.ModelSettings) (string, error)
	GenerateTitle(ctx context.Context, summary string, settings models.ModelSettings) (string, error)
}

type Indexer interface {
	Index(ctx context.Context, documentID string, chunks []string) error
}

type Pipeline struct {
	store      Store
	extractor  extractor.Extractor
	chunker    *chunker.Chunker
	summarizer Summarizer
	indexer    Indexer
	locker     lock.Locker
	lockTTL    time.Duration
	logger     logger.Logger
}

type Option func(*Pipeline)

// WithLockTTL sets the document lease length. A live run renews the lease
// every third of ttl, so a crashed worker frees the document within ttl.
func WithLockTTL(ttl time.Duration) Option {
	return func(p *Pipeline) {
		if ttl > 0 {
			p.lockTTL = ttl
		}
	}
}

func New(store Store, ext extractor.Extractor, ch *chunker.Chunker, sum Summarizer, idx Indexer, locker lock.Locker, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		extractor:  ext,
		chunker:    ch,
		summarizer: sum,
		indexer:    idx,
		locker:     locker,
		lockTTL:    DefaultLockTTL,
		logger:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs every stage for the document. Any stage error marks the
// document FAILED and is returned unchanged. A run that finds the document
// locked returns ConflictError without touching it, and a run that loses its
// lease stops without writing a status.
func (p *Pipeline) Process(ctx context.Context, documentID string) (err error) {
	ctx = logger.WithDocumentID(ctx, documentID)
	log := logger.NewContextLogger(p.logger).FromContext(ctx)

	lease, err := p.locker.Acquire(ctx, lock.DocumentKey(documentID), p.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			log.Warn("Document is already being processed")
			return apperrors.NewConflictError(fmt.Sprintf("document %s is already being processed", documentID))
		}
		return fmt.Errorf("failed to acquire document lock: %w", err)
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			log.Warn("Failed to release document lock", logger.Error(relErr))
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	stop := p.keepAlive(ctx, log, lease, cancel)
	defer func() {
		stop()
		cancel(nil)
	}()
	defer func() {
		if cause := context.Cause(ctx); err != nil && errors.Is(cause, lock.ErrLost) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
	}()

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	defer func() {
		// another run owns the document now
		if err == nil || errors.Is(context.Cause(ctx), lock.ErrLost) {
			return
		}
		p.markFailed(ctx, log, documentID, err)
	}()

	// one snapshot for the whole run
	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		return err
	}

	if err := p.store.UpdateStatus(ctx, documentID, models.StatusProcessing); err != nil {
		return err
	}
	log.Info("Document processing started", logger.Stage("start"), logger.String("variant", string(doc.Variant)))
	start := time.Now()

	summary, title, err := p.run(ctx, log, doc, settings)
	if err != nil {
		return err
	}

	if err := p.store.CompleteDocument(ctx, documentID, summary, title); err != nil {
		return err
	}
	log.Info("Document processing finished",
		logger.Stage("done"),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// keepAlive renews lease until stop is called. Losing the lease cancels the
// run with lock.ErrLost.
func (p *Pipeline) keepAlive(ctx context.Context, log logger.Logger, lease lock.Lease, cancel context.CancelCauseFunc) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(max(p.lockTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lease.Refresh(ctx, p.lockTTL)
				switch {
				case err == nil:
				case errors.Is(err, lock.ErrLost):
					log.Error("Document lock lost, aborting run", logger.Error(err))
					cancel(err)
					return
				default:
					log.Warn("Failed to renew document lock", logger.Error(err))
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (p *Pipeline) run(ctx context.Context, log logger.Logger, doc *models.Document, settings models.ModelSettings) (summary, title string, err error) {
	log.Info("Extracting text", logger.Stage("extract"))
	res, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return "", "", err
	}
	if res.Outcome == extractor.OutcomeDegraded {
		log.Warn("Extraction degraded to placeholder", logger.Stage("extract"), logger.Error(res.Reason))
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", "", apperrors.NewExtractionError("pipeline.extract", "no text extracted from document", nil)
	}
	title = doc.Title
	if res.Title != "" {
		title = res.Title
	}

	log.Info("Splitting text", logger.Stage("chunk"), logger.Int("chars", len(text)))
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return "", "", apperrors.NewExtractionError("pipeline.chunk", "text produced no chunks", nil)
	}
	if _, err := p.store.ReplaceChunks(ctx, doc.ID, pieces); err != nil {
		return "", "", fmt.Errorf("failed to save chunks: %w", err)
	}

	log.Info("Summarizing", logger.Stage("summarize"), logger.Int("chunks", len(pieces)))
	summary, err = p.summarizer.Summarize(ctx, pieces, settings)
	if err != nil {
		return "", "", err
	}

	log.Info("Indexing", logger.Stage("index"))
	if err := p.indexer.Index(ctx, doc.ID, pieces); err != nil {
		return "", "", err
	}

	// a placeholder transcript keeps its placeholder title
	if doc.Variant == models.VariantYouTube && res.Outcome == extractor.OutcomeOK {
		log.Info("Generating title", logger.Stage("title"))
		generated, err := p.summarizer.GenerateTitle(ctx, summary, settings)
		if err != nil {
			return "", "", err
		}
		if generated != "" {
			title = generated
		}
	}
	return summary, title, nil
}

func (p *Pipeline) markFailed(ctx context.Context, log logger.Logger, documentID string, cause error) {
	log.Error("Document processing failed",
		logger.String("kind", string(apperrors.KindOf(cause))),
		logger.Error(cause),
	)
	// the run context may already be past its deadline
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := p.store.UpdateStatus(wctx, documentID, models.StatusFailed); err != nil {
		log.Error("Failed to mark document as failed", logger.Error(err))
	}
}

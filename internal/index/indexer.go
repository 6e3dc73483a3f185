package index

import (
	"context"
	"fmt"
	"time"

	"github.com/feichai0017/document-summarizer/internal/agent/llm"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

const (
	DefaultBatchSize = 16
	DefaultTopK      = 4
)

// Indexer embeds chunks and hands complete indices to a Store. Nothing is
// written until every chunk has been embedded, so a failed run leaves any
// earlier index in place.
type Indexer struct {
	embedder  llm.Embedder
	store     Store
	batchSize int
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*Indexer)

func WithBatchSize(n int) Option {
	return func(x *Indexer) {
		if n > 0 {
			x.batchSize = n
		}
	}
}

func NewIndexer(embedder llm.Embedder, store Store, log logger.Logger, opts ...Option) *Indexer {
	x := &Indexer{
		embedder:  embedder,
		store:     store,
		batchSize: DefaultBatchSize,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Index builds the index for documentID from chunks, in order, and persists
// it over any previous one.
func (x *Indexer) Index(ctx context.Context, documentID string, chunks []string) error {
	if len(chunks) == 0 {
		return apperrors.NewIndexingError("index.build", "no chunks to index", nil)
	}

	ix := &Index{
		DocumentID: documentID,
		Entries:    make([]Entry, 0, len(chunks)),
		CreatedAt:  x.now().UTC(),
	}
	for start := 0; start < len(chunks); start += x.batchSize {
		end := min(start+x.batchSize, len(chunks))
		vecs, err := x.embedder.Embed(ctx, chunks[start:end])
		if err != nil {
			return apperrors.NewIndexingError("index.embed", fmt.Sprintf("chunks %d-%d", start, end-1), err)
		}
		if len(vecs) != end-start {
			return apperrors.NewIndexingError("index.embed", fmt.Sprintf("got %d vectors for %d chunks", len(vecs), end-start), nil)
		}
		for i, v := range vecs {
			if ix.Dimensions == 0 {
				ix.Dimensions = len(v)
			}
			if len(v) != ix.Dimensions {
				return apperrors.NewIndexingError("index.embed", fmt.Sprintf("chunk %d has %d dimensions, want %d", start+i, len(v), ix.Dimensions), nil)
			}
			ix.Entries = append(ix.Entries, Entry{Position: start + i, Text: chunks[start+i], Vector: v})
		}
	}

	if err := x.store.Save(ctx, ix); err != nil {
		return apperrors.NewIndexingError("index.save", "persist index", err)
	}
	x.logger.Info("Index saved",
		logger.DocumentID(documentID),
		logger.Int("entries", len(ix.Entries)),
		logger.Int("dimensions", ix.Dimensions),
	)
	return nil
}

// Search returns up to k chunk texts closest to query.
func (x *Indexer) Search(ctx context.Context, documentID, query string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperrors.NewIndexingError("index.search", "embed query", err)
	}
	if len(vecs) != 1 {
		return nil, apperrors.NewIndexingError("index.search", "no vector for query", nil)
	}

	hits, err := x.store.Search(ctx, documentID, vecs[0], k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return texts, nil
}

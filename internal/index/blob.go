package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/storage"
)

const DefaultPrefix = "indices"

var _ Store = (*BlobStore)(nil)

// BlobStore keeps each index as one JSON object in object storage under
// <prefix>/doc_<id>.json.
type BlobStore struct {
	files  storage.Storage
	prefix string
}

func NewBlobStore(files storage.Storage, prefix string) *BlobStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &BlobStore{files: files, prefix: prefix}
}

func (b *BlobStore) Key(documentID string) string {
	return path.Join(b.prefix, "doc_"+documentID+".json")
}

func (b *BlobStore) Save(ctx context.Context, ix *Index) error {
	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if _, err := b.files.Store(ctx, bytes.NewReader(data), b.Key(ix.DocumentID)); err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	return nil
}

func (b *BlobStore) Load(ctx context.Context, documentID string) (*Index, error) {
	rc, err := b.files.Get(ctx, b.Key(documentID))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperrors.NewIndexNotFoundError(documentID)
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &ix, nil
}

func (b *BlobStore) Search(ctx context.Context, documentID string, query []float32, k int) ([]Hit, error) {
	ix, err := b.Load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return ix.Search(query, k), nil
}

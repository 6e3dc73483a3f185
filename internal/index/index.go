// Package index builds and queries the per-document vector index used for
// retrieval.
package index

import (
	"context"
	"math"
	"sort"
	"time"
)

// Entry pairs a chunk with its embedding.
type Entry struct {
	Position int       `json:"position"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector"`
}

// Index is the persisted structure for one document. It is always written
// whole.
type Index struct {
	DocumentID string    `json:"documentId"`
	Dimensions int       `json:"dimensions"`
	Entries    []Entry   `json:"entries"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Hit struct {
	Position int
	Text     string
	Score    float64
}

// Store persists indices keyed by document id. Save fully replaces any prior
// index. Search reports a missing index as IndexNotFoundError.
type Store interface {
	Save(ctx context.Context, ix *Index) error
	Search(ctx context.Context, documentID string, query []float32, k int) ([]Hit, error)
}

// Search ranks entries by cosine similarity to query, closest first. Ties
// keep chunk order.
func (ix *Index) Search(query []float32, k int) []Hit {
	if k <= 0 || len(ix.Entries) == 0 {
		return nil
	}
	hits := make([]Hit, len(ix.Entries))
	for i, e := range ix.Entries {
		hits[i] = Hit{Position: e.Position, Text: e.Text, Score: Cosine(query, e.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// Cosine returns 0 for mismatched or zero-length vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

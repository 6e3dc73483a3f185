package index

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
)

var _ Store = (*PgStore)(nil)

// PgStore keeps indices in Postgres with the pgvector extension. One header
// row per document marks that an index exists, so an index over zero rows is
// distinguishable from no index.
type PgStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPgStore(ctx context.Context, dsn string, dimensions int) (*PgStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PgStore{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS vector_indices (
			document_id TEXT PRIMARY KEY,
			dimensions  INTEGER NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vector_entries (
			document_id TEXT NOT NULL REFERENCES vector_indices(document_id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			text        TEXT NOT NULL,
			embedding   vector(%d) NOT NULL,
			PRIMARY KEY (document_id, position)
		)`, s.dimensions),
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate vector tables: %w", err)
		}
	}
	return nil
}

// Save replaces the document's rows in one transaction so readers see either
// the old index or the new one.
func (s *PgStore) Save(ctx context.Context, ix *Index) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM vector_indices WHERE document_id = $1`, ix.DocumentID); err != nil {
		return fmt.Errorf("delete old index: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO vector_indices (document_id, dimensions, created_at) VALUES ($1, $2, $3)`,
		ix.DocumentID, ix.Dimensions, ix.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert index header: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range ix.Entries {
		batch.Queue(
			`INSERT INTO vector_entries (document_id, position, text, embedding) VALUES ($1, $2, $3, $4)`,
			ix.DocumentID, e.Position, e.Text, pgvector.NewVector(e.Vector),
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range ix.Entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Search(ctx context.Context, documentID string, query []float32, k int) ([]Hit, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_indices WHERE document_id = $1)`, documentID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check index: %w", err)
	}
	if !exists {
		return nil, apperrors.NewIndexNotFoundError(documentID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT position, text, 1 - (embedding <=> $2) AS score
		 FROM vector_entries
		 WHERE document_id = $1
		 ORDER BY embedding <=> $2, position
		 LIMIT $3`,
		documentID, pgvector.NewVector(query), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Position, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgStore) Close() {
	s.pool.Close()
}

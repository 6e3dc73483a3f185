// Package sqlite implements the repository ports on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/internal/repository"
	"github.com/feichai0017/document-summarizer/internal/repository/sqlite/migrations"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
)

var _ repository.Repository = (*Store)(nil)

type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens (creating if needed) the database file at path and applies
// pending migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL lets the API read while the worker writes
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Documents ====================

const documentColumns = `id, variant, file, url, title, status, summary, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc                  models.Document
		file, url            sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	if err := row.Scan(&doc.ID, &doc.Variant, &file, &url, &doc.Title, &doc.Status, &doc.Summary, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.File = file.String
	doc.URL = url.String
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.StatusUploaded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Variant, nullString(doc.File), nullString(doc.URL), doc.Title, doc.Status, doc.Summary,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("document %s not found", id))
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	return s.updateDocument(ctx, id, `UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now().UTC(), id)
}

func (s *Store) CompleteDocument(ctx context.Context, id, summary, title string) error {
	return s.updateDocument(ctx, id,
		`UPDATE documents SET summary = ?, title = ?, status = ?, updated_at = ? WHERE id = ?`,
		summary, title, models.StatusDone, s.now().UTC(), id)
}

func (s *Store) updateDocument(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("document %s not found", id))
	}
	return nil
}

func (s *Store) ListLatest(ctx context.Context, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) AnyProcessing(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE status = ?)`, models.StatusProcessing,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking processing documents: %w", err)
	}
	return exists, nil
}

// ==================== Chunks ====================

func (s *Store) ReplaceChunks(ctx context.Context, documentID string, texts []string) ([]models.Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return nil, fmt.Errorf("deleting chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, position, text, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Position:   i,
			Text:       text,
			CreatedAt:  now,
		}
		if _, err := stmt.ExecContext(ctx, chunks[i].ID, documentID, i, text, now); err != nil {
			return nil, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chunks: %w", err)
	}
	return chunks, nil
}

func (s *Store) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, text, created_at FROM chunks
		WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			c         models.Chunk
			createdAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ==================== Messages ====================

func (s *Store) ListMessages(ctx context.Context, documentID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, role, content, seq, created_at FROM messages
		WHERE document_id = ? ORDER BY seq
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var (
			m         models.Message
			createdAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Role, &m.Content, &m.Seq, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if createdAt.Valid {
			m.CreatedAt = createdAt.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) AppendTurn(ctx context.Context, documentID, question, answer string) ([]models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE document_id = ?`, documentID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("reading message sequence: %w", err)
	}

	now := s.now().UTC()
	turn := []models.Message{
		{ID: uuid.NewString(), DocumentID: documentID, Role: models.RoleUser, Content: question, Seq: next, CreatedAt: now},
		{ID: uuid.NewString(), DocumentID: documentID, Role: models.RoleAssistant, Content: answer, Seq: next + 1, CreatedAt: now},
	}
	for _, m := range turn {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, document_id, role, content, seq, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.ID, m.DocumentID, m.Role, m.Content, m.Seq, m.CreatedAt); err != nil {
			return nil, fmt.Errorf("inserting %s message: %w", m.Role, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing messages: %w", err)
	}
	return turn, nil
}

// ==================== Settings ====================

func (s *Store) GetSettings(ctx context.Context) (models.ModelSettings, error) {
	var (
		m         models.ModelSettings
		updatedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT model, temperature, max_retries, summary_prompt, map_prompt,
		       combine_prompt, title_prompt, qa_system_prompt, updated_at
		FROM model_settings WHERE id = 1
	`).Scan(&m.Model, &m.Temperature, &m.MaxRetries, &m.SummaryPrompt, &m.MapPrompt,
		&m.CombinePrompt, &m.TitlePrompt, &m.QASystemPrompt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ModelSettings{}, apperrors.NewConfigurationError("settings.get", "model settings have not been configured")
		}
		return models.ModelSettings{}, fmt.Errorf("scanning settings: %w", err)
	}
	if updatedAt.Valid {
		m.UpdatedAt = updatedAt.Time
	}
	return m.WithDefaults(), nil
}

func (s *Store) SaveSettings(ctx context.Context, m models.ModelSettings) error {
	return s.putSettings(ctx, m, `
		ON CONFLICT(id) DO UPDATE SET
			model = excluded.model,
			temperature = excluded.temperature,
			max_retries = excluded.max_retries,
			summary_prompt = excluded.summary_prompt,
			map_prompt = excluded.map_prompt,
			combine_prompt = excluded.combine_prompt,
			title_prompt = excluded.title_prompt,
			qa_system_prompt = excluded.qa_system_prompt,
			updated_at = excluded.updated_at`)
}

func (s *Store) SeedSettings(ctx context.Context, m models.ModelSettings) error {
	return s.putSettings(ctx, m, `ON CONFLICT(id) DO NOTHING`)
}

func (s *Store) putSettings(ctx context.Context, m models.ModelSettings, onConflict string) error {
	if err := m.Validate(); err != nil {
		return apperrors.NewValidationError("settings", err.Error())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_settings (id, model, temperature, max_retries, summary_prompt, map_prompt,
		                            combine_prompt, title_prompt, qa_system_prompt, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`+onConflict, m.Model, m.Temperature, m.MaxRetries, m.SummaryPrompt, m.MapPrompt,
		m.CombinePrompt, m.TitlePrompt, m.QASystemPrompt, s.now().UTC())
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// ==================== Call logs ====================

func (s *Store) RecordCall(ctx context.Context, call *models.CallLog) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, model, temperature, max_retries, messages, result, is_successful, is_retried, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, call.ID, call.Model, call.Temperature, call.MaxRetries, string(call.Messages), string(call.Result),
		call.IsSuccessful, call.IsRetried, call.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting call log: %w", err)
	}
	return nil
}

func (s *Store) ListCalls(ctx context.Context, limit int) ([]models.CallLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, temperature, max_retries, messages, result, is_successful, is_retried, created_at
		FROM call_logs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying call logs: %w", err)
	}
	defer rows.Close()

	var calls []models.CallLog
	for rows.Next() {
		var (
			c                models.CallLog
			messages, result string
			createdAt        sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Model, &c.Temperature, &c.MaxRetries, &messages, &result,
			&c.IsSuccessful, &c.IsRetried, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning call log: %w", err)
		}
		c.Messages = []byte(messages)
		c.Result = []byte(result)
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

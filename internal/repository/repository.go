// Package repository declares the persistence ports for documents, chunks,
// conversation turns, model settings and LLM call logs.
package repository

import (
	"context"

	"github.com/feichai0017/document-summarizer/internal/models"
)

type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	// GetDocument returns NotFoundError for an unknown id.
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	// CompleteDocument writes summary, title and status DONE in one statement.
	CompleteDocument(ctx context.Context, id, summary, title string) error
	ListLatest(ctx context.Context, limit int) ([]*models.Document, error)
	AnyProcessing(ctx context.Context) (bool, error)
}

type ChunkRepository interface {
	// ReplaceChunks deletes the document's chunks and inserts texts in order,
	// atomically.
	ReplaceChunks(ctx context.Context, documentID string, texts []string) ([]models.Chunk, error)
	ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
}

type MessageRepository interface {
	// ListMessages returns turns in creation order.
	ListMessages(ctx context.Context, documentID string) ([]models.Message, error)
	// AppendTurn stores the question then the answer, atomically.
	AppendTurn(ctx context.Context, documentID, question, answer string) ([]models.Message, error)
}

type SettingsRepository interface {
	// GetSettings returns ConfigurationError when no settings row exists.
	GetSettings(ctx context.Context) (models.ModelSettings, error)
	SaveSettings(ctx context.Context, s models.ModelSettings) error
	// SeedSettings stores s only if no row exists yet.
	SeedSettings(ctx context.Context, s models.ModelSettings) error
}

type CallLogRepository interface {
	RecordCall(ctx context.Context, call *models.CallLog) error
	ListCalls(ctx context.Context, limit int) ([]models.CallLog, error)
}

// Repository bundles every port behind one database.
type Repository interface {
	DocumentRepository
	ChunkRepository
	MessageRepository
	SettingsRepository
	CallLogRepository
	Close() error
}

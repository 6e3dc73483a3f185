package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-summarizer/internal/models"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func createPDF(t *testing.T, s *Store, file string) *models.Document {
	t.Helper()
	doc := &models.Document{Variant: models.VariantDocument, File: file}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	return doc
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	s1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStore(path)
	require.NoError(t, err)
	defer s2.Close()

	var n int
	require.NoError(t, s2.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestDocuments_CreateGetUpdate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := createPDF(t, s, "pdfs/doc.pdf")
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, models.StatusUploaded, doc.Status)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VariantDocument, got.Variant)
	assert.Equal(t, "pdfs/doc.pdf", got.File)
	assert.Empty(t, got.URL)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.UpdateStatus(ctx, doc.ID, models.StatusProcessing))
	busy, err := s.AnyProcessing(ctx)
	require.NoError(t, err)
	assert.True(t, busy)

	require.NoError(t, s.CompleteDocument(ctx, doc.ID, "a summary", "a title"))
	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, got.Status)
	assert.Equal(t, "a summary", got.Summary)
	assert.Equal(t, "a title", got.Title)

	busy, err = s.AnyProcessing(ctx)
	require.NoError(t, err)
	assert.False(t, busy)

	_, err = s.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", models.StatusFailed), apperrors.ErrNotFound)
}

func TestDocuments_SourceMatchesVariant(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.CreateDocument(ctx, &models.Document{Variant: models.VariantYouTube, File: "pdfs/x.pdf"})
	assert.Error(t, err)

	err = s.CreateDocument(ctx, &models.Document{Variant: models.VariantDocument, File: "pdfs/x.pdf", URL: "https://youtu.be/abc12345678"})
	assert.Error(t, err)

	require.NoError(t, s.CreateDocument(ctx, &models.Document{Variant: models.VariantYouTube, URL: "https://youtu.be/abc12345678"}))
}

func TestDocuments_ListLatest(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		doc := &models.Document{Variant: models.VariantDocument, File: "pdfs/f.pdf", Title: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateDocument(context.Background(), doc))
	}

	docs, err := s.ListLatest(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, docs, 5)
	assert.Equal(t, "g", docs[0].Title)
	assert.Equal(t, "c", docs[4].Title)
}

func TestChunks_ReplaceIsWholesale(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	doc := createPDF(t, s, "pdfs/doc.pdf")

	_, err := s.ReplaceChunks(ctx, doc.ID, []string{"one", "two", "three"})
	require.NoError(t, err)
	chunks, err := s.ReplaceChunks(ctx, doc.ID, []string{"uno", "dos"})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	stored, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "uno", stored[0].Text)
	assert.Equal(t, 0, stored[0].Position)
	assert.Equal(t, "dos", stored[1].Text)

	// foreign key rejects chunks for unknown documents and the old set stays
	_, err = s.ReplaceChunks(ctx, "ghost", []string{"x"})
	assert.Error(t, err)
}

func TestMessages_AppendTurnKeepsOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	doc := createPDF(t, s, "pdfs/doc.pdf")

	_, err := s.AppendTurn(ctx, doc.ID, "q1", "a1")
	require.NoError(t, err)
	turn, err := s.AppendTurn(ctx, doc.ID, "q2", "a2")
	require.NoError(t, err)
	assert.Equal(t, 3, turn[0].Seq)

	msgs, err := s.ListMessages(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	var got []string
	for _, m := range msgs {
		got = append(got, string(m.Role)+":"+m.Content)
	}
	assert.Equal(t, []string{"user:q1", "assistant:a1", "user:q2", "assistant:a2"}, got)

	empty, err := s.ListMessages(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSettings_SeedGetSave(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetSettings(ctx)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	seed := models.DefaultSettings()
	require.NoError(t, s.SeedSettings(ctx, seed))

	other := seed
	other.Model = "ignored"
	require.NoError(t, s.SeedSettings(ctx, other))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, models.DefaultMapPrompt, got.MapPrompt)

	got.Model = "gpt-4o"
	got.Temperature = 0.7
	got.MaxRetries = 2
	require.NoError(t, s.SaveSettings(ctx, got))

	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Equal(t, 2, got.MaxRetries)

	bad := got
	bad.Temperature = 1.5
	assert.ErrorIs(t, s.SaveSettings(ctx, bad), apperrors.ErrValidation)
}

func TestCallLogs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	msgs, _ := json.Marshal([]map[string]string{{"role": "user", "content": "hi"}})
	require.NoError(t, s.RecordCall(ctx, &models.CallLog{
		Model:        "gpt-4o-mini",
		Temperature:  0,
		MaxRetries:   3,
		Messages:     msgs,
		Result:       json.RawMessage(`{"status":"success","message":"hello"}`),
		IsSuccessful: true,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.RecordCall(ctx, &models.CallLog{
		Model:     "gpt-4o-mini",
		Messages:  msgs,
		Result:    json.RawMessage(`{"status":"error","error":"boom"}`),
		IsRetried: true,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC),
	}))

	calls, err := s.ListCalls(ctx, 10)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.False(t, calls[0].IsSuccessful)
	assert.True(t, calls[0].IsRetried)
	assert.True(t, calls[1].IsSuccessful)
	assert.Equal(t, 3, calls[1].MaxRetries)
	assert.JSONEq(t, string(msgs), string(calls[1].Messages))
}

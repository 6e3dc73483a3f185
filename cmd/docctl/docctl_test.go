package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/pkg/converters"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
)

type fakeService struct {
	docs      []converters.DocumentView
	settings  models.ModelSettings
	handled   []string
	handleErr error
	asked     string
	cleanedAt time.Duration
	gotLimit  int
	chunks    []models.Chunk
	calls     []models.CallLog
}

func (f *fakeService) List(_ context.Context, limit int) ([]converters.DocumentView, error) {
	f.gotLimit = limit
	return f.docs, nil
}

func (f *fakeService) Get(_ context.Context, id string) (*converters.DocumentView, error) {
	for i := range f.docs {
		if f.docs[i].ID == id {
			return &f.docs[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("document " + id + " not found")
}

func (f *fakeService) Ask(_ context.Context, _, question string) (string, error) {
	f.asked = question
	return "forty-two", nil
}

func (f *fakeService) Chunks(_ context.Context, id string) ([]models.Chunk, error) {
	if _, err := f.Get(context.Background(), id); err != nil {
		return nil, err
	}
	return f.chunks, nil
}

func (f *fakeService) Calls(_ context.Context, limit int) ([]models.CallLog, error) {
	f.gotLimit = limit
	return f.calls, nil
}

func (f *fakeService) GetSettings(context.Context) (models.ModelSettings, error) {
	return f.settings, nil
}

func (f *fakeService) UpdateSettings(_ context.Context, s models.ModelSettings) (models.ModelSettings, error) {
	f.settings = s
	return s, nil
}

func (f *fakeService) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.cleanedAt = olderThan
	return nil
}

func (f *fakeService) HandleDocument(_ context.Context, id string) error {
	f.handled = append(f.handled, id)
	return f.handleErr
}

func run(t *testing.T, svc *fakeService, args ...string) (string, error) {
	t.Helper()
	docService = svc
	t.Cleanup(func() {
		docService = nil
		listLimit = 0
		callsLimit = 20
		cleanupOlderThan = 24 * time.Hour
		for _, name := range []string{"model", "temperature", "max-retries"} {
			settingsSetCmd.Flags().Lookup(name).Changed = false
		}
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestList(t *testing.T) {
	svc := &fakeService{docs: []converters.DocumentView{{
		ID:             "doc-1",
		VariantDisplay: "PDF",
		StatusDisplay:  "Done",
		DisplayName:    "report.pdf",
		CreatedAt:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}}}

	out, err := run(t, svc, "list", "--limit", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, svc.gotLimit)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "2024-05-01 10:00:00")
}

func TestList_Empty(t *testing.T) {
	out, err := run(t, &fakeService{}, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents.")
}

func TestProcess(t *testing.T) {
	svc := &fakeService{docs: []converters.DocumentView{{
		ID: "doc-1", DisplayName: "talk", StatusDisplay: "Done", Title: "Talk", Summary: "short summary",
	}}}

	out, err := run(t, svc, "process", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, svc.handled)
	assert.Contains(t, out, "short summary")
	assert.Contains(t, out, "Title:    Talk")
}

func TestProcess_Failure(t *testing.T) {
	svc := &fakeService{
		docs:      []converters.DocumentView{{ID: "doc-1", StatusDisplay: "Failed"}},
		handleErr: apperrors.NewExtractionError("extract.pdf", "no text", nil),
	}

	out, err := run(t, svc, "process", "doc-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExtraction, apperrors.KindOf(err))
	assert.Contains(t, out, "Failed")
}

func TestAsk_JoinsArgs(t *testing.T) {
	svc := &fakeService{}
	out, err := run(t, svc, "ask", "doc-1", "what", "is", "it?")
	require.NoError(t, err)
	assert.Equal(t, "what is it?", svc.asked)
	assert.Equal(t, "forty-two\n", out)
}

func TestSettingsSet_OnlyChangedFlags(t *testing.T) {
	svc := &fakeService{settings: models.DefaultSettings()}
	before := svc.settings

	out, err := run(t, svc, "settings", "set", "--temperature", "0.7")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, svc.settings.Temperature, 1e-9)
	assert.Equal(t, before.Model, svc.settings.Model)
	assert.Equal(t, before.MaxRetries, svc.settings.MaxRetries)
	assert.Contains(t, out, "Settings updated.")
}

func TestCleanup(t *testing.T) {
	svc := &fakeService{}
	_, err := run(t, svc, "cleanup", "--older-than", "2h")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, svc.cleanedAt)
}

func TestChunks(t *testing.T) {
	svc := &fakeService{
		docs: []converters.DocumentView{{ID: "doc-1"}},
		chunks: []models.Chunk{
			{Position: 0, Text: "Goroutines are cheap."},
			{Position: 1, Text: "Channels\nconnect them."},
		},
	}

	out, err := run(t, svc, "chunks", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "POS")
	assert.Contains(t, out, "Goroutines are cheap.")
	assert.Contains(t, out, "Channels connect them.")

	_, err = run(t, svc, "chunks", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCalls(t *testing.T) {
	svc := &fakeService{calls: []models.CallLog{{
		Model:     "gpt-4o-mini",
		Result:    []byte(`{"status":"error","error":"boom"}`),
		IsRetried: true,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}}

	out, err := run(t, svc, "calls", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, svc.gotLimit)
	assert.Contains(t, out, "2024-05-01 12:00:00")
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, `"error":"boom"`)

	out, err = run(t, &fakeService{}, "calls")
	require.NoError(t, err)
	assert.Contains(t, out, "No LLM calls recorded.")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "(not set)", oneLine(""))
	assert.Equal(t, "a b", oneLine("a\nb"))

	long := oneLine(strings.Repeat("x", 100))
	assert.Len(t, []rune(long), 60)
	assert.True(t, strings.HasSuffix(long, "..."))
}

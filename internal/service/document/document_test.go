package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/internal/repository/sqlite"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
	"github.com/feichai0017/document-summarizer/pkg/queue"
	"github.com/feichai0017/document-summarizer/pkg/storage/local"
)

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
	err      error
	statuses map[string]*queue.TaskStatus
}

func (q *fakeQueue) EnqueueProcess(_ context.Context, documentID string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.enqueued = append(q.enqueued, documentID)
	return "task-" + documentID, nil
}

func (q *fakeQueue) GetTaskStatus(_ context.Context, taskID string) (*queue.TaskStatus, error) {
	if s, ok := q.statuses[taskID]; ok {
		return s, nil
	}
	return nil, apperrors.NewNotFoundError("task " + taskID + " not found")
}

func (q *fakeQueue) CancelTask(ctx context.Context, taskID string) error {
	_, err := q.GetTaskStatus(ctx, taskID)
	return err
}

func (q *fakeQueue) SaveFinalStatus(context.Context, *queue.TaskStatus) error { return nil }

type fakeProcessor struct{ ids []string }

func (p *fakeProcessor) Process(_ context.Context, id string) error {
	p.ids = append(p.ids, id)
	return nil
}

type fakeAnswerer struct{ err error }

func (a fakeAnswerer) Answer(_ context.Context, _, question string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "answer to " + question, nil
}

type fixture struct {
	svc   *DocumentService
	store *sqlite.Store
	files *local.LocalStorage
	queue *fakeQueue
	proc  *fakeProcessor
}

func newFixture(t *testing.T, answerer Answerer) *fixture {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedSettings(context.Background(), models.DefaultSettings()))

	files, err := local.NewLocalStorage(t.TempDir(), logger.NewNop())
	require.NoError(t, err)

	q := &fakeQueue{statuses: map[string]*queue.TaskStatus{}}
	proc := &fakeProcessor{}
	svc := NewService(store, proc, answerer, q, files, logger.NewNop(), nil)
	return &fixture{svc: svc, store: store, files: files, queue: q, proc: proc}
}

func pdfUpload(name string) UploadRequest {
	data := []byte("%PDF-1.4\n% test document\n%%EOF\n")
	return UploadRequest{File: bytes.NewReader(data), Filename: name, Size: int64(len(data))}
}

func TestUpload_PDF(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()

	req := pdfUpload("doc.pdf")
	req.Title = "  Quarterly report "
	res, err := f.svc.Upload(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "task-"+res.Document.ID, res.TaskID)
	assert.Equal(t, []string{res.Document.ID}, f.queue.enqueued)
	assert.Equal(t, "Uploaded", res.Document.StatusDisplay)
	assert.Equal(t, "doc.pdf", res.Document.Filename)
	assert.Equal(t, "Quarterly report", res.Document.Title)

	doc, err := f.store.GetDocument(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.File, UploadPrefix+"/"))

	rc, err := f.files.Get(ctx, doc.File)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestUpload_YouTube(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	res, err := f.svc.Upload(context.Background(), UploadRequest{URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, "youtube", res.Document.Variant)
	assert.Equal(t, "YouTube Video", res.Document.VariantDisplay)
	assert.Equal(t, "No file", res.Document.Filename)
}

func TestUpload_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  UploadRequest
	}{
		{name: "nothing", req: UploadRequest{}},
		{name: "both", req: func() UploadRequest {
			r := pdfUpload("doc.pdf")
			r.URL = "https://youtu.be/abc12345678"
			return r
		}()},
		{name: "not youtube", req: UploadRequest{URL: "https://example.com/v=abc12345678"}},
		{name: "no video id", req: UploadRequest{URL: "https://www.youtube.com/"}},
		{name: "wrong extension", req: pdfUpload("doc.docx")},
		{name: "not a pdf", req: UploadRequest{File: strings.NewReader("plain text"), Filename: "doc.pdf", Size: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fakeAnswerer{})
			_, err := f.svc.Upload(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Empty(t, f.queue.enqueued)

			docs, err := f.store.ListLatest(context.Background(), 10)
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestUpload_RefusedWhileProcessing(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, pdfUpload("one.pdf"))
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateStatus(ctx, first.Document.ID, models.StatusProcessing))

	_, err = f.svc.Upload(ctx, pdfUpload("two.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, f.queue.enqueued, 1)
}

func TestUpload_EnqueueFailureMarksFailed(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	f.queue.err = errors.New("redis down")
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, pdfUpload("doc.pdf"))
	require.Error(t, err)

	docs, err := f.store.ListLatest(ctx, 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, models.StatusFailed, docs[0].Status)
}

func TestList_DefaultsToFive(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := f.svc.Upload(ctx, UploadRequest{URL: "https://youtu.be/abc12345678"})
		require.NoError(t, err)
	}

	views, err := f.svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, views, 5)

	views, err = f.svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, views, 7)
}

func TestAskAndMessages(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, "missing", "why?")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.svc.Messages(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	res, err := f.svc.Upload(ctx, pdfUpload("doc.pdf"))
	require.NoError(t, err)
	answer, err := f.svc.Ask(ctx, res.Document.ID, "why?")
	require.NoError(t, err)
	assert.Equal(t, "answer to why?", answer)

	msgs, err := f.svc.Messages(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChunksAndCalls(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()

	_, err := f.svc.Chunks(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	res, err := f.svc.Upload(ctx, pdfUpload("doc.pdf"))
	require.NoError(t, err)
	_, err = f.store.ReplaceChunks(ctx, res.Document.ID, []string{"first part", "second part"})
	require.NoError(t, err)

	chunks, err := f.svc.Chunks(ctx, res.Document.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, "second part", chunks[1].Text)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.RecordCall(ctx, &models.CallLog{
			Model:        "gpt-4o-mini",
			Messages:     []byte(`[]`),
			Result:       []byte(`{"status":"success"}`),
			IsSuccessful: true,
			CreatedAt:    time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC),
		}))
	}
	calls, err := f.svc.Calls(ctx, 2)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.True(t, calls[0].CreatedAt.After(calls[1].CreatedAt))

	calls, err = f.svc.Calls(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, calls, 3)
}

func TestAsk_PropagatesIndexNotFound(t *testing.T) {
	f := newFixture(t, fakeAnswerer{err: apperrors.NewIndexNotFoundError("x")})
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, pdfUpload("doc.pdf"))
	require.NoError(t, err)

	_, err = f.svc.Ask(ctx, res.Document.ID, "anything?")
	assert.ErrorIs(t, err, apperrors.ErrIndexNotFound)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()

	s, err := f.svc.GetSettings(ctx)
	require.NoError(t, err)
	s.Model = "gpt-4o"
	s.Temperature = 0.3

	got, err := f.svc.UpdateSettings(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)

	s.Temperature = 2
	_, err = f.svc.UpdateSettings(ctx, s)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestTasks(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()
	f.queue.statuses["t1"] = &queue.TaskStatus{TaskID: "t1", Status: queue.StatusRunning}

	st, err := f.svc.GetTaskStatus(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusRunning, st.Status)
	assert.NoError(t, f.svc.CancelTask(ctx, "t1"))

	_, err = f.svc.GetTaskStatus(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCleanupAndHandle(t *testing.T) {
	f := newFixture(t, fakeAnswerer{})
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Cleanup(ctx, 0), apperrors.ErrValidation)
	assert.NoError(t, f.svc.Cleanup(ctx, time.Hour))

	require.NoError(t, f.svc.HandleDocument(ctx, "doc-1"))
	assert.Equal(t, []string{"doc-1"}, f.proc.ids)
}

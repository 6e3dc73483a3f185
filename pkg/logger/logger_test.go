package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	log, err := NewLogger(WithOutputPaths([]string{path}), WithLevel("debug"))
	require.NoError(t, err)

	log.Named("pipeline").Info("stage finished", DocumentID("doc-1"), Stage("chunk"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"document_id":"doc-1"`)
	assert.Contains(t, string(data), `"logger":"pipeline"`)
}

func TestNewLogger_RejectsBadLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"))
	assert.Error(t, err)
}

func TestFromConfig_FillsDefaults(t *testing.T) {
	log, err := FromConfig(Config{Encoding: "console"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestContextLogger_AddsIDs(t *testing.T) {
	tl := NewTestLogger()
	cl := NewContextLogger(tl)

	ctx := WithDocumentID(WithTaskID(context.Background(), "task-9"), "doc-3")
	cl.FromContext(ctx).Info("processing")

	entries := tl.GetEntries()
	require.Len(t, entries, 1)
	keys := map[string]string{}
	for _, f := range entries[0].Fields {
		keys[f.Key] = f.String
	}
	assert.Equal(t, "task-9", keys["task_id"])
	assert.Equal(t, "doc-3", keys["document_id"])
}

func TestTestLogger_ChildrenShareBuffer(t *testing.T) {
	tl := NewTestLogger()
	tl.Named("worker").With(String("k", "v")).Warn("slow")
	tl.Error("broken")

	assert.Equal(t, []string{"slow"}, tl.Messages("WARN"))
	assert.Equal(t, []string{"broken"}, tl.Messages("ERROR"))
	assert.Equal(t, "worker", tl.GetEntries()[0].Logger)

	tl.Clear()
	assert.Empty(t, tl.GetEntries())
}

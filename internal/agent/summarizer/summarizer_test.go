package summarizer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-summarizer/internal/agent/llm"
	"github.com/feichai0017/document-summarizer/internal/agent/llm/llmtest"
	"github.com/feichai0017/document-summarizer/internal/models"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

func testSettings() models.ModelSettings {
	s := models.DefaultSettings()
	s.MapPrompt = "MAP:%s"
	s.CombinePrompt = "REDUCE:%s"
	s.TitlePrompt = "TITLE:%s"
	return s
}

func TestSummarize_NoChunks(t *testing.T) {
	s := New(&llmtest.Chat{}, logger.NewNop())
	_, err := s.Summarize(context.Background(), nil, testSettings())
	assert.ErrorIs(t, err, apperrors.ErrSummarization)
}

func TestSummarize_ReduceConsumesMapOutputsInOrder(t *testing.T) {
	chat := &llmtest.Chat{Reply: func(req llm.Request) (string, error) {
		prompt := llmtest.LastUserMessage(req)
		switch {
		case strings.HasPrefix(prompt, "MAP:"):
			// later chunks answer first
			if prompt == "MAP:c0" {
				time.Sleep(20 * time.Millisecond)
			}
			return " part(" + strings.TrimPrefix(prompt, "MAP:") + ") ", nil
		case strings.HasPrefix(prompt, "REDUCE:"):
			return "final[" + strings.TrimPrefix(prompt, "REDUCE:") + "]", nil
		}
		return "", errors.New("unexpected prompt")
	}}
	s := New(chat, logger.NewNop(), WithConcurrency(3))

	out, err := s.Summarize(context.Background(), []string{"c0", "c1", "c2"}, testSettings())
	require.NoError(t, err)
	assert.Equal(t, "final[part(c0)\n\npart(c1)\n\npart(c2)]", out)

	reqs := chat.Requests()
	require.Len(t, reqs, 4)
	assert.True(t, strings.HasPrefix(llmtest.LastUserMessage(reqs[3]), "REDUCE:"))
	for _, r := range reqs {
		assert.Equal(t, "gpt-4o-mini", r.Model)
	}
}

func TestSummarize_MapFailureAborts(t *testing.T) {
	var reduced atomic.Bool
	chat := &llmtest.Chat{Reply: func(req llm.Request) (string, error) {
		prompt := llmtest.LastUserMessage(req)
		if prompt == "MAP:bad" {
			return "", errors.New("upstream 500")
		}
		if strings.HasPrefix(prompt, "REDUCE:") {
			reduced.Store(true)
		}
		return "ok", nil
	}}
	s := New(chat, logger.NewNop())

	_, err := s.Summarize(context.Background(), []string{"a", "bad", "c"}, testSettings())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSummarization)
	assert.Contains(t, err.Error(), "upstream 500")
	assert.False(t, reduced.Load())
}

func TestSummarize_ReduceFailure(t *testing.T) {
	chat := &llmtest.Chat{Reply: func(req llm.Request) (string, error) {
		if strings.HasPrefix(llmtest.LastUserMessage(req), "REDUCE:") {
			return "", errors.New("timeout")
		}
		return "ok", nil
	}}
	_, err := New(chat, logger.NewNop()).Summarize(context.Background(), []string{"a"}, testSettings())
	assert.ErrorIs(t, err, apperrors.ErrSummarization)
}

func TestSummarize_SystemPromptAndBoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	chat := &llmtest.Chat{Reply: func(req llm.Request) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return "x", nil
	}}
	settings := testSettings()
	settings.SummaryPrompt = "You summarize lecture notes."

	chunks := make([]string, 10)
	for i := range chunks {
		chunks[i] = "chunk"
	}
	_, err := New(chat, logger.NewNop(), WithConcurrency(2)).Summarize(context.Background(), chunks, settings)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	req := chat.Requests()[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
}

func TestGenerateTitle(t *testing.T) {
	chat := &llmtest.Chat{Reply: func(req llm.Request) (string, error) {
		assert.Equal(t, "TITLE:the summary", llmtest.LastUserMessage(req))
		return "\"How Goroutines Work\"\nextra commentary", nil
	}}
	title, err := New(chat, logger.NewNop()).GenerateTitle(context.Background(), "the summary", testSettings())
	require.NoError(t, err)
	assert.Equal(t, "How Goroutines Work", title)

	long := &llmtest.Chat{Reply: func(llm.Request) (string, error) {
		return strings.Repeat("я", 80), nil
	}}
	title, err = New(long, logger.NewNop()).GenerateTitle(context.Background(), "s", testSettings())
	require.NoError(t, err)
	assert.Equal(t, MaxTitleLength, len([]rune(title)))

	failing := &llmtest.Chat{Reply: func(llm.Request) (string, error) { return "", errors.New("down") }}
	_, err = New(failing, logger.NewNop()).GenerateTitle(context.Background(), "s", testSettings())
	assert.ErrorIs(t, err, apperrors.ErrSummarization)
}

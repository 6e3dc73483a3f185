// Package summarizer turns ordered chunks into one summary with a map stage
// over every chunk followed by a single reduce call.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-summarizer/internal/agent/llm"
	"github.com/feichai0017/document-summarizer/internal/models"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

const (
	DefaultConcurrency = 4
	MaxTitleLength     = 60
)

type Summarizer struct {
	chat        llm.ChatModel
	concurrency int
	logger      logger.Logger
}

type Option func(*Summarizer)

// WithConcurrency bounds the number of map calls in flight.
func WithConcurrency(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(chat llm.ChatModel, log logger.Logger, opts ...Option) *Summarizer {
	s := &Summarizer{
		chat:        chat,
		concurrency: DefaultConcurrency,
		logger:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize runs the map stage concurrently and reduces the partial summaries
// in chunk order. Any failed call aborts the whole operation.
func (s *Summarizer) Summarize(ctx context.Context, chunks []string, settings models.ModelSettings) (string, error) {
	if len(chunks) == 0 {
		return "", apperrors.NewSummarizationError("summarize", "no chunks to summarize", nil)
	}

	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := s.complete(gctx, settings, models.RenderPrompt(settings.MapPrompt, chunk))
			if err != nil {
				return apperrors.NewSummarizationError("summarize.map", fmt.Sprintf("chunk %d", i), err)
			}
			partials[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	s.logger.Debug("Map stage finished", logger.Int("chunks", len(chunks)))

	summary, err := s.complete(ctx, settings, models.RenderPrompt(settings.CombinePrompt, strings.Join(partials, "\n\n")))
	if err != nil {
		return "", apperrors.NewSummarizationError("summarize.reduce", "combine partial summaries", err)
	}
	if summary == "" {
		return "", apperrors.NewSummarizationError("summarize.reduce", "model returned an empty summary", nil)
	}
	return summary, nil
}

// GenerateTitle asks for a short title and cuts it to MaxTitleLength runes.
func (s *Summarizer) GenerateTitle(ctx context.Context, summary string, settings models.ModelSettings) (string, error) {
	out, err := s.complete(ctx, settings, models.RenderPrompt(settings.TitlePrompt, summary))
	if err != nil {
		return "", apperrors.NewSummarizationError("summarize.title", "generate title", err)
	}
	return cleanTitle(out), nil
}

func (s *Summarizer) complete(ctx context.Context, settings models.ModelSettings, prompt string) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if settings.SummaryPrompt != "" {
		messages = append(messages, llm.System(settings.SummaryPrompt))
	}
	messages = append(messages, llm.User(prompt))

	out, err := s.chat.Chat(ctx, llm.Request{
		Model:       settings.Model,
		Temperature: settings.Temperature,
		MaxRetries:  settings.MaxRetries,
		Messages:    messages,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "Title:")
	s = strings.Trim(strings.TrimSpace(s), `"'«»`)
	if utf8.RuneCountInString(s) > MaxTitleLength {
		s = strings.TrimSpace(string([]rune(s)[:MaxTitleLength]))
	}
	return s
}

// Package rag answers questions about a processed document from its index
// and conversation history.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/feichai0017/document-summarizer/internal/agent/llm"
	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/internal/repository"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

const DefaultTopK = 4

// Searcher returns the chunk texts closest to query, best first.
type Searcher interface {
	Search(ctx context.Context, documentID, query string, k int) ([]string, error)
}

type Engine struct {
	searcher    Searcher
	messages    repository.MessageRepository
	settings    repository.SettingsRepository
	chat        llm.ChatModel
	topK        int
	temperature float64
	logger      logger.Logger
}

type Option func(*Engine)

func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithTemperature overrides the sampling temperature for answers; the model
// itself still comes from the settings record.
func WithTemperature(t float64) Option {
	return func(e *Engine) {
		e.temperature = t
	}
}

func NewEngine(searcher Searcher, messages repository.MessageRepository, settings repository.SettingsRepository, chat llm.ChatModel, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		searcher: searcher,
		messages: messages,
		settings: settings,
		chat:     chat,
		topK:     DefaultTopK,
		logger:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer retrieves context for question, asks the model with the whole
// conversation so far and stores the question and the answer as two new
// turns. A document without an index fails with IndexNotFoundError before
// any model call.
func (e *Engine) Answer(ctx context.Context, documentID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperrors.NewValidationError("question", "question must not be empty")
	}
	log := e.logger.With(logger.DocumentID(documentID))

	excerpts, err := e.searcher.Search(ctx, documentID, question, e.topK)
	if err != nil {
		return "", err
	}

	history, err := e.messages.ListMessages(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation: %w", err)
	}

	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		return "", err
	}

	req := llm.Request{
		Model:       settings.Model,
		Temperature: e.temperature,
		MaxRetries:  settings.MaxRetries,
		Messages:    BuildMessages(settings.QASystemPrompt, excerpts, history, question),
	}
	answer, err := e.chat.Chat(ctx, req)
	if err != nil {
		return "", apperrors.NewSummarizationError("rag.answer", "answer question", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", apperrors.NewSummarizationError("rag.answer", "answer question", llm.ErrEmptyResponse)
	}

	if _, err := e.messages.AppendTurn(ctx, documentID, question, answer); err != nil {
		return "", fmt.Errorf("failed to save conversation turn: %w", err)
	}
	log.Info("Answered question",
		logger.Int("excerpts", len(excerpts)),
		logger.Int("history", len(history)),
	)
	return answer, nil
}

// BuildMessages lays out one Q&A call: the system prompt with the retrieved
// excerpts, every earlier turn in order, then the new question.
func BuildMessages(systemPrompt string, excerpts []string, history []models.Message, question string) []llm.Message {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(excerpts, "\n\n"))

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.System(sb.String()))
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			messages = append(messages, llm.User(m.Content))
		case models.RoleAssistant:
			messages = append(messages, llm.Assistant(m.Content))
		}
	}
	return append(messages, llm.User(question))
}

// Package llm holds the chat and embedding providers used by the summarizer,
// the indexer and the Q&A engine.
package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Request is one chat call. MaxRetries is carried for the call log only.
type Request struct {
	Model       string
	Temperature float64
	MaxRetries  int
	Messages    []Message
}

// ChatModel produces a single completion for a conversation.
type ChatModel interface {
	Chat(ctx context.Context, req Request) (string, error)
}

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is a backend that can both chat and embed.
type Provider interface {
	ChatModel
	Embedder
	Close() error
}

var ErrEmptyResponse = errors.New("llm: empty response")

type retryKey struct{}

// WithRetryCount marks ctx with the task attempt number so call logs can
// flag retried calls.
func WithRetryCount(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, retryKey{}, n)
}

func retryCount(ctx context.Context) int {
	n, _ := ctx.Value(retryKey{}).(int)
	return n
}

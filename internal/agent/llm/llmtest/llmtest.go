// Package llmtest provides in-memory chat and embedding models for tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/feichai0017/document-summarizer/internal/agent/llm"
)

// Chat answers with Reply and records every request.
type Chat struct {
	Reply func(req llm.Request) (string, error)

	mu       sync.Mutex
	requests []llm.Request
}

func (c *Chat) Chat(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Reply == nil {
		return "ok", nil
	}
	return c.Reply(req)
}

func (c *Chat) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// LastUserMessage returns the content of the final message of req.
func LastUserMessage(req llm.Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

// Embedder hashes words into a fixed number of buckets, so texts sharing
// words end up close under cosine similarity.
type Embedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls int
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	dim := e.Dim
	if dim == 0 {
		dim = 64
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, dim)
	}
	return out, nil
}

func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func Vector(text string, dim int) []float32 {
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Provider joins Chat and Embedder.
type Provider struct {
	*Chat
	*Embedder
}

func NewProvider() *Provider {
	return &Provider{Chat: &Chat{}, Embedder: &Embedder{}}
}

func (p *Provider) Close() error { return nil }

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var _ Provider = (*GeminiClient)(nil)

const DefaultGeminiEmbeddingModel = "text-embedding-004"

type GeminiConfig struct {
	APIKey         string
	EmbeddingModel string
}

type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultGeminiEmbeddingModel
	}
	return &GeminiClient{client: cl, embeddingModel: cfg.EmbeddingModel}, nil
}

// Chat maps system messages onto the system instruction and replays the
// remaining turns as chat history. The last message must be a user turn.
func (g *GeminiClient) Chat(ctx context.Context, req Request) (string, error) {
	m := g.client.GenerativeModel(req.Model)
	m.SetTemperature(float32(req.Temperature))

	system, history, last, err := splitForGemini(req.Messages)
	if err != nil {
		return "", err
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func splitForGemini(msgs []Message) (system string, history []*genai.Content, last string, err error) {
	var sys []string
	var turns []Message
	for _, m := range msgs {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", nil, "", fmt.Errorf("gemini: conversation must end with a user message")
	}
	for _, t := range turns[:len(turns)-1] {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}
	return strings.Join(sys, "\n\n"), history, turns[len(turns)-1].Content, nil
}

// Embed batches all texts in one request.
func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := g.client.EmbeddingModel(g.embeddingModel)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

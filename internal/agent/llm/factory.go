package llm

import (
	"context"
	"fmt"

	"github.com/feichai0017/document-summarizer/config"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
)

type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
)

// NewProvider builds the configured backend wrapped in the rate limiter.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch ProviderType(cfg.Provider) {
	case ProviderOpenAI, "":
		p, err = NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.Timeout,
		})
	case ProviderGemini:
		p, err = NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.APIKey,
			EmbeddingModel: cfg.EmbeddingModel,
		})
	case ProviderOllama:
		p = NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.Timeout,
		})
	default:
		return nil, apperrors.NewConfigurationError("llm.provider", fmt.Sprintf("unsupported provider %q", cfg.Provider))
	}
	if err != nil {
		return nil, apperrors.NewConfigurationError("llm.provider", err.Error())
	}
	return NewRateLimited(p, cfg.RequestsPerSecond, cfg.Burst), nil
}

package ai

import (
	"context"
	"errors"
	"fmt"

	"digital-twin-search/internal/config"
)

// ErrProviderNotConfigured is returned by NewProvider when the selected
// provider has no credentials. Callers treat it as "embeddings unavailable".
var ErrProviderNotConfigured = errors.New("embeddings provider not configured")

// EmbeddingProvider turns text into a vector. dimensions is the requested
// output size; providers whose models cannot honour it ignore the argument.
type EmbeddingProvider interface {
	Name() string
	Embed(ctx context.Context, text string, dimensions int) ([]float32, error)
	Close() error
}

// NewProvider builds the provider selected by EMBEDDINGS_PROVIDER. The client
// handle is created once here and reused for every call.
func NewProvider(ctx context.Context, cfg *config.Config) (EmbeddingProvider, error) {
	if cfg.EmbeddingsProvider == config.ProviderNone || !cfg.EmbeddingsConfigured() {
		return nil, ErrProviderNotConfigured
	}

	switch cfg.EmbeddingsProvider {
	case config.ProviderAzureOpenAI:
		return NewAzureOpenAIEmbedder(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIAPIVersion,
			cfg.AzureOpenAIKey, cfg.AzureOpenAIEmbeddingDeploy), nil
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIEmbeddingsModel), nil
	case config.ProviderGoogle:
		g, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

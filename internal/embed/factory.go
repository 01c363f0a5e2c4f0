package embed

import (
	"fmt"

	"github.com/sfarag/slackfaq/internal/config"
	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

// Provider identifies an embedding backend.
type Provider string

// Supported providers.
const (
	ProviderStatic Provider = "static"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderStatic, ProviderOpenAI, ProviderOllama:
		return Provider(s), nil
	default:
		return "", sferrors.ValidationError(
			fmt.Sprintf("unknown embedding provider %q (want static, openai, or ollama)", s), nil)
	}
}

// NewFromConfig builds the configured embedder, wrapped with LRU caching.
func NewFromConfig(cfg *config.Config, dims int) (Embedder, error) {
	provider, err := ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}

	var inner Embedder
	switch provider {
	case ProviderStatic:
		inner = NewStaticEmbedder(dims)
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.Embeddings.BaseURL,
			Model:      cfg.Embeddings.Model,
			Dimensions: dims,
		})
		if err != nil {
			return nil, err
		}
	case ProviderOllama:
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.Embeddings.BaseURL,
			Model:      cfg.Embeddings.Model,
			Dimensions: dims,
		})
	}

	return NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
}

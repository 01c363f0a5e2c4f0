package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

// OpenAIEmbedder generates embeddings via an OpenAI-compatible API.
// Works against api.openai.com or any compatible gateway via BaseURL.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

// OpenAIConfig holds the embedding provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions requests server-side dimensionality reduction when the
	// model supports it (text-embedding-3-*). Zero leaves the model default.
	Dimensions int
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedding provider.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, sferrors.ValidationError("openai embedder requires an API key", nil)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, sferrors.ValidationError(
			fmt.Sprintf("batch size %d exceeds maximum %d", len(texts), MaxBatchSize), nil)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, sferrors.EmbeddingError(
				fmt.Sprintf("cannot embed empty text at index %d", i), nil)
		}
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dims > 0 {
		req.Dimensions = e.dims
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, sferrors.EmbeddingError(
			fmt.Sprintf("embedding response has %d vectors, want %d", len(resp.Data), len(texts)), nil)
	}

	// Response order follows the Index field, not slice order.
	results := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(results) {
			return nil, sferrors.EmbeddingError(
				fmt.Sprintf("embedding response index %d out of range", d.Index), nil)
		}
		results[d.Index] = d.Embedding
	}

	return results, nil
}

// parseAPIError maps go-openai transport errors onto the coded taxonomy.
// HTTP 429 and 5xx are retryable network failures; everything else is a
// terminal embedding error.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := fmt.Sprintf("embedding API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
		if isRetryableStatus(reqErr.HTTPStatusCode) {
			return sferrors.NetworkError(msg, err)
		}
		return sferrors.EmbeddingError(msg, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		if isRetryableStatus(apiErr.HTTPStatusCode) {
			return sferrors.NetworkError(msg, err)
		}
		return sferrors.EmbeddingError(msg, err)
	}

	return sferrors.NetworkError("embedding request failed", err)
}

func isRetryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available verifies API reachability via ListModels (free endpoint).
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx)
	return err == nil
}

// Close releases resources (no-op; the client holds no connections).
func (e *OpenAIEmbedder) Close() error {
	return nil
}

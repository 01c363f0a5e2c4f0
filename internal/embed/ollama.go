package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

// DefaultOllamaHost is the default ollama server address.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaEmbedder generates embeddings via a local ollama server.
type OllamaEmbedder struct {
	host   string
	model  string
	dims   int
	client *http.Client
}

// OllamaConfig holds ollama provider settings.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// embedRequest is the /api/embed request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /api/embed response body.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an embedder backed by an ollama server.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaEmbedder{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Embed generates embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, sferrors.EmbeddingError(
				fmt.Sprintf("cannot embed empty text at index %d", i), nil)
		}
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, sferrors.InternalError("marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, sferrors.InternalError("build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, sferrors.NetworkError("ollama embed request failed", err).
			WithSuggestion("check that ollama is running (ollama serve)")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("ollama embed returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if isRetryableStatus(resp.StatusCode) {
			return nil, sferrors.NetworkError(msg, nil)
		}
		return nil, sferrors.EmbeddingError(msg, nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, sferrors.EmbeddingError("decode embed response", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, sferrors.EmbeddingError(
			fmt.Sprintf("ollama returned %d vectors, want %d", len(parsed.Embeddings), len(texts)), nil)
	}

	for i, vec := range parsed.Embeddings {
		if len(vec) != e.dims {
			return nil, sferrors.DimensionMismatch(e.dims, len(vec))
		}
		parsed.Embeddings[i] = normalizeVector(vec)
	}

	return parsed.Embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Available checks server reachability via /api/tags.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases resources.
func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

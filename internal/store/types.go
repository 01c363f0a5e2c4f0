// Package store provides the persistence layer for FAQ collections:
// vector storage (HNSW), BM25 keyword index (Bleve), and document
// payloads plus collection metadata (SQLite).
package store

import (
	"context"
	"strings"
	"time"
)

// Mode names persisted in the collection registry.
const (
	ModeNameDense  = "dense"
	ModeNameSparse = "sparse"
	ModeNameHybrid = "hybrid"
)

// State keys for the metadata store.
const (
	// StateKeySparseVocabulary stores the BM25 corpus statistics as JSON.
	StateKeySparseVocabulary = "sparse_vocabulary"

	// StateKeyIndexDimension stores the embedding dimension used for the index.
	StateKeyIndexDimension = "index_embedding_dimension"

	// StateKeyIndexModel stores the embedding model name used for the index.
	StateKeyIndexModel = "index_embedding_model"
)

// Document is one question/answer pair extracted from a Slack thread.
type Document struct {
	ID         string // Deterministic UUID derived from channel, thread, question
	Channel    string
	ThreadTS   string
	AskedBy    string
	AnsweredBy string
	Question   string
	Answer     string

	// Dense is the embedding vector. Nil for sparse-only collections.
	Dense []float32

	// Sparse maps terms to BM25 weights. Nil for dense-only collections.
	Sparse map[string]float32

	CreatedAt time.Time
}

// Text returns the searchable representation: question and answer joined.
func (d *Document) Text() string {
	return strings.TrimSpace(d.Question) + "\n" + strings.TrimSpace(d.Answer)
}

// HitSource identifies which sub-search produced a hit.
type HitSource string

const (
	SourceDense  HitSource = "dense"
	SourceSparse HitSource = "sparse"
	SourceFused  HitSource = "fused"
)

// RankedHit is a scored search result. Rank ordering is by descending
// Score; the meaning of Score depends on Source (cosine similarity,
// BM25 score, or RRF score).
type RankedHit struct {
	DocID  string
	Score  float64
	Source HitSource
}

// BM25Result represents a single keyword search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// BM25Index provides keyword search using BM25 scoring.
type BM25Index interface {
	// Index adds documents to the index. Existing IDs are replaced.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, docIDs []string) error

	// Count returns the number of indexed documents.
	Count() (int, error)

	Close() error
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides approximate nearest neighbor search.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// CollectionInfo describes a registered collection.
type CollectionInfo struct {
	Name       string
	Mode       string
	Model      string
	Dimensions int
	CreatedAt  time.Time
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sfarag/slackfaq/internal/embed"
	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

// On-disk layout under <dataDir>/collections/<name>/.
const (
	bm25DirName     = "bm25.bleve"
	vectorsFileName = "vectors.hnsw"
)

// Collection ties together the three persistence backends for one
// named collection: HNSW vectors, Bleve BM25 index, and SQLite payloads.
// The backends present depend on the collection mode: dense collections
// carry no BM25 index, sparse collections no vector store, hybrid both.
type Collection struct {
	info    CollectionInfo
	meta    *MetadataStore
	vectors VectorStore        // nil for sparse mode
	bm25    BM25Index          // nil for dense mode
	encoder *embed.SparseEncoder // nil for dense mode

	vectorPath string
}

// collectionDir returns the directory holding a collection's index files.
func collectionDir(dataDir, name string) string {
	return filepath.Join(dataDir, "collections", name)
}

// CreateCollection registers a new collection and initializes its
// index files. Fails if the name is already registered.
func CreateCollection(ctx context.Context, meta *MetadataStore, dataDir string, info CollectionInfo) (*Collection, error) {
	switch info.Mode {
	case ModeNameDense, ModeNameSparse, ModeNameHybrid:
	default:
		return nil, sferrors.UnsupportedMode(info.Mode)
	}
	if info.Mode != ModeNameSparse && info.Dimensions <= 0 {
		return nil, sferrors.ValidationError(
			fmt.Sprintf("%s collection requires positive dimensions (got %d)", info.Mode, info.Dimensions), nil)
	}

	if err := meta.RegisterCollection(ctx, info); err != nil {
		return nil, err
	}

	dir := collectionDir(dataDir, info.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create collection dir: %w", err)
	}

	return assembleCollection(ctx, meta, dataDir, info)
}

// OpenCollection opens an existing collection.
// Returns a collection-not-found error for unregistered names.
func OpenCollection(ctx context.Context, meta *MetadataStore, dataDir, name string) (*Collection, error) {
	info, err := meta.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	return assembleCollection(ctx, meta, dataDir, *info)
}

// assembleCollection opens the mode-appropriate backends.
func assembleCollection(ctx context.Context, meta *MetadataStore, dataDir string, info CollectionInfo) (*Collection, error) {
	dir := collectionDir(dataDir, info.Name)

	c := &Collection{
		info:       info,
		meta:       meta,
		vectorPath: filepath.Join(dir, vectorsFileName),
	}

	if info.Mode != ModeNameSparse {
		vs, err := NewHNSWStore(DefaultVectorStoreConfig(info.Dimensions))
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(c.vectorPath); statErr == nil {
			// A dimensionality change between runs would otherwise only
			// surface as garbage nearest-neighbor results.
			dims, err := ReadHNSWStoreDimensions(c.vectorPath)
			if err != nil {
				return nil, fmt.Errorf("read vector index metadata: %w", err)
			}
			if dims > 0 && dims != info.Dimensions {
				return nil, sferrors.DimensionMismatch(info.Dimensions, dims).
					WithDetail("collection", info.Name).
					WithSuggestion("re-ingest the collection with the configured embedding dimensions")
			}
			if err := vs.Load(c.vectorPath); err != nil {
				return nil, fmt.Errorf("load vector index: %w", err)
			}
		}
		c.vectors = vs
	}

	if info.Mode != ModeNameDense {
		bm25, err := NewBleveBM25Index(filepath.Join(dir, bm25DirName))
		if err != nil {
			return nil, err
		}
		c.bm25 = bm25

		vocab, err := loadVocabulary(ctx, meta, info.Name)
		if err != nil {
			return nil, err
		}
		c.encoder = embed.NewSparseEncoder(vocab)
	}

	return c, nil
}

// loadVocabulary restores the sparse encoder statistics from state.
func loadVocabulary(ctx context.Context, meta *MetadataStore, collection string) (*embed.Vocabulary, error) {
	raw, err := meta.GetState(ctx, collection, StateKeySparseVocabulary)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return embed.NewVocabulary(), nil
	}

	var vocab embed.Vocabulary
	if err := json.Unmarshal([]byte(raw), &vocab); err != nil {
		return nil, fmt.Errorf("decode sparse vocabulary: %w", err)
	}
	return &vocab, nil
}

// Info returns the collection metadata.
func (c *Collection) Info() CollectionInfo {
	return c.info
}

// SparseEncoder returns the BM25 term-weight encoder, nil for dense mode.
func (c *Collection) SparseEncoder() *embed.SparseEncoder {
	return c.encoder
}

// Upsert writes documents to every backend the mode requires.
// Re-upserting an existing ID replaces it everywhere; the operation is
// idempotent for identical payloads.
func (c *Collection) Upsert(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	if c.vectors != nil {
		ids := make([]string, 0, len(docs))
		vecs := make([][]float32, 0, len(docs))
		for _, doc := range docs {
			if len(doc.Dense) != c.info.Dimensions {
				return sferrors.DimensionMismatch(c.info.Dimensions, len(doc.Dense))
			}
			ids = append(ids, doc.ID)
			vecs = append(vecs, doc.Dense)
		}
		if err := c.vectors.Add(ctx, ids, vecs); err != nil {
			return err
		}
	}

	if c.bm25 != nil {
		if err := c.bm25.Index(ctx, docs); err != nil {
			return err
		}
	}

	return c.meta.SaveDocuments(ctx, c.info.Name, docs)
}

// Contains reports whether a document ID is already stored.
func (c *Collection) Contains(ctx context.Context, id string) (bool, error) {
	return c.meta.HasDocument(ctx, c.info.Name, id)
}

// SearchDense runs nearest-neighbor search over the vector index.
func (c *Collection) SearchDense(ctx context.Context, query []float32, k int) ([]RankedHit, error) {
	if c.vectors == nil {
		return nil, sferrors.UnsupportedMode(ModeNameDense).
			WithDetail("collection", c.info.Name).
			WithSuggestion("this collection was created in sparse mode")
	}
	if len(query) != c.info.Dimensions {
		return nil, sferrors.DimensionMismatch(c.info.Dimensions, len(query))
	}

	results, err := c.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	hits := make([]RankedHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, RankedHit{
			DocID:  r.ID,
			Score:  float64(r.Score),
			Source: SourceDense,
		})
	}
	sortHits(hits)
	return hits, nil
}

// SearchSparse runs BM25 keyword search.
func (c *Collection) SearchSparse(ctx context.Context, query string, k int) ([]RankedHit, error) {
	if c.bm25 == nil {
		return nil, sferrors.UnsupportedMode(ModeNameSparse).
			WithDetail("collection", c.info.Name).
			WithSuggestion("this collection was created in dense mode")
	}

	// Queries go through the same tokenize/stop-word path as indexed
	// documents. A query of nothing but stop words has no searchable
	// terms and matches nothing.
	terms := c.encoder.EncodeQuery(query)
	if len(terms) == 0 {
		return []RankedHit{}, nil
	}

	results, err := c.bm25.Search(ctx, strings.Join(terms, " "), k)
	if err != nil {
		return nil, err
	}

	hits := make([]RankedHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, RankedHit{
			DocID:  r.DocID,
			Score:  r.Score,
			Source: SourceSparse,
		})
	}
	sortHits(hits)
	return hits, nil
}

// sortHits orders by descending score. The sort is stable so
// equal-score hits keep the backend's order.
func sortHits(hits []RankedHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// Delete removes documents from every backend the mode requires.
// Unknown IDs are ignored. Documents persist until deleted this way;
// nothing expires on its own.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if c.vectors != nil {
		if err := c.vectors.Delete(ctx, ids); err != nil {
			return err
		}
	}
	if c.bm25 != nil {
		if err := c.bm25.Delete(ctx, ids); err != nil {
			return err
		}
	}
	return c.meta.DeleteDocuments(ctx, c.info.Name, ids)
}

// Get fetches document payloads by ID, preserving input order.
func (c *Collection) Get(ctx context.Context, ids []string) ([]*Document, error) {
	return c.meta.GetDocuments(ctx, c.info.Name, ids)
}

// Count returns the number of stored documents.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.meta.CountDocuments(ctx, c.info.Name)
}

// Flush persists in-memory backend state: the HNSW graph and the sparse
// vocabulary. Bleve and SQLite persist incrementally on their own.
func (c *Collection) Flush(ctx context.Context) error {
	if c.vectors != nil {
		if err := c.vectors.Save(c.vectorPath); err != nil {
			return fmt.Errorf("save vector index: %w", err)
		}
	}

	if c.encoder != nil {
		data, err := json.Marshal(c.encoder.Vocabulary())
		if err != nil {
			return fmt.Errorf("encode sparse vocabulary: %w", err)
		}
		if err := c.meta.SetState(ctx, c.info.Name, StateKeySparseVocabulary, string(data)); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the collection's backends. The shared metadata store is
// left open for the owner to close.
func (c *Collection) Close() error {
	var firstErr error
	if c.vectors != nil {
		if err := c.vectors.Close(); err != nil {
			firstErr = err
		}
	}
	if c.bm25 != nil {
		if err := c.bm25.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

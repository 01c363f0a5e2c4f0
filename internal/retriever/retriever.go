package retriever

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sfarag/slackfaq/internal/embed"
	sferrors "github.com/sfarag/slackfaq/internal/errors"
	"github.com/sfarag/slackfaq/internal/store"
)

// minCandidates is the floor for sub-search candidate fetches. Fetching
// more than k from each sub-search gives the fusion enough overlap to
// reorder meaningfully.
const minCandidates = 20

// Result is a retrieval hit joined with its document payload.
type Result struct {
	Document *store.Document
	Score    float64
	Source   store.HitSource
}

// Retriever answers queries against one collection.
type Retriever struct {
	collection  *store.Collection
	embedder    embed.Embedder
	rrfConstant int
	logger      *slog.Logger
}

// Options configures a Retriever.
type Options struct {
	// RRFConstant overrides the fusion smoothing constant.
	RRFConstant int

	// Logger receives per-query timing records. Nil uses slog.Default.
	Logger *slog.Logger
}

// New creates a retriever over an open collection.
// The embedder may be nil for sparse-only collections.
func New(collection *store.Collection, embedder embed.Embedder, opts Options) *Retriever {
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = DefaultRRFConstant
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Retriever{
		collection:  collection,
		embedder:    embedder,
		rrfConstant: opts.RRFConstant,
		logger:      opts.Logger,
	}
}

// Filter narrows retrieval to a subset of the corpus.
type Filter struct {
	// Channel restricts hits to documents from one Slack channel.
	// Empty matches every channel.
	Channel string
}

// Retrieve runs a query in the given mode and returns the top k
// documents. Hybrid mode runs both sub-searches concurrently; a failure
// in either fails the whole retrieval rather than silently degrading
// to one-sided results.
func (r *Retriever) Retrieve(ctx context.Context, query string, mode Mode, k int) ([]Result, error) {
	return r.RetrieveFiltered(ctx, query, mode, k, Filter{})
}

// RetrieveFiltered is Retrieve with a corpus filter applied after the
// sub-searches. Filtered retrievals over-fetch candidates so the top k
// survives the filter.
func (r *Retriever) RetrieveFiltered(ctx context.Context, query string, mode Mode, k int, filter Filter) ([]Result, error) {
	if k <= 0 {
		return nil, sferrors.ValidationError("result limit must be positive", nil)
	}

	start := time.Now()

	fetch := k
	if filter.Channel != "" {
		fetch = 2 * k
		if fetch < minCandidates {
			fetch = minCandidates
		}
	}

	var hits []store.RankedHit
	var err error

	switch mode {
	case ModeDense:
		hits, err = r.searchDense(ctx, query, fetch)
	case ModeSparse:
		hits, err = r.collection.SearchSparse(ctx, query, fetch)
	case ModeHybrid:
		hits, err = r.searchHybrid(ctx, query, fetch)
	default:
		return nil, sferrors.UnsupportedMode(mode.String())
	}
	if err != nil {
		return nil, err
	}

	results, err := r.attachDocuments(ctx, hits)
	if err != nil {
		return nil, err
	}

	if filter.Channel != "" {
		kept := make([]Result, 0, len(results))
		for _, res := range results {
			if res.Document.Channel == filter.Channel {
				kept = append(kept, res)
			}
		}
		results = kept
	}
	if len(results) > k {
		results = results[:k]
	}

	r.logger.Debug("retrieval_complete",
		slog.String("mode", mode.String()),
		slog.Int("k", k),
		slog.String("channel", filter.Channel),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// searchDense embeds the query and searches the vector index.
func (r *Retriever) searchDense(ctx context.Context, query string, k int) ([]store.RankedHit, error) {
	if r.embedder == nil {
		return nil, sferrors.EmbeddingError("no embedder configured for dense search", nil)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	return r.collection.SearchDense(ctx, vec, k)
}

// searchHybrid runs dense and sparse sub-searches in parallel and fuses
// the ranked lists with RRF.
func (r *Retriever) searchHybrid(ctx context.Context, query string, k int) ([]store.RankedHit, error) {
	fetchLimit := 2 * k
	if fetchLimit < minCandidates {
		fetchLimit = minCandidates
	}

	var dense, sparse []store.RankedHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = r.searchDense(gctx, query, fetchLimit)
		return err
	})
	g.Go(func() error {
		var err error
		sparse, err = r.collection.SearchSparse(gctx, query, fetchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Fuse(dense, sparse, k, r.rrfConstant), nil
}

// attachDocuments joins ranked hits with their stored payloads.
// Hits whose payload has been deleted are dropped.
func (r *Retriever) attachDocuments(ctx context.Context, hits []store.RankedHit) ([]Result, error) {
	if len(hits) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}

	docs, err := r.collection.Get(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*store.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		doc, ok := byID[h.DocID]
		if !ok {
			continue
		}
		results = append(results, Result{
			Document: doc,
			Score:    h.Score,
			Source:   h.Source,
		})
	}
	return results, nil
}

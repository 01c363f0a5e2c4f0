// Package ingest writes Q&A documents into a collection in batches,
// embedding and sparse-encoding along the way.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/sfarag/slackfaq/internal/embed"
	sferrors "github.com/sfarag/slackfaq/internal/errors"
	"github.com/sfarag/slackfaq/internal/store"
)

// DefaultBatchSize is the default number of documents per batch.
const DefaultBatchSize = 32

// Stats summarizes one ingestion run.
type Stats struct {
	Total    int // documents seen in the input
	Skipped  int // already present, skipped
	Upserted int // written this run
}

// Options configures a Pipeline.
type Options struct {
	// BatchSize is the number of documents embedded and upserted at once.
	BatchSize int

	// SkipExisting skips documents whose ID is already stored instead
	// of re-embedding and re-upserting them.
	SkipExisting bool

	// Retry configures the backoff applied to transient embedding
	// failures. Zero value uses defaults.
	Retry sferrors.RetryConfig

	// Progress, when set, is called after each batch with the number of
	// documents processed so far and the total.
	Progress func(done, total int)

	// Logger receives per-run records. Nil uses slog.Default.
	Logger *slog.Logger
}

// Pipeline ingests documents into one collection.
type Pipeline struct {
	collection *store.Collection
	embedder   embed.Embedder
	opts       Options
}

// New creates an ingestion pipeline. The embedder may be nil for
// sparse-only collections.
func New(collection *store.Collection, embedder embed.Embedder, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > embed.MaxBatchSize {
		opts.BatchSize = embed.MaxBatchSize
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = sferrors.DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		collection: collection,
		embedder:   embedder,
		opts:       opts,
	}
}

// Run ingests documents in batches. Vectors and sparse weights are
// populated according to the collection mode. A transient embedding
// failure is retried with backoff; a terminal failure aborts the run
// with everything already committed staying committed.
func (p *Pipeline) Run(ctx context.Context, docs []*store.Document) (Stats, error) {
	stats := Stats{Total: len(docs)}
	if len(docs) == 0 {
		return stats, nil
	}

	mode := p.collection.Info().Mode
	if mode != store.ModeNameSparse && p.embedder == nil {
		return stats, sferrors.EmbeddingError("no embedder configured for "+mode+" ingestion", nil)
	}

	start := time.Now()

	pending := docs
	if p.opts.SkipExisting {
		var err error
		pending, err = p.filterExisting(ctx, docs, &stats)
		if err != nil {
			return stats, err
		}
	}

	// Sparse weights depend on corpus statistics, so the whole run is
	// observed before any document is encoded. Documents already stored
	// were counted when first ingested; observing them again would
	// inflate the vocabulary on every re-ingestion.
	encoder := p.collection.SparseEncoder()
	if encoder != nil {
		for _, doc := range pending {
			if !p.opts.SkipExisting {
				exists, err := p.collection.Contains(ctx, doc.ID)
				if err != nil {
					return stats, err
				}
				if exists {
					continue
				}
			}
			encoder.Observe(doc.Text())
		}
	}

	for offset := 0; offset < len(pending); offset += p.opts.BatchSize {
		end := offset + p.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[offset:end]

		if err := p.ingestBatch(ctx, mode, encoder, batch); err != nil {
			return stats, err
		}
		stats.Upserted += len(batch)

		if p.opts.Progress != nil {
			p.opts.Progress(stats.Skipped+stats.Upserted, stats.Total)
		}
	}

	if err := p.collection.Flush(ctx); err != nil {
		return stats, err
	}

	p.opts.Logger.Info("ingestion_complete",
		slog.String("collection", p.collection.Info().Name),
		slog.String("mode", mode),
		slog.Int("total", stats.Total),
		slog.Int("skipped", stats.Skipped),
		slog.Int("upserted", stats.Upserted),
		slog.Duration("elapsed", time.Since(start)))

	return stats, nil
}

// filterExisting drops documents already present in the collection.
func (p *Pipeline) filterExisting(ctx context.Context, docs []*store.Document, stats *Stats) ([]*store.Document, error) {
	pending := make([]*store.Document, 0, len(docs))
	for _, doc := range docs {
		exists, err := p.collection.Contains(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			stats.Skipped++
			continue
		}
		pending = append(pending, doc)
	}
	return pending, nil
}

// ingestBatch populates vectors for one batch and upserts it.
func (p *Pipeline) ingestBatch(ctx context.Context, mode string, encoder *embed.SparseEncoder, batch []*store.Document) error {
	if mode != store.ModeNameSparse {
		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Text()
		}

		vecs, err := sferrors.RetryWithResult(ctx, p.opts.Retry, func() ([][]float32, error) {
			return p.embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return err
		}

		for i, doc := range batch {
			doc.Dense = vecs[i]
		}
	}

	if encoder != nil {
		for _, doc := range batch {
			doc.Sparse = encoder.EncodeDocument(doc.Text())
		}
	}

	return p.collection.Upsert(ctx, batch)
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/config"
	"github.com/sfarag/slackfaq/internal/embed"
	sferrors "github.com/sfarag/slackfaq/internal/errors"
	"github.com/sfarag/slackfaq/internal/ingest"
	"github.com/sfarag/slackfaq/internal/slack"
	"github.com/sfarag/slackfaq/internal/store"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	file         string
	collection   string
	mode         string
	embedDim     int
	model        string
	batchSize    int
	skipExisting bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest extracted Q&A pairs into a collection",
		Long: `Ingest thread records produced by 'slackfaq threads' into a
collection, embedding and indexing them per the collection mode.

The collection is created on first use. Re-running with
--skip-existing is idempotent: document IDs derive from channel,
thread, and question, so already-ingested pairs are skipped.

Examples:
  slackfaq ingest --file threads.json
  slackfaq ingest --file threads.json --collection faq --mode sparse
  slackfaq ingest --file threads.json --skip-existing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Thread records JSON file (required)")
	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Collection name (default: from config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Collection mode when creating: dense, sparse, hybrid (default: from config)")
	cmd.Flags().IntVar(&opts.embedDim, "embed-dim", 0, "Dense embedding dimensionality when creating (default: from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Embedding model handle (default: from config)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", ingest.DefaultBatchSize, "Documents embedded per batch")
	cmd.Flags().BoolVar(&opts.skipExisting, "skip-existing", false, "Skip documents already in the collection")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, opts ingestOptions) error {
	out := newWriter(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyIngestDefaults(&opts, cfg)

	records, err := slack.LoadThreadRecords(opts.file)
	if err != nil {
		return fmt.Errorf("load thread records: %w", err)
	}
	docs := slack.FlattenToDocuments(records)
	if len(docs) == 0 {
		out.Warning("No Q&A pairs found in " + opts.file)
		return nil
	}

	// One writer at a time per data directory.
	lock := ingest.NewWriterLock(cfg.Paths.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another ingestion is already running against %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	meta, err := store.NewMetadataStore(metadataPath(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = meta.Close() }()

	collection, created, err := openOrCreateCollection(ctx, meta, cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = collection.Close() }()

	if created {
		out.Statusf("📁", "Created collection %q (%s, dim=%d)",
			collection.Info().Name, collection.Info().Mode, collection.Info().Dimensions)
	}

	var embedder embed.Embedder
	if collection.Info().Mode != store.ModeNameSparse {
		embedder, err = embed.NewFromConfig(cfg, collection.Info().Dimensions)
		if err != nil {
			return err
		}
		defer func() { _ = embedder.Close() }()
	}

	start := time.Now()
	pipeline := ingest.New(collection, embedder, ingest.Options{
		BatchSize:    opts.batchSize,
		SkipExisting: opts.skipExisting,
		Progress: func(done, total int) {
			out.Progress(done, total, "ingesting")
		},
	})

	stats, err := pipeline.Run(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out.Successf("Ingested %d documents (%d skipped) into %q in %s",
		stats.Upserted, stats.Skipped, collection.Info().Name,
		time.Since(start).Round(time.Millisecond))
	return nil
}

// applyIngestDefaults fills unset flags from configuration.
func applyIngestDefaults(opts *ingestOptions, cfg *config.Config) {
	if opts.collection == "" {
		opts.collection = cfg.Collection.Name
	}
	if opts.mode == "" {
		opts.mode = cfg.Collection.Mode
	}
	if opts.embedDim == 0 {
		opts.embedDim = cfg.Collection.EmbedDim
	}
	if opts.model == "" {
		opts.model = cfg.Embeddings.Model
	}
}

// openOrCreateCollection opens the target collection, creating it with
// the requested mode on first use.
func openOrCreateCollection(ctx context.Context, meta *store.MetadataStore, cfg *config.Config, opts ingestOptions) (*store.Collection, bool, error) {
	collection, err := store.OpenCollection(ctx, meta, cfg.Paths.DataDir, opts.collection)
	if err == nil {
		return collection, false, nil
	}
	if sferrors.GetCode(err) != sferrors.ErrCodeCollectionNotFound {
		return nil, false, err
	}

	dims := opts.embedDim
	if opts.mode == store.ModeNameSparse {
		dims = 0
	}
	collection, err = store.CreateCollection(ctx, meta, cfg.Paths.DataDir, store.CollectionInfo{
		Name:       opts.collection,
		Mode:       opts.mode,
		Model:      opts.model,
		Dimensions: dims,
	})
	if err != nil {
		return nil, false, err
	}
	return collection, true, nil
}

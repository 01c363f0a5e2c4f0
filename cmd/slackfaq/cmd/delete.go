package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/ingest"
	"github.com/sfarag/slackfaq/internal/store"
)

// deleteOptions holds CLI flags for delete.
type deleteOptions struct {
	collection string
}

func newDeleteCmd() *cobra.Command {
	var opts deleteOptions

	cmd := &cobra.Command{
		Use:   "delete <doc-id>...",
		Short: "Delete documents from a collection",
		Long: `Remove documents by ID from every index of a collection.
Ingested documents persist until deleted this way. Use
'slackfaq search --format json' to find document IDs.

Examples:
  slackfaq delete 2f1c9e0a-8b74-5f6d-9c3e-1a2b3c4d5e6f
  slackfaq delete <id> <id> --collection faq`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Collection name (default: from config)")

	return cmd
}

func runDelete(ctx context.Context, cmd *cobra.Command, ids []string, opts deleteOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := opts.collection
	if name == "" {
		name = cfg.Collection.Name
	}

	// Deletion rewrites every index, so it takes the same writer lock
	// as ingestion.
	lock := ingest.NewWriterLock(cfg.Paths.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another writer is already running against %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	meta, err := store.NewMetadataStore(metadataPath(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = meta.Close() }()

	collection, err := store.OpenCollection(ctx, meta, cfg.Paths.DataDir, name)
	if err != nil {
		return err
	}
	defer func() { _ = collection.Close() }()

	before, err := collection.Count(ctx)
	if err != nil {
		return err
	}

	if err := collection.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if err := collection.Flush(ctx); err != nil {
		return err
	}

	after, err := collection.Count(ctx)
	if err != nil {
		return err
	}

	newWriter(cmd).Successf("Deleted %d of %d documents from %q", before-after, len(ids), name)
	return nil
}

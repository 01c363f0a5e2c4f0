package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/config"
	"github.com/sfarag/slackfaq/internal/embed"
	"github.com/sfarag/slackfaq/internal/logging"
	"github.com/sfarag/slackfaq/internal/output"
	"github.com/sfarag/slackfaq/internal/store"
)

// loggingConfig builds the logging setup for this invocation. CLI
// output stays clean: records go to the log file, plus stderr in
// debug mode.
func loggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = debugMode
	if debugMode {
		cfg.Level = "debug"
	}
	return cfg
}

func setupLogging(cfg logging.Config) (*slog.Logger, func(), error) {
	return logging.Setup(cfg)
}

// loadConfig reads slackfaq.yaml from the working directory and applies
// the --data-dir override.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	return cfg, nil
}

// env bundles the handles a subcommand needs against one collection.
type env struct {
	cfg        *config.Config
	meta       *store.MetadataStore
	collection *store.Collection
	embedder   embed.Embedder
}

// openEnv opens the metadata store and the named collection, plus the
// configured embedder when the collection mode needs one. An empty
// collection name uses the configured default.
func openEnv(ctx context.Context, collectionName string) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if collectionName == "" {
		collectionName = cfg.Collection.Name
	}

	meta, err := store.NewMetadataStore(metadataPath(cfg))
	if err != nil {
		return nil, err
	}

	collection, err := store.OpenCollection(ctx, meta, cfg.Paths.DataDir, collectionName)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}

	e := &env{cfg: cfg, meta: meta, collection: collection}

	if collection.Info().Mode != store.ModeNameSparse {
		embedder, err := embed.NewFromConfig(cfg, collection.Info().Dimensions)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.embedder = embedder
	}

	return e, nil
}

// Close releases everything openEnv acquired.
func (e *env) Close() error {
	var firstErr error
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil {
			firstErr = err
		}
	}
	if e.collection != nil {
		if err := e.collection.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.meta != nil {
		if err := e.meta.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// newWriter builds the CLI output writer, enabling in-place progress
// updates when stdout is a terminal.
func newWriter(cmd *cobra.Command) *output.Writer {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return output.NewAuto(f)
	}
	return output.New(cmd.OutOrStdout())
}

// metadataPath locates the shared SQLite metadata database.
func metadataPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "metadata.db")
}

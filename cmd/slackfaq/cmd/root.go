// Package cmd provides the CLI commands for slackfaq.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Persistent flags shared by all subcommands.
var (
	dataDir        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the slackfaq CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slackfaq",
		Short: "Hybrid FAQ retrieval over Slack Q&A threads",
		Long: `slackfaq turns exported Slack support threads into a searchable
FAQ knowledge base.

It combines BM25 (keyword) and semantic (embedding) search with
Reciprocal Rank Fusion, generates grounded answers with an LLM, and
measures retrieval quality offline (hit-rate@k, MRR).

Typical flow:
  slackfaq threads ./slack-export --out threads.json
  slackfaq ingest --file threads.json --mode hybrid
  slackfaq search hybrid "how do I install kafka"
  slackfaq eval hybrid --ground-truth ground-truth.json`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("slackfaq version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the data directory (default: from config)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newThreadsCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newCollectionsCmd())

	return cmd
}

// startLogging sets up structured logging before any subcommand runs.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := loggingConfig()
	logger, cleanup, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug logging enabled")
	}
	return nil
}

// stopLogging flushes and closes the log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

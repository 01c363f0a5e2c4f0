package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/output"
	"github.com/sfarag/slackfaq/internal/slack"
)

func newThreadsCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "threads <export-dir>",
		Short: "Extract Q&A threads from a Slack export",
		Long: `Walk a Slack export directory (one subdirectory per channel, one
JSON file per day), reassemble threaded conversations, and extract
question/answer pairs into a JSON file ready for ingestion.

Examples:
  slackfaq threads ./slack-export --out threads.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThreads(cmd, args[0], outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "threads.json", "Output file for extracted thread records")

	return cmd
}

func runThreads(cmd *cobra.Command, exportDir, outPath string) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(exportDir); err != nil {
		return fmt.Errorf("export directory %s: %w", exportDir, err)
	}

	messages, err := slack.LoadExport(exportDir)
	if err != nil {
		return fmt.Errorf("load export: %w", err)
	}
	slog.Info("export_loaded", slog.Int("messages", len(messages)))

	threads := slack.BuildThreads(messages)
	records := slack.ExtractAllQAs(threads)

	if err := slack.SaveThreadRecords(outPath, records); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	qas := 0
	for _, rec := range records {
		qas += len(rec.QAs)
	}

	out.Successf("Extracted %d Q&A pairs from %d threads (%d messages) → %s",
		qas, len(threads), len(messages), outPath)
	return nil
}

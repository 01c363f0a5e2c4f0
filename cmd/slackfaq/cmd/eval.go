package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/eval"
	"github.com/sfarag/slackfaq/internal/retriever"
)

// evalOptions holds CLI flags for eval.
type evalOptions struct {
	collection  string
	groundTruth string
	k           int
	format      string
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval <mode>",
		Short: "Evaluate retrieval quality against labeled queries",
		Long: `Replay a labeled query set against the collection and report
hit-rate@k (fraction of queries whose expected document appears in
the top k) and MRR (mean reciprocal rank).

The ground truth file maps document IDs to generated question
variants:

  {"<doc-id>": ["question one", "question two", ...], ...}

Examples:
  slackfaq eval hybrid --ground-truth ground-truth.json
  slackfaq eval dense --ground-truth ground-truth.json --k 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := retriever.ParseMode(args[0])
			if err != nil {
				return err
			}
			return runEval(cmd.Context(), cmd, mode, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Collection name (default: from config)")
	cmd.Flags().StringVarP(&opts.groundTruth, "ground-truth", "g", "", "Labeled query set JSON file (required)")
	cmd.Flags().IntVarP(&opts.k, "k", "k", eval.DefaultK, "Rank cutoff")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("ground-truth")

	return cmd
}

func runEval(ctx context.Context, cmd *cobra.Command, mode retriever.Mode, opts evalOptions) error {
	queries, err := eval.LoadGroundTruth(opts.groundTruth)
	if err != nil {
		return fmt.Errorf("load ground truth: %w", err)
	}

	e, err := openEnv(ctx, opts.collection)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	r := retriever.New(e.collection, e.embedder, retriever.Options{
		RRFConstant: e.cfg.Search.RRFConstant,
	})

	metrics, err := eval.New(r, nil).Run(ctx, queries, mode, opts.k)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(metrics)
	}

	out := newWriter(cmd)
	out.Statusf("📊", "Evaluated %d queries in %s mode (k=%d)", metrics.Queries, mode, metrics.K)
	out.Statusf("", "hit-rate@%d: %.4f", metrics.K, metrics.HitRate)
	out.Statusf("", "MRR:        %.4f", metrics.MRR)
	return nil
}

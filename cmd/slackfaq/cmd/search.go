package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/retriever"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	collection string
	channel    string
	limit      int
	format     string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <mode> <query>",
		Short: "Search the FAQ collection",
		Long: `Search ingested Q&A pairs in the given retrieval mode.

Modes:
  dense   semantic nearest-neighbor search over embeddings
  sparse  BM25 keyword search
  hybrid  both, fused with Reciprocal Rank Fusion

Examples:
  slackfaq search hybrid "how do I install kafka"
  slackfaq search sparse "docker compose" --limit 5
  slackfaq search hybrid "zoom link" --channel course-help
  slackfaq search dense "course start date" --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := retriever.ParseMode(args[0])
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")
			return runSearch(cmd.Context(), cmd, mode, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Collection name (default: from config)")
	cmd.Flags().StringVar(&opts.channel, "channel", "", "Restrict results to one Slack channel")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, mode retriever.Mode, query string, opts searchOptions) error {
	e, err := openEnv(ctx, opts.collection)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	limit := opts.limit
	if limit <= 0 {
		limit = e.cfg.Search.MaxResults
	}

	r := retriever.New(e.collection, e.embedder, retriever.Options{
		RRFConstant: e.cfg.Search.RRFConstant,
	})

	results, err := r.RetrieveFiltered(ctx, query, mode, limit, retriever.Filter{Channel: opts.channel})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := newWriter(cmd)
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	switch opts.format {
	case "json":
		return printResultsJSON(cmd, results)
	default:
		out.Statusf("🔍", "Found %d results for %q:", len(results), query)
		out.Newline()
		for i, res := range results {
			out.Statusf("", "%d. [%s] %s (score: %.4f)",
				i+1, res.Source, res.Document.Question, res.Score)
			out.Status("", "   "+firstLine(res.Document.Answer))
			out.Newline()
		}
		return nil
	}
}

// printResultsJSON emits machine-readable results.
func printResultsJSON(cmd *cobra.Command, results []retriever.Result) error {
	type jsonResult struct {
		ID       string  `json:"id"`
		Channel  string  `json:"channel"`
		Question string  `json:"question"`
		Answer   string  `json:"answer"`
		Score    float64 `json:"score"`
		Source   string  `json:"source"`
	}

	out := make([]jsonResult, 0, len(results))
	for _, res := range results {
		out = append(out, jsonResult{
			ID:       res.Document.ID,
			Channel:  res.Document.Channel,
			Question: res.Document.Question,
			Answer:   res.Document.Answer,
			Score:    res.Score,
			Source:   string(res.Source),
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// firstLine truncates an answer to its first line for compact listing.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}

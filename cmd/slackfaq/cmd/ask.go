package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/rag"
	"github.com/sfarag/slackfaq/internal/retriever"
	"github.com/sfarag/slackfaq/internal/telemetry"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	collection string
	channel    string
	mode       string
	limit      int
	noJudge    bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a question with retrieval-augmented generation",
		Long: `Retrieve the most relevant Q&A pairs, generate a grounded answer
with the configured chat model, judge its relevancy, and record the
interaction (latency, tokens, cost, relevancy) for offline review.

Requires the API key environment variable from the config
(default OPENAI_API_KEY).

Examples:
  slackfaq ask "how do I install kafka"
  slackfaq ask "course start date" --mode dense --limit 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Collection name (default: from config)")
	cmd.Flags().StringVar(&opts.channel, "channel", "", "Restrict context to one Slack channel")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Retrieval mode: dense, sparse, hybrid")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Passages retrieved for context (default: from config)")
	cmd.Flags().BoolVar(&opts.noJudge, "no-judge", false, "Skip the relevancy judge call")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, query string, opts askOptions) error {
	mode, err := retriever.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx, opts.collection)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	apiKey := e.cfg.APIKey()
	if apiKey == "" {
		return fmt.Errorf("no API key: set %s to use ask", e.cfg.Embeddings.APIKeyEnv)
	}

	limit := opts.limit
	if limit <= 0 {
		limit = e.cfg.Search.MaxResults
	}

	r := retriever.New(e.collection, e.embedder, retriever.Options{
		RRFConstant: e.cfg.Search.RRFConstant,
	})
	results, err := r.RetrieveFiltered(ctx, query, mode, limit, retriever.Filter{Channel: opts.channel})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	out := newWriter(cmd)
	if len(results) == 0 {
		out.Warning(fmt.Sprintf("No context found for %q; not generating an answer", query))
		return nil
	}

	assembler := rag.New(openai.NewClient(apiKey), e.cfg.Generation.Model, nil)
	answer, err := assembler.Answer(ctx, query, results)
	if err != nil {
		return fmt.Errorf("answer generation failed: %w", err)
	}

	interaction := &telemetry.Interaction{
		Question:  query,
		Answer:    answer.Text,
		LatencyMS: float64(answer.LatencyMS),
		TokensIn:  answer.TokensIn,
		TokensOut: answer.TokensOut,
		Cost:      answer.Cost,
	}

	if !opts.noJudge {
		applyRelevancy(ctx, assembler, query, interaction)
	}

	out.Status("💬", answer.Text)
	out.Newline()
	out.Statusf("", "tokens: %d in / %d out · cost: $%.6f · latency: %dms",
		answer.TokensIn, answer.TokensOut, answer.Cost, answer.LatencyMS)
	if interaction.Relevancy != "" {
		out.Statusf("", "relevancy: %s", interaction.Relevancy)
	}

	sink, err := telemetry.NewInteractionStore(e.cfg.Metrics.DBPath)
	if err != nil {
		out.Warning("Failed to open metrics store: " + err.Error())
		return nil
	}
	defer func() { _ = sink.Close() }()

	id, err := sink.Record(ctx, interaction)
	if err != nil {
		out.Warning("Failed to record interaction: " + err.Error())
		return nil
	}
	out.Statusf("", "recorded as interaction %d (vote with 'slackfaq feedback %d up|down')", id, id)
	return nil
}

// applyRelevancy runs the judge and annotates the interaction. A failed
// judge call leaves the interaction unjudged; the answer itself already
// succeeded, so the failure is logged rather than surfaced.
func applyRelevancy(ctx context.Context, assembler *rag.Assembler, query string, interaction *telemetry.Interaction) {
	verdict, err := assembler.Judge(ctx, query, interaction.Answer)
	if err != nil {
		slog.Warn("relevancy_judge_failed",
			slog.String("question", query),
			slog.String("error", err.Error()))
		return
	}
	interaction.Relevancy = verdict.Relevance
	interaction.RelevancyExplanation = verdict.Explanation
}

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <interaction-id> <up|down>",
		Short: "Record a thumbs vote on a past answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid interaction id %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sink, err := telemetry.NewInteractionStore(cfg.Metrics.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = sink.Close() }()

			if err := sink.SetFeedback(cmd.Context(), id, args[1]); err != nil {
				return err
			}
			newWriter(cmd).Successf("Recorded %q on interaction %d", args[1], id)
			return nil
		},
	}
	return cmd
}

// Package eval implements offline retrieval quality evaluation:
// hit-rate@k and mean reciprocal rank over a labeled query set.
package eval

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	sferrors "github.com/sfarag/slackfaq/internal/errors"
	"github.com/sfarag/slackfaq/internal/retriever"
)

// DefaultK is the default evaluation cutoff.
const DefaultK = 5

// LabeledQuery pairs a query with the document that should answer it.
type LabeledQuery struct {
	Query      string
	ExpectedID string
}

// Metrics holds aggregate retrieval quality over a query set.
// Both metrics live in [0, 1]; a perfect retriever scores 1.0 on both.
type Metrics struct {
	// HitRate is the fraction of queries whose expected document
	// appeared anywhere in the top k.
	HitRate float64 `json:"hit_rate"`

	// MRR is the mean reciprocal rank of the expected document,
	// counting 0 for queries where it is absent from the top k.
	MRR float64 `json:"mrr"`

	// Queries is the number of labeled queries evaluated.
	Queries int `json:"queries"`

	// K is the rank cutoff used.
	K int `json:"k"`
}

// Evaluator replays labeled queries against a retriever.
type Evaluator struct {
	retriever *retriever.Retriever
	logger    *slog.Logger
}

// New creates an evaluator. A nil logger uses slog.Default.
func New(r *retriever.Retriever, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{retriever: r, logger: logger}
}

// Run evaluates the query set at cutoff k in the given retrieval mode.
// An empty query set is an error: reporting 0/0 as a score would be
// indistinguishable from a catastrophically bad retriever.
// Context cancellation aborts the run with an error rather than
// returning metrics over a partial set.
func (e *Evaluator) Run(ctx context.Context, queries []LabeledQuery, mode retriever.Mode, k int) (*Metrics, error) {
	if len(queries) == 0 {
		return nil, sferrors.EmptyQuerySet()
	}
	if k <= 0 {
		k = DefaultK
	}

	start := time.Now()

	var hits int
	var reciprocalSum float64

	for i, lq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, sferrors.New(sferrors.ErrCodeEvalAborted,
				"evaluation aborted before completing the query set", err).
				WithDetail("completed", strconv.Itoa(i)).
				WithDetail("total", strconv.Itoa(len(queries)))
		}

		results, err := e.retriever.Retrieve(ctx, lq.Query, mode, k)
		if err != nil {
			return nil, sferrors.Wrap(sferrors.ErrCodeEvalAborted, err).
				WithDetail("query", lq.Query)
		}

		rank := 0
		for pos, res := range results {
			if res.Document.ID == lq.ExpectedID {
				rank = pos + 1
				break
			}
		}
		if rank > 0 {
			hits++
			reciprocalSum += 1.0 / float64(rank)
		}
	}

	n := float64(len(queries))
	m := &Metrics{
		HitRate: float64(hits) / n,
		MRR:     reciprocalSum / n,
		Queries: len(queries),
		K:       k,
	}

	e.logger.Info("evaluation_complete",
		slog.String("mode", mode.String()),
		slog.Int("queries", m.Queries),
		slog.Int("k", k),
		slog.Float64("hit_rate", m.HitRate),
		slog.Float64("mrr", m.MRR),
		slog.Duration("elapsed", time.Since(start)))

	return m, nil
}

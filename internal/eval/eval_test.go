package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfarag/slackfaq/internal/embed"
	sferrors "github.com/sfarag/slackfaq/internal/errors"
	"github.com/sfarag/slackfaq/internal/retriever"
	"github.com/sfarag/slackfaq/internal/store"
)

const testDims = 128

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ctx := context.Background()

	meta, err := store.NewMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	collection, err := store.CreateCollection(ctx, meta, t.TempDir(), store.CollectionInfo{
		Name:       "slack_QA",
		Mode:       store.ModeNameHybrid,
		Model:      "static",
		Dimensions: testDims,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = collection.Close() })

	embedder := embed.NewStaticEmbedder(testDims)
	t.Cleanup(func() { _ = embedder.Close() })

	docs := []*store.Document{
		{ID: "doc-kafka", Question: "How do I install Kafka on Windows?", Answer: "Download the binaries."},
		{ID: "doc-docker", Question: "Docker compose fails to start, what should I check?", Answer: "Check the daemon."},
		{ID: "doc-deadline", Question: "Can I submit homework after the deadline?", Answer: "No."},
	}
	for _, doc := range docs {
		vec, err := embedder.Embed(ctx, doc.Text())
		require.NoError(t, err)
		doc.Dense = vec
	}
	require.NoError(t, collection.Upsert(ctx, docs))

	return New(retriever.New(collection, embedder, retriever.Options{}), nil)
}

func TestEvaluator_PerfectQueriesScorePerfectly(t *testing.T) {
	e := newTestEvaluator(t)

	// Queries verbatim from the indexed questions retrieve their own
	// document at rank 1.
	queries := []LabeledQuery{
		{Query: "How do I install Kafka on Windows?", ExpectedID: "doc-kafka"},
		{Query: "Docker compose fails to start, what should I check?", ExpectedID: "doc-docker"},
		{Query: "Can I submit homework after the deadline?", ExpectedID: "doc-deadline"},
	}

	m, err := e.Run(context.Background(), queries, retriever.ModeHybrid, 5)
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.HitRate)
	assert.Equal(t, 1.0, m.MRR)
	assert.Equal(t, 3, m.Queries)
}

func TestEvaluator_MissingExpectedDocScoresZero(t *testing.T) {
	e := newTestEvaluator(t)

	queries := []LabeledQuery{
		{Query: "install kafka windows", ExpectedID: "doc-nonexistent"},
	}

	m, err := e.Run(context.Background(), queries, retriever.ModeHybrid, 5)
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.HitRate)
	assert.Equal(t, 0.0, m.MRR)
}

func TestEvaluator_MetricsStayInBounds(t *testing.T) {
	e := newTestEvaluator(t)

	queries := []LabeledQuery{
		{Query: "how to install kafka", ExpectedID: "doc-kafka"},
		{Query: "docker daemon problems", ExpectedID: "doc-docker"},
		{Query: "completely unrelated quantum physics", ExpectedID: "doc-nonexistent"},
	}

	m, err := e.Run(context.Background(), queries, retriever.ModeSparse, 3)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, m.HitRate, 0.0)
	assert.LessOrEqual(t, m.HitRate, 1.0)
	assert.GreaterOrEqual(t, m.MRR, 0.0)
	assert.LessOrEqual(t, m.MRR, m.HitRate, "MRR can never exceed hit rate")
}

func TestEvaluator_EmptyQuerySetFails(t *testing.T) {
	e := newTestEvaluator(t)

	_, err := e.Run(context.Background(), nil, retriever.ModeHybrid, 5)
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeEmptyQuerySet, sferrors.GetCode(err))
}

func TestEvaluator_CancelledContextAborts(t *testing.T) {
	e := newTestEvaluator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, []LabeledQuery{
		{Query: "kafka", ExpectedID: "doc-kafka"},
	}, retriever.ModeHybrid, 5)
	require.Error(t, err, "aborted runs must not report partial metrics")
	assert.Equal(t, sferrors.ErrCodeEvalAborted, sferrors.GetCode(err))
}

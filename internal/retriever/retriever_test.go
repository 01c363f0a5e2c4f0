package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfarag/slackfaq/internal/embed"
	sferrors "github.com/sfarag/slackfaq/internal/errors"
	"github.com/sfarag/slackfaq/internal/store"
)

const testDims = 128

// failingEmbedder simulates an embedding provider outage.
type failingEmbedder struct {
	embed.Embedder
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, sferrors.EmbeddingError("provider unavailable", nil)
}

func newTestRetriever(t *testing.T) (*Retriever, *store.Collection) {
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
		{ID: "doc-kafka", Channel: "course-help", Question: "How do I install Kafka on Windows?", Answer: "Download the binaries and run the server script."},
		{ID: "doc-docker", Channel: "course-help", Question: "Docker compose fails to start, what should I check?", Answer: "Make sure the docker daemon is running."},
		{ID: "doc-deadline", Channel: "logistics", Question: "Can I submit homework after the deadline?", Answer: "No, late submissions are not accepted."},
	}
	for _, doc := range docs {
		vec, err := embedder.Embed(ctx, doc.Text())
		require.NoError(t, err)
		doc.Dense = vec
	}
	require.NoError(t, collection.Upsert(ctx, docs))

	return New(collection, embedder, Options{}), collection
}

func TestRetriever_HybridReturnsRelevantDocument(t *testing.T) {
	r, _ := newTestRetriever(t)

	results, err := r.Retrieve(context.Background(), "how to install kafka on windows", ModeHybrid, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "doc-kafka", results[0].Document.ID)
	assert.Equal(t, store.SourceFused, results[0].Source)
	assert.NotEmpty(t, results[0].Document.Answer, "hits must carry full payloads")
	assert.LessOrEqual(t, len(results), 3)
}

func TestRetriever_SparseMode(t *testing.T) {
	r, _ := newTestRetriever(t)

	results, err := r.Retrieve(context.Background(), "docker daemon", ModeSparse, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-docker", results[0].Document.ID)
	assert.Equal(t, store.SourceSparse, results[0].Source)
}

func TestRetriever_DenseMode(t *testing.T) {
	r, _ := newTestRetriever(t)

	results, err := r.Retrieve(context.Background(), "Can I submit homework after the deadline?", ModeDense, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-deadline", results[0].Document.ID)
	assert.Equal(t, store.SourceDense, results[0].Source)
}

func TestRetriever_HybridFailsWhenSubSearchFails(t *testing.T) {
	r, collection := newTestRetriever(t)

	broken := New(collection, &failingEmbedder{}, Options{})

	_, err := broken.Retrieve(context.Background(), "kafka", ModeHybrid, 3)
	require.Error(t, err, "a failed sub-search must fail the whole retrieval")
	assert.Equal(t, sferrors.ErrCodeEmbeddingFailed, sferrors.GetCode(err))

	// The healthy retriever still works against the same collection.
	_, err = r.Retrieve(context.Background(), "kafka", ModeHybrid, 3)
	require.NoError(t, err)
}

func TestRetriever_HybridSurvivesEmptySparseList(t *testing.T) {
	r, _ := newTestRetriever(t)

	// Stop-word-only query yields no BM25 hits; fusion degenerates to
	// the dense ordering instead of failing.
	results, err := r.Retrieve(context.Background(), "how do the that", ModeHybrid, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestRetriever_ChannelFilterScopesResults(t *testing.T) {
	r, _ := newTestRetriever(t)
	ctx := context.Background()

	// Scoped to the right channel the kafka document is found.
	results, err := r.RetrieveFiltered(ctx, "install kafka", ModeHybrid, 3, Filter{Channel: "course-help"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-kafka", results[0].Document.ID)
	for _, res := range results {
		assert.Equal(t, "course-help", res.Document.Channel)
	}

	// Scoped to another channel it is invisible.
	results, err = r.RetrieveFiltered(ctx, "install kafka", ModeSparse, 3, Filter{Channel: "logistics"})
	require.NoError(t, err)
	for _, res := range results {
		assert.NotEqual(t, "doc-kafka", res.Document.ID)
		assert.Equal(t, "logistics", res.Document.Channel)
	}

	// An empty filter behaves exactly like Retrieve.
	unfiltered, err := r.RetrieveFiltered(ctx, "install kafka", ModeHybrid, 3, Filter{})
	require.NoError(t, err)
	direct, err := r.Retrieve(ctx, "install kafka", ModeHybrid, 3)
	require.NoError(t, err)
	require.Equal(t, len(direct), len(unfiltered))
	for i := range direct {
		assert.Equal(t, direct[i].Document.ID, unfiltered[i].Document.ID)
	}
}

func TestRetriever_RejectsNonPositiveLimit(t *testing.T) {
	r, _ := newTestRetriever(t)

	_, err := r.Retrieve(context.Background(), "kafka", ModeHybrid, 0)
	require.Error(t, err)
}

func TestRetriever_UnknownModeFails(t *testing.T) {
	r, _ := newTestRetriever(t)

	_, err := r.Retrieve(context.Background(), "kafka", Mode(42), 3)
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeUnsupportedMode, sferrors.GetCode(err))
}

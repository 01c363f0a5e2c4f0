package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBM25(t *testing.T) *BleveBM25Index {
	t.Helper()
	idx, err := NewBleveBM25Index("") // in-memory
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func faqDoc(id, question, answer string) *Document {
	return &Document{ID: id, Question: question, Answer: answer}
}

func TestBleveBM25Index_SearchRanksKeywordMatches(t *testing.T) {
	idx := newTestBM25(t)
	ctx := context.Background()

	err := idx.Index(ctx, []*Document{
		faqDoc("doc-kafka", "How do I install Kafka on Windows?",
			"Download the binaries and run the server script."),
		faqDoc("doc-docker", "Docker compose fails to start, what now?",
			"Check that the docker daemon is running."),
		faqDoc("doc-deadline", "Can I submit homework after the deadline?",
			"No, late submissions are not accepted."),
	})
	require.NoError(t, err)

	results, err := idx.Search(ctx, "install kafka", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-kafka", results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Contains(t, results[0].MatchedTerms, "kafka")
}

func TestBleveBM25Index_AnswerTextIsSearchable(t *testing.T) {
	idx := newTestBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		faqDoc("doc-1", "My build is failing", "Run the daemon with elevated permissions."),
	}))

	results, err := idx.Search(ctx, "daemon permissions", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].DocID)
}

func TestBleveBM25Index_EmptyQueryReturnsNoResults(t *testing.T) {
	idx := newTestBM25(t)

	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveBM25Index_ReindexReplacesDocument(t *testing.T) {
	idx := newTestBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		faqDoc("doc-1", "How do I install Kafka?", "Use the tarball."),
	}))
	require.NoError(t, idx.Index(ctx, []*Document{
		faqDoc("doc-1", "How do I install Spark?", "Use the installer."),
	}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, "kafka", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "old content must be gone after reindex")
}

func TestBleveBM25Index_Delete(t *testing.T) {
	idx := newTestBM25(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		faqDoc("doc-1", "How do I install Kafka?", "Use the tarball."),
		faqDoc("doc-2", "Where is the zoom link?", "Pinned in the channel."),
	}))

	require.NoError(t, idx.Delete(ctx, []string{"doc-1"}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

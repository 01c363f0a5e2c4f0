package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

func newTestMetadataStore(t *testing.T) *MetadataStore {
	t.Helper()
	s, err := NewMetadataStore("") // in-memory
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMetadataStore_CollectionRegistry(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	info := CollectionInfo{Name: "slack_QA", Mode: ModeNameHybrid, Model: "static", Dimensions: 768}
	require.NoError(t, s.RegisterCollection(ctx, info))

	got, err := s.GetCollection(ctx, "slack_QA")
	require.NoError(t, err)
	assert.Equal(t, ModeNameHybrid, got.Mode)
	assert.Equal(t, 768, got.Dimensions)

	// Duplicate names are rejected
	err = s.RegisterCollection(ctx, info)
	require.Error(t, err)
}

func TestMetadataStore_UnknownCollection(t *testing.T) {
	s := newTestMetadataStore(t)

	_, err := s.GetCollection(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeCollectionNotFound, sferrors.GetCode(err))
	assert.True(t, sferrors.IsFatal(err))
}

func TestMetadataStore_DocumentRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	docs := []*Document{
		{
			ID:         "doc-1",
			Channel:    "course-help",
			ThreadTS:   "1700000000.000100",
			AskedBy:    "U001",
			AnsweredBy: "U002",
			Question:   "How do I install Kafka?",
			Answer:     "Download the tarball.",
			Sparse:     map[string]float32{"kafka": 2.5, "install": 1.1},
		},
		{
			ID:       "doc-2",
			Question: "Where is the zoom link?",
			Answer:   "Pinned in the channel.",
		},
	}
	require.NoError(t, s.SaveDocuments(ctx, "slack_QA", docs))

	// Order follows the requested IDs, missing IDs are skipped
	got, err := s.GetDocuments(ctx, "slack_QA", []string{"doc-2", "missing", "doc-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-2", got[0].ID)
	assert.Equal(t, "doc-1", got[1].ID)
	assert.Equal(t, "course-help", got[1].Channel)
	assert.InDelta(t, 2.5, float64(got[1].Sparse["kafka"]), 0.0001)
	assert.Nil(t, got[0].Sparse)

	n, err := s.CountDocuments(ctx, "slack_QA")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := s.HasDocument(ctx, "slack_QA", "doc-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasDocument(ctx, "slack_QA", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetadataStore_UpsertIsIdempotent(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := &Document{ID: "doc-1", Question: "Q", Answer: "A"}
	require.NoError(t, s.SaveDocuments(ctx, "c", []*Document{doc}))
	require.NoError(t, s.SaveDocuments(ctx, "c", []*Document{doc}))

	n, err := s.CountDocuments(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetadataStore_CollectionsAreIsolated(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, "a", []*Document{{ID: "doc-1", Question: "Q", Answer: "A"}}))

	n, err := s.CountDocuments(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMetadataStore_StateKV(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	v, err := s.GetState(ctx, "c", "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetState(ctx, "c", StateKeySparseVocabulary, `{"doc_count":3}`))
	require.NoError(t, s.SetState(ctx, "c", StateKeySparseVocabulary, `{"doc_count":4}`))

	v, err = s.GetState(ctx, "c", StateKeySparseVocabulary)
	require.NoError(t, err)
	assert.Equal(t, `{"doc_count":4}`, v)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

func newTestCollection(t *testing.T, mode string, dims int) (*Collection, *MetadataStore, string) {
	t.Helper()
	dataDir := t.TempDir()
	meta := newTestMetadataStore(t)

	c, err := CreateCollection(context.Background(), meta, dataDir, CollectionInfo{
		Name:       "slack_QA",
		Mode:       mode,
		Model:      "static",
		Dimensions: dims,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, meta, dataDir
}

func hybridDoc(id, question, answer string, dense []float32) *Document {
	return &Document{
		ID:       id,
		Question: question,
		Answer:   answer,
		Dense:    dense,
	}
}

func TestCollection_HybridUpsertAndSearchBoth(t *testing.T) {
	c, _, _ := newTestCollection(t, ModeNameHybrid, 4)
	ctx := context.Background()

	docs := []*Document{
		hybridDoc("doc-kafka", "How do I install Kafka?", "Download the tarball.", []float32{1, 0, 0, 0}),
		hybridDoc("doc-zoom", "Where is the zoom link?", "Pinned in the channel.", []float32{0, 1, 0, 0}),
	}
	require.NoError(t, c.Upsert(ctx, docs))

	dense, err := c.SearchDense(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, dense)
	assert.Equal(t, "doc-kafka", dense[0].DocID)
	assert.Equal(t, SourceDense, dense[0].Source)

	sparse, err := c.SearchSparse(ctx, "install kafka", 2)
	require.NoError(t, err)
	require.NotEmpty(t, sparse)
	assert.Equal(t, "doc-kafka", sparse[0].DocID)
	assert.Equal(t, SourceSparse, sparse[0].Source)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCollection_SparseModeRejectsDenseSearch(t *testing.T) {
	c, _, _ := newTestCollection(t, ModeNameSparse, 0)

	_, err := c.SearchDense(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeUnsupportedMode, sferrors.GetCode(err))
}

func TestCollection_DenseModeRejectsSparseSearch(t *testing.T) {
	c, _, _ := newTestCollection(t, ModeNameDense, 4)

	_, err := c.SearchSparse(context.Background(), "kafka", 5)
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeUnsupportedMode, sferrors.GetCode(err))
}

func TestCollection_QueryDimensionMismatchIsFatal(t *testing.T) {
	c, _, _ := newTestCollection(t, ModeNameHybrid, 4)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []*Document{
		hybridDoc("doc-1", "Q", "A", []float32{1, 0, 0, 0}),
	}))

	_, err := c.SearchDense(ctx, []float32{1, 0}, 5)
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeDimensionMismatch, sferrors.GetCode(err))
	assert.True(t, sferrors.IsFatal(err))
}

func TestCollection_UpsertRejectsWrongDimensions(t *testing.T) {
	c, _, _ := newTestCollection(t, ModeNameHybrid, 4)

	err := c.Upsert(context.Background(), []*Document{
		hybridDoc("doc-1", "Q", "A", []float32{1, 0}),
	})
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeDimensionMismatch, sferrors.GetCode(err))
}

func TestCollection_StopWordOnlyQueryMatchesNothing(t *testing.T) {
	c, _, _ := newTestCollection(t, ModeNameHybrid, 4)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []*Document{
		hybridDoc("doc-kafka", "How do I install Kafka?", "Download the tarball.", []float32{1, 0, 0, 0}),
	}))

	hits, err := c.SearchSparse(ctx, "how do the that", 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "a query of nothing but stop words has no searchable terms")
}

func TestCollection_DeleteRemovesEverywhere(t *testing.T) {
	c, _, _ := newTestCollection(t, ModeNameHybrid, 4)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []*Document{
		hybridDoc("doc-kafka", "How do I install Kafka?", "Download the tarball.", []float32{1, 0, 0, 0}),
		hybridDoc("doc-zoom", "Where is the zoom link?", "Pinned in the channel.", []float32{0, 1, 0, 0}),
	}))

	require.NoError(t, c.Delete(ctx, []string{"doc-kafka"}))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := c.Contains(ctx, "doc-kafka")
	require.NoError(t, err)
	assert.False(t, ok)

	dense, err := c.SearchDense(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	for _, h := range dense {
		assert.NotEqual(t, "doc-kafka", h.DocID, "deleted document must not surface in vector search")
	}

	sparse, err := c.SearchSparse(ctx, "install kafka", 2)
	require.NoError(t, err)
	for _, h := range sparse {
		assert.NotEqual(t, "doc-kafka", h.DocID, "deleted document must not surface in keyword search")
	}

	// Deleting an unknown ID is a no-op.
	require.NoError(t, c.Delete(ctx, []string{"doc-missing"}))
}

func TestCollection_ReopenRejectsChangedDimensions(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	meta := newTestMetadataStore(t)

	info := CollectionInfo{Name: "slack_QA", Mode: ModeNameHybrid, Model: "static", Dimensions: 4}
	c, err := CreateCollection(ctx, meta, dataDir, info)
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, []*Document{
		hybridDoc("doc-kafka", "How do I install Kafka?", "Download the tarball.", []float32{1, 0, 0, 0}),
	}))
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Close())

	// Opening against a different dimensionality must fail up front
	// instead of serving garbage neighbors.
	info.Dimensions = 8
	_, err = assembleCollection(ctx, meta, dataDir, info)
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeDimensionMismatch, sferrors.GetCode(err))
}

func TestSortHits_EqualScoresKeepBackendOrder(t *testing.T) {
	hits := []RankedHit{
		{DocID: "doc-z", Score: 0.5},
		{DocID: "doc-a", Score: 0.5},
		{DocID: "doc-m", Score: 0.9},
	}
	sortHits(hits)

	assert.Equal(t, "doc-m", hits[0].DocID)
	assert.Equal(t, "doc-z", hits[1].DocID, "equal scores keep their incoming order")
	assert.Equal(t, "doc-a", hits[2].DocID)
}

func TestCollection_OpenMissingCollection(t *testing.T) {
	meta := newTestMetadataStore(t)

	_, err := OpenCollection(context.Background(), meta, t.TempDir(), "missing")
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeCollectionNotFound, sferrors.GetCode(err))
}

func TestCollection_CreateRejectsUnknownMode(t *testing.T) {
	meta := newTestMetadataStore(t)

	_, err := CreateCollection(context.Background(), meta, t.TempDir(), CollectionInfo{
		Name: "c", Mode: "fuzzy", Dimensions: 4,
	})
	require.Error(t, err)
	assert.Equal(t, sferrors.ErrCodeUnsupportedMode, sferrors.GetCode(err))
}

func TestCollection_FlushAndReopen(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	meta := newTestMetadataStore(t)

	c, err := CreateCollection(ctx, meta, dataDir, CollectionInfo{
		Name: "slack_QA", Mode: ModeNameHybrid, Model: "static", Dimensions: 4,
	})
	require.NoError(t, err)

	require.NoError(t, c.Upsert(ctx, []*Document{
		hybridDoc("doc-kafka", "How do I install Kafka?", "Download the tarball.", []float32{1, 0, 0, 0}),
	}))
	c.SparseEncoder().Observe("How do I install Kafka?\nDownload the tarball.")
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Close())

	reopened, err := OpenCollection(ctx, meta, dataDir, "slack_QA")
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	dense, err := reopened.SearchDense(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, dense, 1)
	assert.Equal(t, "doc-kafka", dense[0].DocID)

	sparse, err := reopened.SearchSparse(ctx, "kafka", 1)
	require.NoError(t, err)
	require.Len(t, sparse, 1)

	assert.Equal(t, 1, reopened.SparseEncoder().Vocabulary().DocCount,
		"sparse vocabulary must survive reopen")

	ok, err := reopened.Contains(ctx, "doc-kafka")
	require.NoError(t, err)
	assert.True(t, ok)
}

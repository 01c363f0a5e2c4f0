package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestStaticEmbedder_Embed_ReturnsConfiguredDimensions(t *testing.T) {
	// Given: static embedder with 384 dimensions
	embedder := NewStaticEmbedder(384)
	defer func() { _ = embedder.Close() }()

	// When: I embed a question
	embedding, err := embedder.Embed(context.Background(), "how do I install kafka on windows?")

	// Then: a 384-dimension vector is returned
	require.NoError(t, err)
	assert.Len(t, embedding, 384)
}

func TestStaticEmbedder_Embed_VectorIsNormalized(t *testing.T) {
	embedder := NewStaticEmbedder(DefaultDimensions)
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "where can I find the homework submission link?")
	require.NoError(t, err)

	magnitude := vectorMagnitude(embedding)
	assert.InDelta(t, 1.0, magnitude, 0.001, "vector should be normalized to unit length")
}

func TestStaticEmbedder_Embed_IsDeterministic(t *testing.T) {
	embedder := NewStaticEmbedder(DefaultDimensions)
	defer func() { _ = embedder.Close() }()

	text := "can I still join the course after the start date?"

	emb1, err1 := embedder.Embed(context.Background(), text)
	emb2, err2 := embedder.Embed(context.Background(), text)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2, "same input must produce identical vectors")
}

func TestStaticEmbedder_Embed_EmptyTextFails(t *testing.T) {
	embedder := NewStaticEmbedder(DefaultDimensions)
	defer func() { _ = embedder.Close() }()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := embedder.Embed(context.Background(), text)
		require.Error(t, err, "input %q", text)
		assert.Equal(t, sferrors.ErrCodeEmbeddingFailed, sferrors.GetCode(err))
	}
}

func TestStaticEmbedder_Embed_DifferentTextsDiffer(t *testing.T) {
	embedder := NewStaticEmbedder(DefaultDimensions)
	defer func() { _ = embedder.Close() }()

	emb1, err := embedder.Embed(context.Background(), "how do I run postgres in docker?")
	require.NoError(t, err)
	emb2, err := embedder.Embed(context.Background(), "when is homework 3 due?")
	require.NoError(t, err)

	assert.NotEqual(t, emb1, emb2)
}

func TestStaticEmbedder_EmbedBatch_PreservesOrder(t *testing.T) {
	embedder := NewStaticEmbedder(DefaultDimensions)
	defer func() { _ = embedder.Close() }()

	texts := []string{
		"how do I install kafka?",
		"where is the zoom link?",
		"can I submit the project late?",
	}

	batch, err := embedder.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch[%d] must match single embedding", i)
	}
}

func TestStaticEmbedder_Closed_RejectsEmbed(t *testing.T) {
	embedder := NewStaticEmbedder(DefaultDimensions)
	require.NoError(t, embedder.Close())

	_, err := embedder.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.False(t, embedder.Available(context.Background()))
}

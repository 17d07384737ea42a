package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProviderDeterministic(t *testing.T) {
	p := NewHashProvider(64)
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "connection refused by host")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "connection refused by host")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashProviderNormalized(t *testing.T) {
	p := NewHashProvider(64)

	vec, err := p.EmbedQuery(context.Background(), "some error text")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-6)
}

func TestHashProviderTokenOverlapCorrelates(t *testing.T) {
	p := NewHashProvider(256)
	ctx := context.Background()

	base, err := p.EmbedQuery(ctx, "connection refused by database host")
	require.NoError(t, err)
	near, err := p.EmbedQuery(ctx, "connection refused by database server")
	require.NoError(t, err)
	far, err := p.EmbedQuery(ctx, "index out of range")
	require.NoError(t, err)

	assert.Greater(t, cosine(base, near), cosine(base, far))
}

func TestHashProviderCaseInsensitive(t *testing.T) {
	p := NewHashProvider(64)
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "Connection Refused")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "connection refused")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashProviderEmptyInput(t *testing.T) {
	p := NewHashProvider(64)
	ctx := context.Background()

	_, err := p.EmbedQuery(ctx, "")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(ctx, nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestHashProviderEmbedDocuments(t *testing.T) {
	p := NewHashProvider(64)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"first text", "second text"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestHashProviderDimensionFallback(t *testing.T) {
	p := NewHashProvider(0)
	assert.Equal(t, DefaultHashDimension, p.Dimension())
	assert.NoError(t, p.Close())
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

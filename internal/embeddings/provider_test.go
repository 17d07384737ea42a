package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderHash(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "hash", Dimension: 128})
	require.NoError(t, err)
	assert.Equal(t, 128, p.Dimension())
}

func TestNewProviderTEI(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.IsType(t, &TEIProvider{}, p)

	_, err = NewProvider(ProviderConfig{Provider: "tei"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "openai"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

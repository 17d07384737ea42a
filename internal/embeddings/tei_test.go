package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTEIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestTEIProviderRequiresBaseURL(t *testing.T) {
	_, err := NewTEIProvider(TEIConfig{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTEIEmbedDocuments(t *testing.T) {
	srv := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)

		inputs, ok := req.Inputs.([]interface{})
		require.True(t, ok)
		vectors := make([][]float32, len(inputs))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 1}
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0, 1}, vecs[0])
	assert.Equal(t, []float32{1, 1}, vecs[1])
}

func TestTEIEmbedQuery(t *testing.T) {
	srv := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Single queries post a bare string, not a list.
		_, isString := req.Inputs.(string)
		assert.True(t, isString)
		require.NoError(t, json.NewEncoder(w).Encode([][]float32{{0.5, 0.5}}))
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "query text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}

func TestTEIEmptyInput(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.EmbedQuery(ctx, "")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(ctx, nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIServerError(t *testing.T) {
	srv := newTEIServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "503")
}

func TestTEIUnreachableServer(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestTEIDimensionDetection(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-large-en-v1.5", 1024},
		{"", 384},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, err := NewTEIProvider(TEIConfig{BaseURL: "http://localhost:8080", Model: tt.model})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Dimension())
		})
	}
}

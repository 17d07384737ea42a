package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONStorageRequiresDir(t *testing.T) {
	_, err := NewJSONStorage("")
	require.ErrorIs(t, err, ErrInvalidStorage)
}

func TestJSONStorageMissingFilesAreEmpty(t *testing.T) {
	s, err := NewJSONStorage(t.TempDir())
	require.NoError(t, err)

	patterns, err := s.LoadPatterns()
	require.NoError(t, err)
	assert.Empty(t, patterns)

	solutions, err := s.LoadSolutions()
	require.NoError(t, err)
	assert.Empty(t, solutions)
}

func TestJSONStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStorage(dir)
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	patterns := []ErrorPattern{{
		PatternType: "missing_key",
		Regex:       `KeyError: '(\w+)'`,
		Description: "Dictionary key lookup failed",
		Severity:    SeverityMedium,
		Category:    "runtime",
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
	require.NoError(t, s.SavePatterns(patterns))

	loaded, err := s.LoadPatterns()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, patterns[0].PatternType, loaded[0].PatternType)
	assert.True(t, loaded[0].CreatedAt.Equal(now))
}

func TestJSONStorageWritesRFC3339Timestamps(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStorage(dir)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.SavePatterns([]ErrorPattern{{
		PatternType: "p", Regex: "x", CreatedAt: now, UpdatedAt: now,
	}}))

	data, err := os.ReadFile(filepath.Join(dir, "patterns.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "2026-03-15T09:30:00Z")

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "p", raw[0]["pattern_type"])
}

func TestJSONStorageCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStorage(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "patterns.json"), []byte("{not json"), 0o600))

	_, err = s.LoadPatterns()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

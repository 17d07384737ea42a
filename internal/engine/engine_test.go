package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/errdex/internal/analyzer"
	"github.com/fyrsmithlabs/errdex/internal/embeddings"
	"github.com/fyrsmithlabs/errdex/internal/knowledge"
	"github.com/fyrsmithlabs/errdex/internal/logging"
	"github.com/fyrsmithlabs/errdex/internal/matcher"
	"github.com/fyrsmithlabs/errdex/internal/similarity"
)

func newTestEngine(t *testing.T) (*Engine, *knowledge.KnowledgeBase) {
	t.Helper()
	logger := logging.NewTestLogger().Logger

	storage, err := knowledge.NewJSONStorage(t.TempDir())
	require.NoError(t, err)
	kb, err := knowledge.NewKnowledgeBase(storage, logger)
	require.NoError(t, err)

	search, err := similarity.New(
		similarity.Config{CacheDir: t.TempDir(), MaxWorkers: 2},
		embeddings.NewHashProvider(embeddings.DefaultHashDimension),
		logger,
	)
	require.NoError(t, err)

	eng, err := New(context.Background(), kb, analyzer.New(logger), matcher.New(logger), search, logger)
	require.NoError(t, err)
	return eng, kb
}

func typeErrorPattern() *knowledge.ErrorPattern {
	return &knowledge.ErrorPattern{
		PatternType: "type_mismatch",
		Regex:       `TypeError: unsupported operand type\(s\)`,
		Description: "Operation applied to incompatible types",
		Severity:    knowledge.SeverityMedium,
		Category:    "runtime",
		Subcategory: "type_error",
		CommonCauses: []string{
			"mixing strings and integers",
			"missing type conversion",
		},
	}
}

func TestNewRequiresComponents(t *testing.T) {
	logger := logging.NewTestLogger().Logger
	storage, err := knowledge.NewJSONStorage(t.TempDir())
	require.NoError(t, err)
	kb, err := knowledge.NewKnowledgeBase(storage, logger)
	require.NoError(t, err)

	_, err = New(context.Background(), nil, analyzer.New(logger), matcher.New(logger), nil, logger)
	assert.Error(t, err)

	_, err = New(context.Background(), kb, nil, matcher.New(logger), nil, logger)
	assert.Error(t, err)

	// Similarity search is optional.
	eng, err := New(context.Background(), kb, analyzer.New(logger), matcher.New(logger), nil, logger)
	require.NoError(t, err)
	require.NotNil(t, eng)
}

func TestAddPatternRejectsMalformedRegex(t *testing.T) {
	eng, kb := newTestEngine(t)

	p := typeErrorPattern()
	p.Regex = `unclosed (group`
	err := eng.AddPattern(context.Background(), p)
	require.Error(t, err)

	var malformed *knowledge.MalformedPatternError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "type_mismatch", malformed.PatternType)
	assert.Nil(t, kb.GetPattern("type_mismatch"))
}

func TestDiagnoseEmptyMessage(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Diagnose(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrEmptyErrorMessage)
}

func TestDiagnoseHighConfidenceSkipsSemanticSearch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.AddPattern(ctx, typeErrorPattern()))

	sol := &knowledge.ErrorSolution{
		PatternType: "type_mismatch",
		Description: "Convert operands to a common type",
		Steps:       []string{"cast the integer to a string"},
	}
	require.NoError(t, eng.AddSolution(ctx, sol))
	assert.NotEmpty(t, sol.SolutionID)

	// Message classifies as runtime/medium/type_error, agreeing with the
	// pattern on all three dimensions.
	d, err := eng.Diagnose(ctx, `TypeError: unsupported operand type(s) for +: 'int' and 'str'`, nil)
	require.NoError(t, err)

	require.Len(t, d.Matches, 1)
	assert.Equal(t, "type_mismatch", d.Matches[0].PatternID)
	assert.Equal(t, 1.0, d.Matches[0].MatchScore)
	assert.Greater(t, d.Matches[0].ContextSimilarity, 0.8)
	assert.Empty(t, d.Related)
	require.Len(t, d.Solutions, 1)
	assert.Equal(t, sol.SolutionID, d.Solutions[0].SolutionID)

	assert.Equal(t, "runtime", d.Context.Category)
	assert.Equal(t, "type_error", d.Context.Subcategory)
}

func TestDiagnoseFallsBackToSemanticSearch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.AddPattern(ctx, typeErrorPattern()))

	// No exact regex hit; semantic search should surface the pattern.
	d, err := eng.Diagnose(ctx, "TypeError: incompatible operand kinds in arithmetic", nil)
	require.NoError(t, err)

	assert.Empty(t, d.Matches)
	assert.Empty(t, d.Solutions)
	require.NotEmpty(t, d.Related)
	assert.Equal(t, "type_mismatch", d.Related[0].ItemID)
}

func TestDiagnoseWithoutSearchDegrades(t *testing.T) {
	logger := logging.NewTestLogger().Logger
	storage, err := knowledge.NewJSONStorage(t.TempDir())
	require.NoError(t, err)
	kb, err := knowledge.NewKnowledgeBase(storage, logger)
	require.NoError(t, err)
	eng, err := New(context.Background(), kb, analyzer.New(logger), matcher.New(logger), nil, logger)
	require.NoError(t, err)

	d, err := eng.Diagnose(context.Background(), "KeyError: 'user_id'", nil)
	require.NoError(t, err)
	assert.Empty(t, d.Matches)
	assert.Empty(t, d.Related)
	assert.Equal(t, "runtime", d.Context.Category)
}

func TestRemovePattern(t *testing.T) {
	eng, kb := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.AddPattern(ctx, typeErrorPattern()))
	assert.True(t, eng.RemovePattern(ctx, "type_mismatch"))
	assert.False(t, eng.RemovePattern(ctx, "type_mismatch"))
	assert.Nil(t, kb.GetPattern("type_mismatch"))

	d, err := eng.Diagnose(ctx, `TypeError: unsupported operand type(s) for +: 'int' and 'str'`, nil)
	require.NoError(t, err)
	assert.Empty(t, d.Matches)
}

func TestNewSeedsFromStoredCatalog(t *testing.T) {
	logger := logging.NewTestLogger().Logger
	dataDir := t.TempDir()
	cacheDir := t.TempDir()
	ctx := context.Background()

	newEngine := func() *Engine {
		storage, err := knowledge.NewJSONStorage(dataDir)
		require.NoError(t, err)
		kb, err := knowledge.NewKnowledgeBase(storage, logger)
		require.NoError(t, err)
		search, err := similarity.New(
			similarity.Config{CacheDir: cacheDir, MaxWorkers: 2},
			embeddings.NewHashProvider(embeddings.DefaultHashDimension),
			logger,
		)
		require.NoError(t, err)
		eng, err := New(ctx, kb, analyzer.New(logger), matcher.New(logger), search, logger)
		require.NoError(t, err)
		return eng
	}

	first := newEngine()
	require.NoError(t, first.AddPattern(ctx, typeErrorPattern()))

	// A fresh engine over the same data dir matches without re-adding.
	second := newEngine()
	d, err := second.Diagnose(ctx, `TypeError: unsupported operand type(s) for +: 'int' and 'str'`, nil)
	require.NoError(t, err)
	require.Len(t, d.Matches, 1)
	assert.Equal(t, "type_mismatch", d.Matches[0].PatternID)
}

func TestSearch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.AddPattern(ctx, typeErrorPattern()))
	sol := &knowledge.ErrorSolution{
		PatternType: "type_mismatch",
		Description: "Convert operands to a common type",
	}
	require.NoError(t, eng.AddSolution(ctx, sol))

	results, err := eng.Search(ctx, "incompatible types in operation", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Empty query returns an empty slice, not an error.
	results, err = eng.Search(ctx, "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStatistics(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.AddPattern(ctx, typeErrorPattern()))

	stats := eng.Statistics()
	assert.Equal(t, 1, stats.Knowledge.TotalPatterns)
	require.NotNil(t, stats.Search)
	assert.Equal(t, 1, stats.Search.TotalPatterns)
}

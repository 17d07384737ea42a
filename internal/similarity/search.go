package similarity

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/errdex/internal/embeddings"
)

const instrumentationName = "github.com/fyrsmithlabs/errdex/internal/similarity"

// Item kinds reported in SearchResult.ItemType.
const (
	ItemPattern  = "pattern"
	ItemSolution = "solution"
)

// SearchResult is one ranked catalog item.
type SearchResult struct {
	// ItemID is the pattern type or solution ID.
	ItemID string `json:"item_id"`

	// ItemType is "pattern" or "solution".
	ItemType string `json:"item_type"`

	// SimilarityScore is the final blended score in [0,1].
	SimilarityScore float64 `json:"similarity_score"`

	// SemanticScore is the raw cosine similarity component.
	SemanticScore float64 `json:"semantic_score"`

	// FuzzyScore is the normalized edit-distance component.
	FuzzyScore float64 `json:"fuzzy_score"`

	// ContextSimilarity is the tag-overlap component. In pooled Search it
	// is reported but not blended into SimilarityScore (see package doc);
	// FindSimilar* does blend it.
	ContextSimilarity float64 `json:"context_similarity"`

	// Text is the raw indexed text of the item.
	Text string `json:"text"`
}

// SearchOptions configures a pooled Search call.
type SearchOptions struct {
	// TopK caps the result count. Default 5.
	TopK int
	// SearchPatterns / SearchSolutions select the candidate pools.
	SearchPatterns  bool
	SearchSolutions bool
	// UseFuzzy enables the edit-distance component.
	UseFuzzy bool
	// UseContext enables the tag-overlap component.
	UseContext bool
	// ContextWeight is the blend weight slot used when both UseFuzzy and
	// UseContext are set. Default 0.3.
	ContextWeight float64
	// QueryContexts are the tags the query carries, compared against each
	// item's stored tags.
	QueryContexts []string
}

// DefaultSearchOptions enables both pools and both extra signals.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		TopK:            5,
		SearchPatterns:  true,
		SearchSolutions: true,
		UseFuzzy:        true,
		UseContext:      true,
		ContextWeight:   0.3,
	}
}

// SimilarOptions configures a FindSimilar* call.
type SimilarOptions struct {
	TopK       int
	UseFuzzy   bool
	UseContext bool
}

// DefaultSimilarOptions enables both extra signals.
func DefaultSimilarOptions() SimilarOptions {
	return SimilarOptions{TopK: 5, UseFuzzy: true, UseContext: true}
}

// Config configures the Search engine.
type Config struct {
	// CacheDir is where the embedding caches persist. It must be writable:
	// an unwritable directory fails construction rather than letting every
	// later flush silently fail.
	CacheDir string

	// MaxWorkers bounds the scoring fan-out. Default 4.
	MaxWorkers int
}

// Statistics summarizes the similarity index.
type Statistics struct {
	TotalPatterns        int     `json:"total_patterns"`
	TotalSolutions       int     `json:"total_solutions"`
	EmbeddingDimension   int     `json:"embedding_dimension"`
	AvgPatternContexts   float64 `json:"avg_pattern_contexts"`
	AvgSolutionContexts  float64 `json:"avg_solution_contexts"`
	PatternsWithContext  int     `json:"patterns_with_context"`
	SolutionsWithContext int     `json:"solutions_with_context"`
}

// Search is the hybrid ranking engine: semantic embedding plus fuzzy string
// plus tag-context similarity over the catalog, backed by two persisted
// embedding caches.
//
// Reads (Search, FindSimilar*) may run concurrently. Writes (AddPattern,
// AddSolution, Remove*) rewrite the cache files in full with no file lock
// and must be serialized by the caller when more than one writer exists.
type Search struct {
	embedder   embeddings.Provider
	logger     *zap.Logger
	tracer     trace.Tracer
	cacheDir   string
	maxWorkers int

	mu        sync.RWMutex
	patterns  *index
	solutions *index
}

// New builds a Search engine, creating the cache directory and reloading
// both embedding caches. No query is served before this load completes.
func New(cfg Config, embedder embeddings.Provider, logger *zap.Logger) (*Search, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", cfg.CacheDir, err)
	}
	if err := probeWritable(cfg.CacheDir); err != nil {
		return nil, err
	}

	patterns, err := loadCache(cachePath(cfg.CacheDir, patternCacheFile))
	if err != nil {
		return nil, err
	}
	solutions, err := loadCache(cachePath(cfg.CacheDir, solutionCacheFile))
	if err != nil {
		return nil, err
	}

	logger.Info("similarity index loaded",
		zap.String("cache_dir", cfg.CacheDir),
		zap.Int("patterns", len(patterns.embeddings)),
		zap.Int("solutions", len(solutions.embeddings)),
		zap.Int("max_workers", cfg.MaxWorkers),
	)

	return &Search{
		embedder:   embedder,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		cacheDir:   cfg.CacheDir,
		maxWorkers: cfg.MaxWorkers,
		patterns:   patterns,
		solutions:  solutions,
	}, nil
}

// AddPattern embeds the text and indexes it under the pattern ID, then
// flushes both cache files. Repeated adds for one ID union their contexts.
func (s *Search) AddPattern(ctx context.Context, id, text string, contexts []string) error {
	return s.add(ctx, s.patterns, id, text, contexts)
}

// AddSolution embeds the text and indexes it under the solution ID.
func (s *Search) AddSolution(ctx context.Context, id, text string, contexts []string) error {
	return s.add(ctx, s.solutions, id, text, contexts)
}

func (s *Search) add(ctx context.Context, ix *index, id, text string, contexts []string) error {
	ctx, span := s.tracer.Start(ctx, "similarity.add")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", id))

	if id == "" || text == "" {
		return fmt.Errorf("%w: id and text are required", embeddings.ErrEmptyInput)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("embedding %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ix.put(id, text, vectors[0], contexts)
	return s.flushLocked()
}

// RemovePattern evicts a pattern from the index and flushes. Removing an
// absent ID is a no-op.
func (s *Search) RemovePattern(id string) error {
	return s.remove(s.patterns, id)
}

// RemoveSolution evicts a solution from the index and flushes.
func (s *Search) RemoveSolution(id string) error {
	return s.remove(s.solutions, id)
}

func (s *Search) remove(ix *index, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ix.remove(id) {
		return nil
	}
	return s.flushLocked()
}

// flushLocked rewrites both cache files. Caller holds s.mu.
func (s *Search) flushLocked() error {
	if err := saveCache(cachePath(s.cacheDir, patternCacheFile), s.patterns); err != nil {
		return err
	}
	return saveCache(cachePath(s.cacheDir, solutionCacheFile), s.solutions)
}

// PatternText returns the indexed text for a pattern ID ("" when absent).
func (s *Search) PatternText(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patterns.texts[id]
}

// PatternContexts returns the stored context tags for a pattern ID.
func (s *Search) PatternContexts(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedTags(s.patterns.contexts[id])
}

// SolutionText returns the indexed text for a solution ID ("" when absent).
func (s *Search) SolutionText(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.solutions.texts[id]
}

// candidate is one item to score in the fan-out.
type candidate struct {
	id       string
	kind     string
	text     string
	vector   []float32
	contexts map[string]struct{}
}

// Search ranks catalog items against a free-text query. The query is
// embedded once; candidates are scored in parallel batches across a bounded
// worker pool, sorted by blended score descending and truncated to TopK.
// An empty query returns an empty slice without touching the embedder.
func (s *Search) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "similarity.search")
	defer span.End()

	if query == "" {
		return []SearchResult{}, nil
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.ContextWeight == 0 {
		opts.ContextWeight = 0.3
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryTags := tagSet(opts.QueryContexts)

	s.mu.RLock()
	var candidates []candidate
	if opts.SearchPatterns {
		candidates = appendCandidates(candidates, s.patterns, ItemPattern)
	}
	if opts.SearchSolutions {
		candidates = appendCandidates(candidates, s.solutions, ItemSolution)
	}
	s.mu.RUnlock()

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, len(candidates))
	score := func(c candidate) SearchResult {
		r := SearchResult{
			ItemID:        c.id,
			ItemType:      c.kind,
			SemanticScore: Cosine(queryVec, c.vector),
			Text:          c.text,
		}
		if opts.UseFuzzy {
			r.FuzzyScore = FuzzyRatio(query, c.text)
		}
		if opts.UseContext {
			r.ContextSimilarity = ContextOverlap(queryTags, c.contexts)
		}
		switch {
		case opts.UseFuzzy && opts.UseContext:
			// Context similarity is computed and reported, but only its
			// weight slot enters the blend; fuzzy borrows it. Kept this way
			// for score compatibility with prior releases.
			r.SimilarityScore = r.SemanticScore*(1-opts.ContextWeight) + r.FuzzyScore*opts.ContextWeight
		case opts.UseFuzzy:
			r.SimilarityScore = r.SemanticScore*0.7 + r.FuzzyScore*0.3
		default:
			r.SimilarityScore = r.SemanticScore
		}
		return r
	}

	if err := s.scoreParallel(ctx, candidates, results, score); err != nil {
		span.RecordError(err)
		return nil, err
	}

	sortResults(results)
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	s.logger.Debug("similarity search completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// FindSimilarPatterns ranks every other pattern against the seed pattern.
// An unknown seed yields an empty slice, not an error.
func (s *Search) FindSimilarPatterns(ctx context.Context, id string, opts SimilarOptions) ([]SearchResult, error) {
	return s.findSimilar(ctx, s.patterns, ItemPattern, id, opts)
}

// FindSimilarSolutions ranks every other solution against the seed solution.
func (s *Search) FindSimilarSolutions(ctx context.Context, id string, opts SimilarOptions) ([]SearchResult, error) {
	return s.findSimilar(ctx, s.solutions, ItemSolution, id, opts)
}

func (s *Search) findSimilar(ctx context.Context, ix *index, kind, id string, opts SimilarOptions) ([]SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "similarity.find_similar")
	defer span.End()
	span.SetAttributes(attribute.String("seed_id", id))

	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	s.mu.RLock()
	seedVec, ok := ix.embeddings[id]
	if !ok {
		s.mu.RUnlock()
		return []SearchResult{}, nil
	}
	seedText := ix.texts[id]
	seedTags := ix.contexts[id]

	var candidates []candidate
	for otherID, vec := range ix.embeddings {
		if otherID == id {
			continue
		}
		candidates = append(candidates, candidate{
			id:       otherID,
			kind:     kind,
			text:     ix.texts[otherID],
			vector:   vec,
			contexts: ix.contexts[otherID],
		})
	}
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, len(candidates))
	score := func(c candidate) SearchResult {
		r := SearchResult{
			ItemID:        c.id,
			ItemType:      kind,
			SemanticScore: Cosine(seedVec, c.vector),
			Text:          c.text,
		}
		if opts.UseFuzzy {
			r.FuzzyScore = FuzzyRatio(seedText, c.text)
		}
		if opts.UseContext {
			r.ContextSimilarity = ContextOverlap(seedTags, c.contexts)
		}
		switch {
		case opts.UseFuzzy && opts.UseContext:
			r.SimilarityScore = r.SemanticScore*0.5 + r.FuzzyScore*0.3 + r.ContextSimilarity*0.2
		case opts.UseFuzzy:
			r.SimilarityScore = r.SemanticScore*0.7 + r.FuzzyScore*0.3
		default:
			r.SimilarityScore = r.SemanticScore
		}
		return r
	}

	if err := s.scoreParallel(ctx, candidates, results, score); err != nil {
		span.RecordError(err)
		return nil, err
	}

	sortResults(results)
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// scoreParallel fans the scoring out over batches sized to keep worker
// utilization high without excessive scheduling overhead. Each batch writes
// a disjoint slice range, so no locking is needed. Scoring is CPU-bound
// with no blocking I/O once embeddings are loaded.
func (s *Search) scoreParallel(ctx context.Context, candidates []candidate, results []SearchResult, score func(candidate) SearchResult) error {
	batchSize := len(candidates) / (s.maxWorkers * 4)
	if batchSize < 1 {
		batchSize = 1
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				results[i] = score(candidates[i])
			}
			return nil
		})
	}
	return g.Wait()
}

// Statistics reports index totals and context-tag coverage.
func (s *Search) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{
		TotalPatterns:      len(s.patterns.embeddings),
		TotalSolutions:     len(s.solutions.embeddings),
		EmbeddingDimension: s.embedder.Dimension(),
	}
	stats.AvgPatternContexts, stats.PatternsWithContext = contextStats(s.patterns)
	stats.AvgSolutionContexts, stats.SolutionsWithContext = contextStats(s.solutions)

	if stats.EmbeddingDimension == 0 {
		// Fall back to a stored vector when the provider cannot report
		// (e.g. the non-CGO FastEmbed stub).
		for _, vec := range s.patterns.embeddings {
			stats.EmbeddingDimension = len(vec)
			break
		}
	}
	return stats
}

func contextStats(ix *index) (avg float64, withTags int) {
	if len(ix.embeddings) == 0 {
		return 0, 0
	}
	var total int
	for id := range ix.embeddings {
		n := len(ix.contexts[id])
		total += n
		if n > 0 {
			withTags++
		}
	}
	return float64(total) / float64(len(ix.embeddings)), withTags
}

func appendCandidates(dst []candidate, ix *index, kind string) []candidate {
	for id, vec := range ix.embeddings {
		dst = append(dst, candidate{
			id:       id,
			kind:     kind,
			text:     ix.texts[id],
			vector:   vec,
			contexts: ix.contexts[id],
		})
	}
	return dst
}

func sortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].ItemID < results[j].ItemID
	})
}

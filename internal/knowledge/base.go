package knowledge

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KnowledgeBase is the durable catalog of error patterns and solutions.
//
// All records live in memory; every mutation rewrites the backing store in
// full through the injected Storage. Reads may run concurrently; writes are
// serialized by an internal mutex, which gives single-writer discipline
// within one process. Two processes writing the same directory race.
type KnowledgeBase struct {
	mu      sync.RWMutex
	storage Storage
	logger  *zap.Logger

	patterns  map[string]ErrorPattern
	solutions map[string]ErrorSolution

	// Secondary indexes, rebuilt on load and updated incrementally on writes.
	byCategory map[string][]string
	bySeverity map[Severity][]string
	// byPattern maps pattern_type → solution IDs in insertion order. It is
	// derived solely from each solution's PatternType; a pattern's own
	// Solutions list is advisory metadata and never consulted.
	byPattern map[string][]string
}

// NewKnowledgeBase loads the catalog from storage and rebuilds indexes.
func NewKnowledgeBase(storage Storage, logger *zap.Logger) (*KnowledgeBase, error) {
	if storage == nil {
		return nil, ErrInvalidStorage
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	kb := &KnowledgeBase{
		storage:    storage,
		logger:     logger,
		patterns:   make(map[string]ErrorPattern),
		solutions:  make(map[string]ErrorSolution),
		byCategory: make(map[string][]string),
		bySeverity: make(map[Severity][]string),
		byPattern:  make(map[string][]string),
	}

	patterns, err := storage.LoadPatterns()
	if err != nil {
		return nil, err
	}
	solutions, err := storage.LoadSolutions()
	if err != nil {
		return nil, err
	}

	for _, p := range patterns {
		kb.patterns[p.PatternType] = p
		kb.indexPattern(p)
	}
	for _, s := range solutions {
		kb.solutions[s.SolutionID] = s
		kb.byPattern[s.PatternType] = append(kb.byPattern[s.PatternType], s.SolutionID)
	}

	logger.Info("knowledge base loaded",
		zap.Int("patterns", len(kb.patterns)),
		zap.Int("solutions", len(kb.solutions)),
	)

	return kb, nil
}

// AddPattern upserts a pattern by its PatternType and persists the catalog.
// The regex is validated here; an uncompilable pattern is rejected before it
// can fail at match time. Returns false instead of an error so callers can
// treat failure as "not stored" without unwinding. Timestamps are written
// back into the caller's struct.
func (kb *KnowledgeBase) AddPattern(p *ErrorPattern) bool {
	if p == nil {
		return false
	}
	if err := p.Validate(); err != nil {
		kb.logger.Warn("rejected pattern", zap.String("pattern_type", p.PatternType), zap.Error(err))
		return false
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	now := time.Now()
	if existing, ok := kb.patterns[p.PatternType]; ok {
		p.CreatedAt = existing.CreatedAt
		kb.unindexPattern(existing)
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	kb.patterns[p.PatternType] = *p
	kb.indexPattern(*p)

	if err := kb.persistPatterns(); err != nil {
		kb.logger.Error("failed to persist patterns", zap.String("pattern_type", p.PatternType), zap.Error(err))
		return false
	}

	kb.logger.Debug("pattern stored",
		zap.String("pattern_type", p.PatternType),
		zap.String("category", p.Category),
		zap.String("severity", string(p.Severity)),
	)
	return true
}

// AddSolution upserts a solution by its SolutionID and persists the catalog.
// An empty SolutionID gets a generated one, written back into the caller's
// struct along with timestamps.
func (kb *KnowledgeBase) AddSolution(s *ErrorSolution) bool {
	if s == nil {
		return false
	}
	if err := s.Validate(); err != nil {
		kb.logger.Warn("rejected solution", zap.String("solution_id", s.SolutionID), zap.Error(err))
		return false
	}
	if s.SolutionID == "" {
		s.SolutionID = "sol_" + uuid.New().String()
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	now := time.Now()
	if existing, ok := kb.solutions[s.SolutionID]; ok {
		s.CreatedAt = existing.CreatedAt
		kb.removeSolutionIndex(existing)
	} else if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	kb.solutions[s.SolutionID] = *s
	kb.byPattern[s.PatternType] = append(kb.byPattern[s.PatternType], s.SolutionID)

	if err := kb.persistSolutions(); err != nil {
		kb.logger.Error("failed to persist solutions", zap.String("solution_id", s.SolutionID), zap.Error(err))
		return false
	}

	kb.logger.Debug("solution stored",
		zap.String("solution_id", s.SolutionID),
		zap.String("pattern_type", s.PatternType),
	)
	return true
}

// RemovePattern deletes a pattern and persists. Removing an absent pattern
// is a no-op returning false.
func (kb *KnowledgeBase) RemovePattern(patternType string) bool {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	p, ok := kb.patterns[patternType]
	if !ok {
		return false
	}
	delete(kb.patterns, patternType)
	kb.unindexPattern(p)

	if err := kb.persistPatterns(); err != nil {
		kb.logger.Error("failed to persist patterns", zap.String("pattern_type", patternType), zap.Error(err))
		return false
	}
	return true
}

// GetPattern returns a copy of the pattern, or nil when absent.
// Absence is not an error.
func (kb *KnowledgeBase) GetPattern(patternType string) *ErrorPattern {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	p, ok := kb.patterns[patternType]
	if !ok {
		return nil
	}
	return &p
}

// GetSolution returns a copy of the solution, or nil when absent.
func (kb *KnowledgeBase) GetSolution(solutionID string) *ErrorSolution {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	s, ok := kb.solutions[solutionID]
	if !ok {
		return nil
	}
	return &s
}

// GetPatternSolutions returns the solutions registered for a pattern in
// insertion order. IDs that no longer resolve are silently skipped.
func (kb *KnowledgeBase) GetPatternSolutions(patternType string) []ErrorSolution {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	ids := kb.byPattern[patternType]
	solutions := make([]ErrorSolution, 0, len(ids))
	for _, id := range ids {
		if s, ok := kb.solutions[id]; ok {
			solutions = append(solutions, s)
		}
	}
	return solutions
}

// GetCategoryPatterns returns the pattern types indexed under a category.
func (kb *KnowledgeBase) GetCategoryPatterns(category string) []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]string(nil), kb.byCategory[category]...)
}

// GetSeverityPatterns returns the pattern types indexed under a severity.
func (kb *KnowledgeBase) GetSeverityPatterns(severity Severity) []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]string(nil), kb.bySeverity[severity]...)
}

// AllPatterns returns a copy of every pattern in the catalog.
func (kb *KnowledgeBase) AllPatterns() []ErrorPattern {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	patterns := make([]ErrorPattern, 0, len(kb.patterns))
	for _, p := range kb.patterns {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].PatternType < patterns[j].PatternType })
	return patterns
}

// AllSolutions returns a copy of every solution in the catalog.
func (kb *KnowledgeBase) AllSolutions() []ErrorSolution {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	solutions := make([]ErrorSolution, 0, len(kb.solutions))
	for _, s := range kb.solutions {
		solutions = append(solutions, s)
	}
	sort.Slice(solutions, func(i, j int) bool { return solutions[i].SolutionID < solutions[j].SolutionID })
	return solutions
}

// SearchPatterns scans pattern_type, description, examples and common causes
// for a case-insensitive substring. A pattern matching on several fields
// appears once. Order follows catalog iteration and is not guaranteed.
func (kb *KnowledgeBase) SearchPatterns(query string) []ErrorPattern {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	q := strings.ToLower(query)
	var results []ErrorPattern
	for _, p := range kb.patterns {
		if patternMatchesQuery(p, q) {
			results = append(results, p)
		}
	}
	return results
}

func patternMatchesQuery(p ErrorPattern, q string) bool {
	if strings.Contains(strings.ToLower(p.PatternType), q) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, ex := range p.Examples {
		if strings.Contains(strings.ToLower(ex), q) {
			return true
		}
	}
	for _, c := range p.CommonCauses {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

// Statistics reports catalog totals and index counts.
func (kb *KnowledgeBase) Statistics() Statistics {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	stats := Statistics{
		TotalPatterns:  len(kb.patterns),
		TotalSolutions: len(kb.solutions),
		ByCategory:     make(map[string]int, len(kb.byCategory)),
		BySeverity:     make(map[Severity]int, len(kb.bySeverity)),
		SolutionCounts: make(map[string]int, len(kb.patterns)),
	}
	for category, ids := range kb.byCategory {
		stats.ByCategory[category] = len(ids)
	}
	for severity, ids := range kb.bySeverity {
		stats.BySeverity[severity] = len(ids)
	}
	for patternType := range kb.patterns {
		stats.SolutionCounts[patternType] = len(kb.byPattern[patternType])
	}
	return stats
}

// Index maintenance. Callers hold kb.mu.

func (kb *KnowledgeBase) indexPattern(p ErrorPattern) {
	kb.byCategory[p.Category] = append(kb.byCategory[p.Category], p.PatternType)
	kb.bySeverity[p.Severity] = append(kb.bySeverity[p.Severity], p.PatternType)
}

func (kb *KnowledgeBase) unindexPattern(p ErrorPattern) {
	kb.byCategory[p.Category] = removeString(kb.byCategory[p.Category], p.PatternType)
	kb.bySeverity[p.Severity] = removeString(kb.bySeverity[p.Severity], p.PatternType)
}

func (kb *KnowledgeBase) removeSolutionIndex(s ErrorSolution) {
	kb.byPattern[s.PatternType] = removeString(kb.byPattern[s.PatternType], s.SolutionID)
}

func removeString(list []string, v string) []string {
	for i, item := range list {
		if item == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (kb *KnowledgeBase) persistPatterns() error {
	patterns := make([]ErrorPattern, 0, len(kb.patterns))
	for _, p := range kb.patterns {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].PatternType < patterns[j].PatternType })
	return kb.storage.SavePatterns(patterns)
}

func (kb *KnowledgeBase) persistSolutions() error {
	solutions := make([]ErrorSolution, 0, len(kb.solutions))
	for _, s := range kb.solutions {
		solutions = append(solutions, s)
	}
	sort.Slice(solutions, func(i, j int) bool { return solutions[i].SolutionID < solutions[j].SolutionID })
	return kb.storage.SaveSolutions(solutions)
}

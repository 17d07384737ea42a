// Package matcher classifies raw error text against the catalog's compiled
// regex patterns and ranks pattern-to-pattern similarity.
//
// The matcher mirrors catalog patterns into its own compiled-regex cache:
// AddPattern compiles eagerly so a malformed regex is rejected at
// registration time instead of failing during a match. A matched pattern is
// either relevant or it is not: MatchScore is always 1.0 and relevance
// nuance lives in ContextSimilarity, the agreement between the pattern's
// classification and the supplied context.
package matcher

import (
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errdex/internal/analyzer"
	"github.com/fyrsmithlabs/errdex/internal/knowledge"
)

// Result is one regex hit against an error message.
type Result struct {
	// PatternID is the matched pattern's type.
	PatternID string `json:"pattern_id"`

	// Pattern is a snapshot of the matched pattern at match time.
	Pattern knowledge.ErrorPattern `json:"pattern"`

	// MatchScore is 1.0 for every hit; misses are omitted, not scored zero.
	MatchScore float64 `json:"match_score"`

	// MatchedGroups holds the regex's named and positional captures.
	MatchedGroups map[string]string `json:"matched_groups,omitempty"`

	// ContextSimilarity is the fraction of {category, severity, subcategory}
	// that agree between the pattern and the supplied context, in [0,1].
	ContextSimilarity float64 `json:"context_similarity"`

	Timestamp time.Time `json:"timestamp"`
}

// SimilarPattern pairs a pattern type with its similarity to the seed.
type SimilarPattern struct {
	PatternID string  `json:"pattern_id"`
	Score     float64 `json:"score"`
}

// DefaultSimilarityThreshold is the cutoff for FindSimilarPatterns.
const DefaultSimilarityThreshold = 0.7

// Matcher holds patterns and their compiled regexes in two parallel maps
// kept consistent under one lock.
type Matcher struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	patterns map[string]knowledge.ErrorPattern
	compiled map[string]*regexp.Regexp
}

// New returns an empty Matcher.
func New(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		logger:   logger,
		patterns: make(map[string]knowledge.ErrorPattern),
		compiled: make(map[string]*regexp.Regexp),
	}
}

// AddPattern registers a pattern, compiling its regex. An uncompilable
// regex yields a *knowledge.MalformedPatternError and nothing is stored.
func (m *Matcher) AddPattern(p knowledge.ErrorPattern) error {
	re, err := regexp.Compile(p.Regex)
	if err != nil {
		return &knowledge.MalformedPatternError{PatternType: p.PatternType, Expr: p.Regex, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[p.PatternType] = p
	m.compiled[p.PatternType] = re
	return nil
}

// RemovePattern evicts a pattern and its compiled regex atomically.
func (m *Matcher) RemovePattern(patternType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patterns, patternType)
	delete(m.compiled, patternType)
}

// Len reports how many patterns are registered.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}

// Match runs every compiled pattern against the error message as a partial
// (substring) search. Hits are returned sorted by ContextSimilarity
// descending, then by pattern type for stable order; misses are omitted.
// A nil info yields ContextSimilarity 0 for every hit.
func (m *Matcher) Match(errorMessage string, info *analyzer.ContextInfo) []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var results []Result
	for id, re := range m.compiled {
		loc := re.FindStringSubmatchIndex(errorMessage)
		if loc == nil {
			continue
		}
		p := m.patterns[id]
		results = append(results, Result{
			PatternID:         id,
			Pattern:           p,
			MatchScore:        1.0,
			MatchedGroups:     captureGroups(re, errorMessage, loc),
			ContextSimilarity: contextSimilarity(p, info),
			Timestamp:         now,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ContextSimilarity != results[j].ContextSimilarity {
			return results[i].ContextSimilarity > results[j].ContextSimilarity
		}
		return results[i].PatternID < results[j].PatternID
	})

	m.logger.Debug("pattern match completed",
		zap.Int("candidates", len(m.compiled)),
		zap.Int("hits", len(results)),
	)
	return results
}

// FindSimilarPatterns ranks every other registered pattern against the seed:
// 0.3 for matching category, 0.3 for matching subcategory, 0.4 times the
// Jaccard overlap of common causes. Only pairs strictly above threshold are
// returned, sorted by score descending. The seed is excluded from its own
// results; an unknown seed yields an empty slice.
func (m *Matcher) FindSimilarPatterns(patternType string, threshold float64) []SimilarPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seed, ok := m.patterns[patternType]
	if !ok {
		return nil
	}

	var similar []SimilarPattern
	for id, other := range m.patterns {
		if id == patternType {
			continue
		}
		score := patternSimilarity(seed, other)
		if score > threshold {
			similar = append(similar, SimilarPattern{PatternID: id, Score: score})
		}
	}

	sort.Slice(similar, func(i, j int) bool {
		if similar[i].Score != similar[j].Score {
			return similar[i].Score > similar[j].Score
		}
		return similar[i].PatternID < similar[j].PatternID
	})
	return similar
}

func patternSimilarity(a, b knowledge.ErrorPattern) float64 {
	var score float64
	if a.Category == b.Category {
		score += 0.3
	}
	if a.Subcategory == b.Subcategory {
		score += 0.3
	}
	score += 0.4 * jaccard(a.CommonCauses, b.CommonCauses)
	return score
}

// jaccard computes intersection over union of two cause lists treated as
// sets. Two empty sets overlap fully.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}
	var intersection int
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// contextSimilarity is the fraction of the three classification fields on
// which pattern and context agree.
func contextSimilarity(p knowledge.ErrorPattern, info *analyzer.ContextInfo) float64 {
	if info == nil {
		return 0
	}
	var agree int
	if p.Category == info.Category {
		agree++
	}
	if string(p.Severity) == info.Severity {
		agree++
	}
	if p.Subcategory == info.Subcategory {
		agree++
	}
	return float64(agree) / 3.0
}

// captureGroups extracts named and positional captures from a match.
// Named groups use their names as keys; unnamed groups use their index.
func captureGroups(re *regexp.Regexp, text string, loc []int) map[string]string {
	names := re.SubexpNames()
	if len(names) <= 1 {
		return nil
	}
	groups := make(map[string]string, len(names)-1)
	for i := 1; i < len(names) && 2*i+1 < len(loc); i++ {
		start, end := loc[2*i], loc[2*i+1]
		if start < 0 {
			continue
		}
		key := names[i]
		if key == "" {
			key = "group_" + strconv.Itoa(i)
		}
		groups[key] = text[start:end]
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}

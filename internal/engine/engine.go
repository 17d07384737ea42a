// Package engine composes the analyzer, knowledge base, matcher and
// similarity search into a single diagnosis service.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/errdex/internal/analyzer"
	"github.com/fyrsmithlabs/errdex/internal/knowledge"
	"github.com/fyrsmithlabs/errdex/internal/matcher"
	"github.com/fyrsmithlabs/errdex/internal/similarity"
)

var tracer = otel.Tracer("errdex/engine")

// ErrEmptyErrorMessage is returned when Diagnose is called without an error message.
var ErrEmptyErrorMessage = errors.New("error message cannot be empty")

// ErrPatternRejected is returned when the knowledge base refuses a pattern.
var ErrPatternRejected = errors.New("pattern rejected by knowledge base")

// ErrSolutionRejected is returned when the knowledge base refuses a solution.
var ErrSolutionRejected = errors.New("solution rejected by knowledge base")

// highConfidenceContext short-circuits semantic discovery when an exact
// regex hit also agrees strongly with the analyzed context.
const highConfidenceContext = 0.8

// Diagnosis is the full output of a diagnosis pass.
type Diagnosis struct {
	// Context is the structured analysis of the error report.
	Context *analyzer.ContextInfo `json:"context"`

	// Matches are exact regex hits, best context agreement first.
	Matches []matcher.Result `json:"matches"`

	// Related are semantically similar catalog entries. Empty when an
	// exact match was confident enough or no embedder is configured.
	Related []similarity.SearchResult `json:"related"`

	// Solutions are the catalog solutions for the matched patterns,
	// best match's solutions first.
	Solutions []knowledge.ErrorSolution `json:"solutions"`
}

// Engine wires the pipeline together. The similarity search is optional;
// without it Diagnose falls back to exact matching only.
type Engine struct {
	analyzer *analyzer.Analyzer
	kb       *knowledge.KnowledgeBase
	matcher  *matcher.Matcher
	search   *similarity.Search
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New creates the engine and seeds the matcher and similarity index from
// the knowledge base. Patterns whose stored regex no longer compiles are
// skipped with a warning so one bad row cannot block startup.
func New(ctx context.Context, kb *knowledge.KnowledgeBase, an *analyzer.Analyzer, m *matcher.Matcher, search *similarity.Search, logger *zap.Logger) (*Engine, error) {
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	if an == nil {
		return nil, errors.New("analyzer is required")
	}
	if m == nil {
		return nil, errors.New("matcher is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	e := &Engine{
		analyzer: an,
		kb:       kb,
		matcher:  m,
		search:   search,
		logger:   logger,
		tracer:   tracer,
	}

	for _, p := range kb.AllPatterns() {
		if err := m.AddPattern(p); err != nil {
			logger.Warn("skipping stored pattern with invalid regex",
				zap.String("pattern_type", p.PatternType),
				zap.Error(err),
			)
			continue
		}
		e.indexPattern(ctx, p)
	}
	if search != nil {
		for _, s := range kb.AllSolutions() {
			e.indexSolution(ctx, s)
		}
	}

	return e, nil
}

// AddPattern validates, stores and indexes a pattern. Regex validation
// happens in the matcher first so the knowledge base never persists a
// pattern the matcher cannot compile.
func (e *Engine) AddPattern(ctx context.Context, p *knowledge.ErrorPattern) error {
	ctx, span := e.tracer.Start(ctx, "Engine.AddPattern")
	defer span.End()

	if p == nil {
		return errors.New("pattern cannot be nil")
	}
	if err := e.matcher.AddPattern(*p); err != nil {
		span.RecordError(err)
		return err
	}
	if !e.kb.AddPattern(p) {
		e.matcher.RemovePattern(p.PatternType)
		return fmt.Errorf("%w: %s", ErrPatternRejected, p.PatternType)
	}
	// kb stamped timestamps; refresh the matcher snapshot.
	if err := e.matcher.AddPattern(*p); err != nil {
		return err
	}
	e.indexPattern(ctx, *p)

	e.logger.Info("pattern added",
		zap.String("pattern_type", p.PatternType),
		zap.String("category", p.Category),
		zap.String("severity", string(p.Severity)),
	)
	return nil
}

// AddSolution stores and indexes a solution. A missing SolutionID is
// generated by the knowledge base and written back to s.
func (e *Engine) AddSolution(ctx context.Context, s *knowledge.ErrorSolution) error {
	ctx, span := e.tracer.Start(ctx, "Engine.AddSolution")
	defer span.End()

	if s == nil {
		return errors.New("solution cannot be nil")
	}
	if !e.kb.AddSolution(s) {
		return fmt.Errorf("%w: %s", ErrSolutionRejected, s.SolutionID)
	}
	e.indexSolution(ctx, *s)

	e.logger.Info("solution added",
		zap.String("solution_id", s.SolutionID),
		zap.String("pattern_type", s.PatternType),
	)
	return nil
}

// RemovePattern removes a pattern everywhere. Reports whether it existed.
func (e *Engine) RemovePattern(ctx context.Context, patternType string) bool {
	_, span := e.tracer.Start(ctx, "Engine.RemovePattern")
	defer span.End()

	removed := e.kb.RemovePattern(patternType)
	e.matcher.RemovePattern(patternType)
	if e.search != nil {
		if err := e.search.RemovePattern(patternType); err != nil {
			e.logger.Warn("failed to evict pattern embedding",
				zap.String("pattern_type", patternType),
				zap.Error(err),
			)
		}
	}
	return removed
}

// Diagnose analyzes an error report and assembles a diagnosis.
//
// The pipeline:
//  1. Analyze the message, stack trace, code and environment.
//  2. Match stored patterns against the message.
//  3. If the best match agrees strongly with the context, stop there.
//  4. Otherwise run semantic search over patterns and solutions.
//  5. Attach catalog solutions for every matched pattern.
//
// Component failures degrade the diagnosis instead of failing it; only an
// empty message is an error.
func (e *Engine) Diagnose(ctx context.Context, errorMsg string, req *analyzer.Request) (*Diagnosis, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Diagnose")
	defer span.End()

	if errorMsg == "" {
		return nil, ErrEmptyErrorMessage
	}

	info := e.analyzer.Analyze(errorMsg, req)
	matches := e.matcher.Match(errorMsg, info)

	related := []similarity.SearchResult{}
	confident := len(matches) > 0 && matches[0].ContextSimilarity > highConfidenceContext
	if confident {
		e.logger.Info("high-confidence pattern match",
			zap.String("pattern_type", matches[0].PatternID),
			zap.Float64("context_similarity", matches[0].ContextSimilarity),
		)
	} else if e.search != nil {
		opts := similarity.DefaultSearchOptions()
		opts.UseContext = true
		opts.QueryContexts = contextTags(info)
		results, err := e.search.Search(ctx, errorMsg, opts)
		if err != nil {
			span.RecordError(err)
			e.logger.Warn("semantic search failed", zap.Error(err))
		} else {
			related = results
		}
	}

	solutions := []knowledge.ErrorSolution{}
	for _, m := range matches {
		solutions = append(solutions, e.kb.GetPatternSolutions(m.PatternID)...)
	}

	e.logger.Info("diagnosis generated",
		zap.String("error_type", info.ErrorType),
		zap.Int("match_count", len(matches)),
		zap.Int("related_count", len(related)),
		zap.Int("solution_count", len(solutions)),
	)

	return &Diagnosis{
		Context:   info,
		Matches:   matches,
		Related:   related,
		Solutions: solutions,
	}, nil
}

// Search runs a pooled semantic search over patterns and solutions.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]similarity.SearchResult, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Search")
	defer span.End()

	if e.search == nil {
		return nil, errors.New("similarity search is not configured")
	}
	opts := similarity.DefaultSearchOptions()
	if topK > 0 {
		opts.TopK = topK
	}
	return e.search.Search(ctx, query, opts)
}

// Statistics merges catalog and search statistics.
type Statistics struct {
	Knowledge knowledge.Statistics   `json:"knowledge"`
	Search    *similarity.Statistics `json:"search,omitempty"`
}

// Statistics reports the engine's current state.
func (e *Engine) Statistics() Statistics {
	stats := Statistics{Knowledge: e.kb.Statistics()}
	if e.search != nil {
		s := e.search.Statistics()
		stats.Search = &s
	}
	return stats
}

// indexPattern keeps the similarity index in step with the catalog.
// Embedding failures are logged; exact matching keeps working without them.
func (e *Engine) indexPattern(ctx context.Context, p knowledge.ErrorPattern) {
	if e.search == nil {
		return
	}
	text := p.PatternType + ": " + p.Description
	if e.search.PatternText(p.PatternType) == text {
		return
	}
	contexts := []string{p.Category, string(p.Severity)}
	if p.Subcategory != "" {
		contexts = append(contexts, p.Subcategory)
	}
	if err := e.search.AddPattern(ctx, p.PatternType, text, contexts); err != nil {
		e.logger.Warn("failed to index pattern embedding",
			zap.String("pattern_type", p.PatternType),
			zap.Error(err),
		)
	}
}

func (e *Engine) indexSolution(ctx context.Context, s knowledge.ErrorSolution) {
	if e.search == nil {
		return
	}
	text := s.Description
	if len(s.Steps) > 0 {
		text += ": " + s.Steps[0]
	}
	if e.search.SolutionText(s.SolutionID) == text {
		return
	}
	if err := e.search.AddSolution(ctx, s.SolutionID, text, []string{s.PatternType}); err != nil {
		e.logger.Warn("failed to index solution embedding",
			zap.String("solution_id", s.SolutionID),
			zap.Error(err),
		)
	}
}

// contextTags flattens the analyzed context into search tags.
func contextTags(info *analyzer.ContextInfo) []string {
	if info == nil {
		return nil
	}
	tags := []string{}
	if info.Category != "" && info.Category != "unknown" {
		tags = append(tags, info.Category)
	}
	if info.Severity != "" && info.Severity != "unknown" {
		tags = append(tags, info.Severity)
	}
	if info.Subcategory != "" && info.Subcategory != "unknown" {
		tags = append(tags, info.Subcategory)
	}
	return tags
}

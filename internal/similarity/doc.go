// Package similarity implements the hybrid ranking engine over the error
// catalog: semantic embedding similarity, normalized edit distance and
// context-tag overlap, blended per query options.
//
// Embeddings are cached by raw text in two JSON files
// (pattern_embeddings.json, solution_embeddings.json) under the configured
// cache directory and reloaded on construction, so a vector is computed at
// most once per text per model version.
//
// # Score blending
//
// The pooled Search entry point blends semantic·(1−w) + fuzzy·w when both
// the fuzzy and context signals are requested: context similarity is
// computed and reported on each result but does not enter the blend. This
// preserves score compatibility with earlier releases; callers that want
// context in the ranking can re-rank on the exposed ContextSimilarity or
// use FindSimilarPatterns/FindSimilarSolutions, which blend all three
// signals (0.5/0.3/0.2).
package similarity

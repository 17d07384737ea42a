// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX, requires CGO), TEI (external HTTP
// service) and a deterministic hash embedder for tests. Providers must be
// deterministic for a given text: the similarity index caches vectors by
// raw text and never re-derives them once stored.
package embeddings

// Package knowledge implements the durable catalog of error patterns and
// remediation solutions.
//
// The catalog is an in-memory map with file-backed persistence: every
// mutation rewrites the pattern and solution stores in full through an
// injected Storage implementation. Secondary indexes (category, severity,
// and the pattern→solutions reverse index) are rebuilt on load and updated
// incrementally on writes.
//
// The reverse index is derived solely from each solution's PatternType.
// A pattern's own Solutions list is carried as metadata but never trusted,
// which removes the possibility of the two pointers drifting apart.
//
// # Concurrency
//
// Reads may run concurrently. Writes are serialized by an internal mutex,
// giving single-writer discipline within one process. The on-disk rewrite
// uses no file lock, so two processes writing the same directory race and
// the last writer wins.
package knowledge

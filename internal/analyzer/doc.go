// Package analyzer derives structured context from raw error signals.
//
// Given an error message and optionally a stack trace, a code snippet and
// environment facts, the analyzer produces a ContextInfo: error type,
// category, severity and subcategory from static rule tables, plus the
// files, functions, variables and resource issues extracted from the
// accompanying signals. Classification is table-driven and first-match-wins,
// so rule order encodes precedence.
//
// Analyze never returns an error; a downstream consumer always receives a
// usable ContextInfo, degraded to {ErrorType: "unknown"} in the worst case.
package analyzer

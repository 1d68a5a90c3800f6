// Package analyzer talks to the external LLM-backed analysis service over
// HTTP: one call per batch to classify individual log lines (Map), one
// call per batch to produce a cross-entry narrative (Reduce). Adapted
// from the corpus's LLM HTTP client plus its generic CircuitBreaker.
package analyzer

import (
	"context"

	"github.com/logsentinel/logsentinel/internal/domain"
)

// LogInput is one raw log line submitted for per-line classification.
type LogInput struct {
	TraceID string
	Line    string
}

// MapResult is the per-line classification returned by the Map phase,
// keyed by TraceID so callers can re-associate results with inputs.
type MapResult struct {
	TraceID string
	Result  domain.LogAnalysisResult
}

// ReduceInput summarizes one item for the Reduce phase: just enough for
// the model to reason about patterns without resending full log bodies.
type ReduceInput struct {
	TraceID    string
	RiskLevel  domain.RiskLevel
	Summary    string
}

// Analyzer is the contract the batch processor depends on. Production
// code uses Client; tests use a stub.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, provider, model, apiKey, prompt string, inputs []LogInput) ([]MapResult, error)
	Summarize(ctx context.Context, provider, model, apiKey, prompt string, inputs []ReduceInput) (domain.BatchSummary, error)
}

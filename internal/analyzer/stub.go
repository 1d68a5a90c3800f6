package analyzer

import (
	"context"
	"fmt"

	"github.com/logsentinel/logsentinel/internal/domain"
)

// Stub is an in-memory Analyzer for tests: it classifies every log as
// RiskInfo unless ClassifyFunc is set, and never touches the network.
type Stub struct {
	ClassifyFunc func(LogInput) domain.LogAnalysisResult
	SummaryFunc  func([]ReduceInput) domain.BatchSummary
	FailAnalyze  error
	FailSummary  error
	Calls        int
}

func (s *Stub) AnalyzeBatch(_ context.Context, _, _, _, _ string, inputs []LogInput) ([]MapResult, error) {
	s.Calls++
	if s.FailAnalyze != nil {
		return nil, s.FailAnalyze
	}
	out := make([]MapResult, 0, len(inputs))
	for _, in := range inputs {
		result := domain.LogAnalysisResult{Summary: fmt.Sprintf("ok: %s", in.Line), RiskLevel: domain.RiskInfo}
		if s.ClassifyFunc != nil {
			result = s.ClassifyFunc(in)
		}
		out = append(out, MapResult{TraceID: in.TraceID, Result: result})
	}
	return out, nil
}

func (s *Stub) Summarize(_ context.Context, _, _, _, _ string, inputs []ReduceInput) (domain.BatchSummary, error) {
	s.Calls++
	if s.FailSummary != nil {
		return domain.BatchSummary{}, s.FailSummary
	}
	if s.SummaryFunc != nil {
		return s.SummaryFunc(inputs), nil
	}
	return domain.BatchSummary{GlobalSummary: "all clear", GlobalRiskLevel: domain.RiskInfo, KeyPatterns: "[]"}, nil
}

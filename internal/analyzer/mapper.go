package analyzer

import (
	"fmt"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/domain"
)

// validateAndMapResults enforces the analyze/batch response's schema:
// every item's id and the four LogAnalysisResult fields must be present,
// and risk_level must parse into the closed set. Any deviation fails the
// whole call rather than coercing the bad item — the batch processor's
// own per-trace-id FAILURE degradation (missing ids) is the intended path
// for a classification that didn't come back, not a malformed one that did.
func validateAndMapResults(items []batchResultItem) ([]MapResult, error) {
	out := make([]MapResult, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			return nil, apperrors.Wrap(apperrors.ErrExternalFailure, "analyze/batch: result item missing id")
		}
		if it.Analysis.Summary == "" {
			return nil, apperrors.Wrap(apperrors.ErrExternalFailure, fmt.Sprintf("analyze/batch: %s missing summary", it.ID))
		}
		if it.Analysis.RootCause == "" {
			return nil, apperrors.Wrap(apperrors.ErrExternalFailure, fmt.Sprintf("analyze/batch: %s missing root_cause", it.ID))
		}
		if it.Analysis.Solution == "" {
			return nil, apperrors.Wrap(apperrors.ErrExternalFailure, fmt.Sprintf("analyze/batch: %s missing solution", it.ID))
		}
		if !domain.ValidRiskLevel(it.Analysis.RiskLevel) {
			return nil, apperrors.Wrap(apperrors.ErrExternalFailure,
				fmt.Sprintf("analyze/batch: %s has invalid risk_level %q", it.ID, it.Analysis.RiskLevel))
		}

		out = append(out, MapResult{
			TraceID: it.ID,
			Result: domain.LogAnalysisResult{
				Summary:   it.Analysis.Summary,
				RiskLevel: domain.ParseRiskLevel(it.Analysis.RiskLevel),
				RootCause: it.Analysis.RootCause,
				Solution:  it.Analysis.Solution,
			},
		})
	}
	return out, nil
}

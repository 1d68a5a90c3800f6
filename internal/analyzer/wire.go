package analyzer

import (
	"encoding/json"

	"github.com/logsentinel/logsentinel/internal/domain"
)

// batchRequest is the wire body for POST {base}/analyze/batch/{provider}.
// Field names and nesting are fixed by the external analyzer contract, not
// chosen by this service.
type batchRequest struct {
	Batch  []batchLogItem `json:"batch"`
	APIKey string         `json:"api_key"`
	Model  string         `json:"model"`
	Prompt string         `json:"prompt"`
}

type batchLogItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// batchResponse is the analyze/batch response envelope.
type batchResponse struct {
	Results []batchResultItem `json:"results"`
}

type batchResultItem struct {
	ID       string           `json:"id"`
	Analysis batchAnalysisDTO `json:"analysis"`
}

// batchAnalysisDTO mirrors domain.LogAnalysisResult's wire shape. Decoded
// values are validated strictly by validateAndMapResults before use; an
// unrecognized risk_level fails the whole analyze/batch call.
type batchAnalysisDTO struct {
	Summary   string `json:"summary"`
	RiskLevel string `json:"risk_level"`
	RootCause string `json:"root_cause"`
	Solution  string `json:"solution"`
}

// summarizeRequest is the wire body for POST {base}/summarize/{provider}.
// Results carry no id: the Reduce phase summarizes the batch as a whole, it
// does not correlate back to individual trace-ids.
type summarizeRequest struct {
	Results []batchAnalysisDTO `json:"results"`
	APIKey  string             `json:"api_key"`
	Model   string             `json:"model"`
	Prompt  string             `json:"prompt"`
}

// summarizeEnvelope is the outer response: a single field holding a
// JSON-encoded string, not a nested object. The inner document is decoded
// separately by decodeSummaryPayload.
type summarizeEnvelope struct {
	Summary string `json:"summary"`
}

// summaryPayload is the document encoded inside summarizeEnvelope.Summary.
// KeyPatterns is accepted either as a JSON array of strings or, defensively,
// as a single string, since the model is free-text-generating and does not
// always respect the requested schema.
type summaryPayload struct {
	GlobalSummary   string      `json:"global_summary"`
	GlobalRiskLevel string      `json:"global_risk_level"`
	KeyPatterns     interface{} `json:"key_patterns"`
}

// decodeSummaryPayload unmarshals the doubly-encoded summarize response. A
// malformed or missing inner document degrades to a placeholder rather than
// failing the call: the caller still has per-log results to persist even if
// the narrative summary came back unusable.
func decodeSummaryPayload(envelope summarizeEnvelope) summaryPayload {
	if envelope.Summary == "" {
		return summaryPayload{GlobalRiskLevel: string(domain.RiskUnknown)}
	}
	var payload summaryPayload
	if err := json.Unmarshal([]byte(envelope.Summary), &payload); err != nil {
		return summaryPayload{GlobalRiskLevel: string(domain.RiskUnknown)}
	}
	return payload
}

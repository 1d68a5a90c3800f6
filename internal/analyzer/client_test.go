package analyzer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/domain"
)

func TestClient_AnalyzeBatch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze/batch/openai", r.URL.Path)
		var req batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Batch, 1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batchResponse{Results: []batchResultItem{
			{ID: req.Batch[0].ID, Analysis: batchAnalysisDTO{
				Summary: "bad thing happened", RiskLevel: "critical",
				RootCause: "oom killer invoked", Solution: "raise memory limit",
			}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, DefaultClientConfig(), nil)
	results, err := client.AnalyzeBatch(t.Context(), "openai", "gpt-4o-mini", "key", "prompt",
		[]LogInput{{TraceID: "t1", Line: "oom killed pid 123"}})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].TraceID)
	assert.Equal(t, domain.RiskCritical, results[0].Result.RiskLevel)
}

func TestClient_AnalyzeBatch_InvalidRiskLevelFailsWholeCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batchResponse{Results: []batchResultItem{
			{ID: "t1", Analysis: batchAnalysisDTO{
				Summary: "s", RootCause: "r", Solution: "f", RiskLevel: "catastrophic",
			}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, DefaultClientConfig(), nil)
	results, err := client.AnalyzeBatch(t.Context(), "openai", "m", "k", "p", []LogInput{{TraceID: "t1", Line: "x"}})

	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrExternalFailure)
	assert.Nil(t, results)
}

func TestClient_AnalyzeBatch_MissingFieldFailsWholeCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batchResponse{Results: []batchResultItem{
			{ID: "t1", Analysis: batchAnalysisDTO{RiskLevel: "critical"}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, DefaultClientConfig(), nil)
	_, err := client.AnalyzeBatch(t.Context(), "openai", "m", "k", "p", []LogInput{{TraceID: "t1", Line: "x"}})

	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrExternalFailure)
}

func TestClient_AnalyzeBatch_NonOKStatusReturnsExternalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.Retry.MaxAttempts = 1
	client := NewClient(server.URL, cfg, nil)
	_, err := client.AnalyzeBatch(t.Context(), "openai", "m", "k", "p", []LogInput{{TraceID: "t1", Line: "x"}})

	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrExternalFailure)
}

func TestClient_Summarize_DefensiveKeyPatternsParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner := `{"global_summary":"ok","global_risk_level":"info","key_patterns":"only one pattern, not an array"}`
		envelope, _ := json.Marshal(summarizeEnvelope{Summary: inner})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelope)
	}))
	defer server.Close()

	client := NewClient(server.URL, DefaultClientConfig(), nil)
	summary, err := client.Summarize(t.Context(), "openai", "m", "k", "p", []ReduceInput{{TraceID: "t1", RiskLevel: domain.RiskInfo}})

	require.NoError(t, err)
	assert.JSONEq(t, `["only one pattern, not an array"]`, summary.KeyPatterns)
}

func TestClient_Summarize_MalformedInnerPayloadDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelope, _ := json.Marshal(summarizeEnvelope{Summary: "not json at all"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelope)
	}))
	defer server.Close()

	client := NewClient(server.URL, DefaultClientConfig(), nil)
	summary, err := client.Summarize(t.Context(), "openai", "m", "k", "p", []ReduceInput{{TraceID: "t1", RiskLevel: domain.RiskInfo}})

	require.NoError(t, err, "a malformed inner summary document must not fail the call")
	assert.Equal(t, domain.RiskUnknown, summary.GlobalRiskLevel)
}

func TestClient_CircuitOpenRejectsWithoutNetworkCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.Retry.MaxAttempts = 1
	cfg.CircuitBreaker.ConsecutiveFailureThreshold = 1
	client := NewClient(server.URL, cfg, nil)

	_, err := client.AnalyzeBatch(t.Context(), "openai", "m", "k", "p", []LogInput{{TraceID: "t1", Line: "x"}})
	require.Error(t, err)

	_, err = client.AnalyzeBatch(t.Context(), "openai", "m", "k", "p", []LogInput{{TraceID: "t1", Line: "x"}})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls, "second call must be rejected by the breaker, not reach the network")
}

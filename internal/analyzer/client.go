package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/domain"
)

// ClientConfig tunes a Client.
type ClientConfig struct {
	HTTPTimeout    time.Duration
	CircuitBreaker CircuitBreakerConfig
	Retry          RetryPolicy
	// BreakerEnabled mirrors AppConfig.CircuitBreakerEnabled; when false the
	// breaker is neither consulted nor fed call outcomes, so it never rejects
	// a call and the circuit-state gauge stays at 0.
	BreakerEnabled bool
}

// DefaultClientConfig is a reasonable starting point for production use.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HTTPTimeout:    10 * time.Second,
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Retry:          DefaultRetryPolicy(),
		BreakerEnabled: true,
	}
}

// Client is the production Analyzer: an HTTP client against the external
// analysis service, guarded by a circuit breaker and retried with
// exponential backoff. Grounded on the corpus's LLM HTTP client plus its
// generic CircuitBreaker, adapted to this service's two-endpoint wire
// protocol (analyze/batch, summarize).
type Client struct {
	baseURL string
	http    *http.Client
	breaker *CircuitBreaker
	retry   RetryPolicy
	enabled bool
	metrics *Metrics
}

// NewClient builds a Client against baseURL (e.g. http://localhost:9090).
func NewClient(baseURL string, cfg ClientConfig, metrics *Metrics) *Client {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		breaker: NewCircuitBreaker(cfg.CircuitBreaker),
		retry:   cfg.Retry,
		enabled: cfg.BreakerEnabled,
		metrics: metrics,
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = apperrors.Wrap(apperrors.ErrExternalFailure, "analyzer circuit breaker is open")

func (c *Client) AnalyzeBatch(ctx context.Context, provider, model, apiKey, prompt string, inputs []LogInput) ([]MapResult, error) {
	if c.enabled && !c.breaker.Allow() {
		c.metrics.RequestsTotal.WithLabelValues("analyze_batch", "circuit_open").Inc()
		return nil, ErrCircuitOpen
	}

	items := make([]batchLogItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, batchLogItem{ID: in.TraceID, Text: in.Line})
	}
	reqBody := batchRequest{Batch: items, APIKey: apiKey, Model: model, Prompt: prompt}

	var parsed batchResponse
	start := time.Now()
	err := c.retry.Do(ctx, func() error {
		return c.postJSON(ctx, fmt.Sprintf("/analyze/batch/%s", provider), reqBody, &parsed)
	})
	c.metrics.RequestDuration.WithLabelValues("analyze_batch").Observe(time.Since(start).Seconds())
	c.recordOutcome("analyze_batch", err)

	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExternalFailure, fmt.Sprintf("analyze/batch: %v", err))
	}
	return validateAndMapResults(parsed.Results)
}

func (c *Client) Summarize(ctx context.Context, provider, model, apiKey, prompt string, inputs []ReduceInput) (domain.BatchSummary, error) {
	if c.enabled && !c.breaker.Allow() {
		c.metrics.RequestsTotal.WithLabelValues("summarize", "circuit_open").Inc()
		return domain.BatchSummary{}, ErrCircuitOpen
	}

	items := make([]batchAnalysisDTO, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, batchAnalysisDTO{Summary: in.Summary, RiskLevel: string(in.RiskLevel)})
	}
	reqBody := summarizeRequest{Results: items, APIKey: apiKey, Model: model, Prompt: prompt}

	var envelope summarizeEnvelope
	start := time.Now()
	err := c.retry.Do(ctx, func() error {
		return c.postJSON(ctx, fmt.Sprintf("/summarize/%s", provider), reqBody, &envelope)
	})
	c.metrics.RequestDuration.WithLabelValues("summarize").Observe(time.Since(start).Seconds())
	c.recordOutcome("summarize", err)

	if err != nil {
		return domain.BatchSummary{}, apperrors.Wrap(apperrors.ErrExternalFailure, fmt.Sprintf("summarize: %v", err))
	}

	payload := decodeSummaryPayload(envelope)
	return domain.BatchSummary{
		GlobalSummary:   payload.GlobalSummary,
		GlobalRiskLevel: domain.ParseRiskLevel(payload.GlobalRiskLevel),
		KeyPatterns:     marshalKeyPatterns(payload.KeyPatterns),
	}, nil
}

func (c *Client) recordOutcome(operation string, err error) {
	if err != nil {
		c.metrics.RequestsTotal.WithLabelValues(operation, "failure").Inc()
		if c.enabled {
			c.breaker.RecordFailure()
		}
	} else {
		c.metrics.RequestsTotal.WithLabelValues(operation, "success").Inc()
		if c.enabled {
			c.breaker.RecordSuccess()
		}
	}
	if c.breaker.IsOpen() {
		c.metrics.CircuitState.Set(1)
	} else {
		c.metrics.CircuitState.Set(0)
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(raw, 500))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// marshalKeyPatterns re-encodes KeyPatterns (which arrives as either a
// []interface{} of strings or a bare string, per the wire contract's
// defensive-parsing note) back into a canonical JSON array string for
// storage in batch_summaries.key_patterns.
func marshalKeyPatterns(raw interface{}) string {
	switch v := raw.(type) {
	case []interface{}:
		patterns := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				patterns = append(patterns, s)
			}
		}
		encoded, err := json.Marshal(patterns)
		if err != nil {
			return "[]"
		}
		return string(encoded)
	case string:
		encoded, err := json.Marshal([]string{v})
		if err != nil {
			return "[]"
		}
		return string(encoded)
	default:
		return "[]"
	}
}

// Package notifier delivers alerts to configured webhook channels.
// Delivery is fire-and-forget: a failing webhook must never block or fail
// the batch that triggered it, so every send runs in its own goroutine
// with failures only logged.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/logsentinel/logsentinel/internal/config"
	"github.com/logsentinel/logsentinel/internal/domain"
)

// Notifier fans an alert-worthy batch summary out to every enabled
// webhook channel whose threshold the summary's risk level meets.
type Notifier struct {
	http   *http.Client
	logger *slog.Logger
}

// New builds a Notifier with a bounded per-call timeout, since a slow or
// unreachable webhook endpoint must not accumulate goroutines.
func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		http:   &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Text      string          `json:"text"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
	Summary   domain.BatchSummary `json:"summary"`
}

// Dispatch evaluates every enabled channel against summary's global risk
// level and fires a webhook POST for each one that clears its threshold.
// Each send runs in its own goroutine; Dispatch itself never blocks on
// network I/O and never returns an error.
func (n *Notifier) Dispatch(channels []config.AlertChannel, summary domain.BatchSummary) {
	for _, ch := range channels {
		if !ch.IsActive {
			continue
		}
		if !meetsThreshold(ch.AlertThreshold, summary.GlobalRiskLevel) {
			continue
		}
		go n.send(ch, summary)
	}
}

func (n *Notifier) send(ch config.AlertChannel, summary domain.BatchSummary) {
	text := ch.MsgTemplate
	if text == "" {
		text = "LogSentinel alert: " + summary.GlobalSummary
	} else {
		text = strings.ReplaceAll(text, "{{summary}}", summary.GlobalSummary)
		text = strings.ReplaceAll(text, "{{risk_level}}", string(summary.GlobalRiskLevel))
	}

	body, err := json.Marshal(webhookPayload{Text: text, RiskLevel: summary.GlobalRiskLevel, Summary: summary})
	if err != nil {
		n.logger.Error("notifier: failed to encode webhook payload", "channel", ch.Name, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("notifier: failed to build webhook request", "channel", ch.Name, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.Warn("notifier: webhook delivery failed", "channel", ch.Name, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("notifier: webhook returned non-2xx", "channel", ch.Name, "status", resp.StatusCode)
	}
}

// riskOrder ranks risk levels from least to most severe for threshold
// comparison. Unknown sits below Info: an unclassifiable log should not
// by itself clear any alert threshold.
var riskOrder = map[domain.RiskLevel]int{
	domain.RiskUnknown:  0,
	domain.RiskSafe:     1,
	domain.RiskInfo:     2,
	domain.RiskWarning:  3,
	domain.RiskError:    4,
	domain.RiskCritical: 5,
}

func meetsThreshold(threshold string, actual domain.RiskLevel) bool {
	thresholdLevel := domain.ParseRiskLevel(threshold)
	return riskOrder[actual] >= riskOrder[thresholdLevel]
}

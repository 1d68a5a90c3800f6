package config

import "strings"

// SanitizedAppConfig is the representation of AppConfig returned by
// /settings/all: the API key is masked, since that endpoint's response can
// be viewed by anyone with dashboard access; the refresh interval is given
// in milliseconds and the active Reduce prompt id in the flat id space
// (offset by ReduceIDOffset). Other fields are copied unchanged.
type SanitizedAppConfig struct {
	Provider              string `json:"provider"`
	Model                 string `json:"model"`
	APIKey                string `json:"api_key"`
	AnalyzerBaseURL       string `json:"analyzer_base_url"`
	ThreadCount           int    `json:"thread_count"`
	BatchSize             int    `json:"batch_size"`
	RefreshIntervalMs     int64  `json:"refresh_interval_ms"`
	RetentionDays         int    `json:"retention_days"`
	Port                  int    `json:"port"`
	CircuitBreakerEnabled bool   `json:"circuit_breaker_enabled"`
	RingCapacity          int    `json:"ring_capacity"`
	PoolThreshold         int    `json:"pool_threshold"`
	WorkerQueueSize       int    `json:"worker_queue_size"`
	ActiveMapPromptID     int64  `json:"active_map_prompt_id"`
	ActiveReducePromptID  int64  `json:"active_reduce_prompt_id"`
}

// Sanitize masks an API key down to its last four characters, e.g.
// "sk-abcdef1234" becomes "***1234". Keys of length four or less are
// fully masked, since there would otherwise be nothing left to hide.
func Sanitize(app AppConfig) SanitizedAppConfig {
	return SanitizedAppConfig{
		Provider:              app.Provider,
		Model:                 app.Model,
		APIKey:                maskAPIKey(app.APIKey),
		AnalyzerBaseURL:       app.AnalyzerBaseURL,
		ThreadCount:           app.ThreadCount,
		BatchSize:             app.BatchSize,
		RefreshIntervalMs:     app.RefreshInterval.Milliseconds(),
		RetentionDays:         app.RetentionDays,
		Port:                  app.Port,
		CircuitBreakerEnabled: app.CircuitBreakerEnabled,
		RingCapacity:          app.RingCapacity,
		PoolThreshold:         app.PoolThreshold,
		WorkerQueueSize:       app.WorkerQueueSize,
		ActiveMapPromptID:     app.ActiveMapPromptID,
		ActiveReducePromptID:  app.ActiveReducePromptID + ReduceIDOffset,
	}
}

func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "***" + key[len(key)-4:]
}

package config

import "time"

// ReduceIDOffset is the constant added to Reduce prompt ids so the HTTP API
// can expose a single flat id space (spec.md §4.1, §9 "Prompt-id API
// flattening"). The store subtracts it back out on write.
const ReduceIDOffset = 1_000_000

// AppConfig holds the scalar runtime knobs that can be hot-swapped through
// the Config Store without restarting the process.
type AppConfig struct {
	Provider              string
	Model                 string
	APIKey                string
	AnalyzerBaseURL       string
	ThreadCount           int
	BatchSize             int
	RefreshInterval       time.Duration
	RetentionDays         int
	Port                  int
	CircuitBreakerEnabled bool
	RingCapacity          int
	PoolThreshold         int
	WorkerQueueSize       int
	ActiveMapPromptID     int64
	ActiveReducePromptID  int64 // stored as the real reduce_prompts.id, never offset
}

// PromptType distinguishes Map prompts (per-log classification) from
// Reduce prompts (cross-batch narrative).
type PromptType string

const (
	PromptTypeMap    PromptType = "map"
	PromptTypeReduce PromptType = "reduce"
)

// PromptConfig is one row of map_prompts or reduce_prompts, plus the Type
// tag used to route it to the right table on write and the right flat id
// on read.
type PromptConfig struct {
	ID        int64
	Name      string
	Content   string
	IsActive  bool
	Type      PromptType
	CreatedAt time.Time
}

// FlatID returns the id as exposed over the HTTP API: unchanged for Map
// prompts, offset for Reduce prompts.
func (p PromptConfig) FlatID() int64 {
	if p.Type == PromptTypeReduce {
		return p.ID + ReduceIDOffset
	}
	return p.ID
}

// AlertChannel is one row of alert_channels.
type AlertChannel struct {
	ID             int64
	Name           string
	Provider       string
	WebhookURL     string
	AlertThreshold string
	MsgTemplate    string
	IsActive       bool
	CreatedAt      time.Time
}

// SystemConfig is the immutable snapshot published by the Config Store.
// Once constructed it is never mutated; readers hold it by reference
// indefinitely without risk of seeing a partial update.
type SystemConfig struct {
	App           AppConfig
	MapPrompts    []PromptConfig
	ReducePrompts []PromptConfig
	Channels      []AlertChannel

	// Pre-resolved at construction so the hot path pays O(1).
	ActiveMapPrompt    string
	ActiveReducePrompt string
}

// NewSystemConfig builds a snapshot, resolving the active Map/Reduce prompt
// content once: prefer the prompt matching App.ActiveMapPromptID /
// App.ActiveReducePromptID, fall back to the first active entry in that
// list, else the empty string.
func NewSystemConfig(app AppConfig, mapPrompts, reducePrompts []PromptConfig, channels []AlertChannel) *SystemConfig {
	return &SystemConfig{
		App:                app,
		MapPrompts:         mapPrompts,
		ReducePrompts:      reducePrompts,
		Channels:           channels,
		ActiveMapPrompt:    resolveActivePrompt(mapPrompts, app.ActiveMapPromptID),
		ActiveReducePrompt: resolveActivePrompt(reducePrompts, app.ActiveReducePromptID),
	}
}

func resolveActivePrompt(prompts []PromptConfig, activeID int64) string {
	for _, p := range prompts {
		if p.ID == activeID {
			return p.Content
		}
	}
	for _, p := range prompts {
		if p.IsActive {
			return p.Content
		}
	}
	return ""
}

// FlatPrompts returns Map and Reduce prompts concatenated into one list
// using the flattened id space (spec.md §4.1 get_all_prompts).
func (s *SystemConfig) FlatPrompts() []PromptConfig {
	out := make([]PromptConfig, 0, len(s.MapPrompts)+len(s.ReducePrompts))
	out = append(out, s.MapPrompts...)
	out = append(out, s.ReducePrompts...)
	return out
}

package api

import "github.com/logsentinel/logsentinel/internal/domain"

type ingestResponse struct {
	TraceID string `json:"trace_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

type resultResponse struct {
	TraceID string                   `json:"trace_id"`
	Result  domain.LogAnalysisResult `json:"result"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type configItem struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

type configUpdateRequest struct {
	Items []configItem `json:"items" validate:"required,dive"`
}

type promptDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name" validate:"required"`
	Content  string `json:"content" validate:"required"`
	IsActive bool   `json:"is_active"`
	Type     string `json:"type" validate:"required,oneof=map reduce"`
}

type channelDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name" validate:"required"`
	Provider       string `json:"provider" validate:"required"`
	WebhookURL     string `json:"webhook_url" validate:"required,url"`
	AlertThreshold string `json:"alert_threshold" validate:"required"`
	MsgTemplate    string `json:"msg_template"`
	IsActive       bool   `json:"is_active"`
}

type settingsAllResponse struct {
	Config   interface{}  `json:"config"`
	Prompts  []promptDTO  `json:"prompts"`
	Channels []channelDTO `json:"channels"`
}

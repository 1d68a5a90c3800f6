package api

import (
	"encoding/json"
	"net/http"

	"github.com/logsentinel/logsentinel/internal/config"
)

func (s *Server) handleSettingsAll(w http.ResponseWriter, r *http.Request) {
	snapshot := s.cfg.GetSnapshot()

	prompts := make([]promptDTO, 0, len(snapshot.MapPrompts)+len(snapshot.ReducePrompts))
	for _, p := range snapshot.FlatPrompts() {
		prompts = append(prompts, promptDTO{
			ID: p.FlatID(), Name: p.Name, Content: p.Content, IsActive: p.IsActive, Type: string(p.Type),
		})
	}

	channels := make([]channelDTO, 0, len(snapshot.Channels))
	for _, c := range snapshot.Channels {
		channels = append(channels, channelDTO{
			ID: c.ID, Name: c.Name, Provider: c.Provider, WebhookURL: c.WebhookURL,
			AlertThreshold: c.AlertThreshold, MsgTemplate: c.MsgTemplate, IsActive: c.IsActive,
		})
	}

	writeJSON(w, http.StatusOK, settingsAllResponse{
		Config:   config.Sanitize(snapshot.App),
		Prompts:  prompts,
		Channels: channels,
	})
}

func (s *Server) handleSettingsConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := make(map[string]string, len(req.Items))
	for _, item := range req.Items {
		updates[item.Key] = item.Value
	}

	if err := s.cfg.UpdateAppCfg(r.Context(), updates); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (s *Server) handleSettingsPrompts(w http.ResponseWriter, r *http.Request) {
	var dtos []promptDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	items := make([]config.PromptConfig, 0, len(dtos))
	for _, dto := range dtos {
		if err := s.validate.Struct(dto); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		promptType := config.PromptTypeMap
		id := dto.ID
		if dto.Type == string(config.PromptTypeReduce) {
			promptType = config.PromptTypeReduce
			if id > config.ReduceIDOffset {
				id -= config.ReduceIDOffset
			}
		}
		items = append(items, config.PromptConfig{
			ID: id, Name: dto.Name, Content: dto.Content, IsActive: dto.IsActive, Type: promptType,
		})
	}

	if err := s.cfg.UpdatePrompts(r.Context(), items); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (s *Server) handleSettingsChannels(w http.ResponseWriter, r *http.Request) {
	var dtos []channelDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	items := make([]config.AlertChannel, 0, len(dtos))
	for _, dto := range dtos {
		if err := s.validate.Struct(dto); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		items = append(items, config.AlertChannel{
			ID: dto.ID, Name: dto.Name, Provider: dto.Provider, WebhookURL: dto.WebhookURL,
			AlertThreshold: dto.AlertThreshold, MsgTemplate: dto.MsgTemplate, IsActive: dto.IsActive,
		})
	}

	if err := s.cfg.UpdateChannels(r.Context(), items); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

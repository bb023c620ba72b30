// Package handlers provides HTTP handlers for commission and rank settings.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aristath/tierledger/internal/core"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/settings"
	"github.com/aristath/tierledger/internal/server/respond"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SettingsService is the subset of core.Service the handlers call
type SettingsService interface {
	AllSettings() (map[string]string, error)
	UpdateSetting(key, value string) error
	RateTables() (*core.RateTables, error)
	RankLadder(ctx context.Context) ([]domain.Rank, error)
	UpsertRank(ctx context.Context, rank domain.Rank) error
}

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service SettingsService
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service SettingsService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

type settingView struct {
	Value       string `json:"value"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	values, err := h.service.AllSettings()
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}

	out := make(map[string]settingView, len(values))
	for key, value := range values {
		out[key] = settingView{
			Value:       value,
			Default:     settings.SettingDefaults[key],
			Description: settings.SettingDescriptions[key],
		}
	}
	respond.Data(w, http.StatusOK, out, h.log)
}

// HandleUpdate handles PUT /api/settings/{key}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var update settings.SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respond.BadRequest(w, "Invalid request body", h.log)
		return
	}

	if err := h.service.UpdateSetting(key, update.Value); err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, map[string]string{"key": key, "value": update.Value}, h.log)
}

// HandleGetRates handles GET /api/settings/rates
func (h *Handler) HandleGetRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.RateTables()
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, rates, h.log)
}

// HandleGetRanks handles GET /api/ranks
func (h *Handler) HandleGetRanks(w http.ResponseWriter, r *http.Request) {
	ranks, err := h.service.RankLadder(r.Context())
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, ranks, h.log)
}

// HandleUpsertRank handles PUT /api/ranks/{level}
func (h *Handler) HandleUpsertRank(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		respond.BadRequest(w, "Invalid rank level", h.log)
		return
	}

	var rank domain.Rank
	if err := json.NewDecoder(r.Body).Decode(&rank); err != nil {
		respond.BadRequest(w, "Invalid request body", h.log)
		return
	}
	rank.Level = level

	if err := h.service.UpsertRank(r.Context(), rank); err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, rank, h.log)
}

// RegisterRoutes registers settings and rank routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/rates", h.HandleGetRates)
		r.Put("/{key}", h.HandleUpdate)
	})
	r.Route("/ranks", func(r chi.Router) {
		r.Get("/", h.HandleGetRanks)
		r.Put("/{level}", h.HandleUpsertRank)
	})
}

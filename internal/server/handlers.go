package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/tierledger/internal/server/respond"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/go-chi/chi/v5"
)

type clockView struct {
	Today string `json:"today"`
}

type advanceRequest struct {
	Days int `json:"days"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "tierledger",
	}

	if err := s.service.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = err.Error()
	}

	respond.JSON(w, status, body, s.log)
}

// handleGetClock returns the simulated date
// GET /api/clock
func (s *Server) handleGetClock(w http.ResponseWriter, r *http.Request) {
	today, err := s.service.Today(r.Context())
	if err != nil {
		respond.Error(w, err, s.log)
		return
	}
	respond.Data(w, http.StatusOK, clockView{Today: utils.FormatDate(today)}, s.log)
}

// handleAdvanceClock moves the clock forward
// POST /api/clock/advance {"days": n}
func (s *Server) handleAdvanceClock(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body", s.log)
		return
	}

	report, err := s.service.Advance(r.Context(), req.Days)
	if err != nil {
		respond.Error(w, err, s.log)
		return
	}
	respond.Data(w, http.StatusOK, report, s.log)
}

// handleRunCycle runs the rank cycle for a closed month
// POST /api/cycles/{month}/run
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.RunRankCycle(r.Context(), chi.URLParam(r, "month"))
	if err != nil {
		respond.Error(w, err, s.log)
		return
	}
	respond.Data(w, http.StatusOK, report, s.log)
}

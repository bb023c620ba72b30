// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/tierledger/internal/core"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/modules/ledger"
	"github.com/aristath/tierledger/internal/server/respond"
	"github.com/aristath/tierledger/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerService is the subset of core.Service the handlers call
type LedgerService interface {
	CreateUser(ctx context.Context, req core.NewUser) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	OverrideRank(ctx context.Context, id string, rank int, reason string) (*domain.User, error)
	SetFrozen(ctx context.Context, id string, frozen bool) (*domain.User, error)
	Downline(ctx context.Context, id string) ([]string, error)
	UplineChain(ctx context.Context, id string, maxDepth int) ([]string, error)
	CreateAsset(ctx context.Context, asset *domain.Asset) error
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*domain.LedgerEvent, error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*domain.LedgerEvent, error)
	SetStatus(ctx context.Context, eventID int64, status domain.EventStatus) (*domain.LedgerEvent, error)
	Adjust(ctx context.Context, userID string, adj core.Adjustment) (*domain.LedgerEvent, error)
	Invest(ctx context.Context, req core.InvestRequest) (*core.InvestResult, error)
	CompleteInvestment(ctx context.Context, id int64) (*domain.Investment, error)
	Investments(ctx context.Context, userID string) ([]domain.Investment, error)
	Balance(ctx context.Context, userID string) (*core.Balance, error)
	History(ctx context.Context, filter ledger.Filter) ([]domain.LedgerEvent, error)
	Bonuses(ctx context.Context, filter ledger.BonusFilter) ([]domain.Bonus, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	service LedgerService
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service LedgerService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type investRequest struct {
	AssetID string                  `json:"asset_id"`
	Amount  decimal.Decimal         `json:"amount"`
	Source  domain.InvestmentSource `json:"source"`
}

type rankRequest struct {
	Rank   int    `json:"rank"`
	Reason string `json:"reason"`
}

type freezeRequest struct {
	Frozen bool `json:"frozen"`
}

type statusRequest struct {
	Status domain.EventStatus `json:"status"`
}

// HandleCreateUser handles POST /api/users
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req core.NewUser
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusCreated, user, h.log)
}

// HandleGetUser handles GET /api/users/{id}
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	h.reply(w, http.StatusOK, user, err)
}

// HandleGetBalance handles GET /api/users/{id}/balance
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Balance(r.Context(), chi.URLParam(r, "id"))
	h.reply(w, http.StatusOK, b, err)
}

// HandleGetDownline handles GET /api/users/{id}/downline
func (h *Handler) HandleGetDownline(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.Downline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{
		"users": ids,
		"count": len(ids),
	}, h.log)
}

// HandleGetUpline handles GET /api/users/{id}/upline?depth=
func (h *Handler) HandleGetUpline(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respond.BadRequest(w, "Invalid depth", h.log)
			return
		}
		depth = parsed
	}

	ids, err := h.service.UplineChain(r.Context(), chi.URLParam(r, "id"), depth)
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{
		"users": ids,
		"count": len(ids),
	}, h.log)
}

// HandleGetTransactions handles GET /api/users/{id}/transactions
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{
		UserID: chi.URLParam(r, "id"),
		Kind:   domain.EventKind(q.Get("kind")),
		Status: domain.EventStatus(q.Get("status")),
		Limit:  parseLimit(q.Get("limit")),
	}
	for param, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(utils.DateLayout, raw)
		if err != nil {
			respond.BadRequest(w, "Invalid "+param+" date (expected YYYY-MM-DD)", h.log)
			return
		}
		*target = &parsed
	}

	events, err := h.service.History(r.Context(), filter)
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{
		"transactions": events,
		"count":        len(events),
	}, h.log)
}

// HandleGetBonuses handles GET /api/users/{id}/bonuses
func (h *Handler) HandleGetBonuses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bonuses, err := h.service.Bonuses(r.Context(), ledger.BonusFilter{
		UserID:   chi.URLParam(r, "id"),
		Type:     domain.BonusType(q.Get("type")),
		SourceID: q.Get("source_id"),
		Limit:    parseLimit(q.Get("limit")),
	})
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{
		"bonuses": bonuses,
		"count":   len(bonuses),
	}, h.log)
}

// HandleGetInvestments handles GET /api/users/{id}/investments
func (h *Handler) HandleGetInvestments(w http.ResponseWriter, r *http.Request) {
	investments, err := h.service.Investments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{
		"investments": investments,
		"count":       len(investments),
	}, h.log)
}

// HandleDeposit handles POST /api/users/{id}/deposits
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	event, err := h.service.Deposit(r.Context(), chi.URLParam(r, "id"), req.Amount)
	h.reply(w, http.StatusCreated, event, err)
}

// HandleWithdraw handles POST /api/users/{id}/withdrawals
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	event, err := h.service.Withdraw(r.Context(), chi.URLParam(r, "id"), req.Amount)
	h.reply(w, http.StatusCreated, event, err)
}

// HandleInvest handles POST /api/users/{id}/investments
func (h *Handler) HandleInvest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Invest(r.Context(), core.InvestRequest{
		UserID:  chi.URLParam(r, "id"),
		AssetID: req.AssetID,
		Amount:  req.Amount,
		Source:  req.Source,
	})
	h.reply(w, http.StatusCreated, result, err)
}

// HandleAdjust handles POST /api/users/{id}/adjustments
func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	var req core.Adjustment
	if !h.decode(w, r, &req) {
		return
	}
	event, err := h.service.Adjust(r.Context(), chi.URLParam(r, "id"), req)
	h.reply(w, http.StatusCreated, event, err)
}

// HandleOverrideRank handles POST /api/users/{id}/rank
func (h *Handler) HandleOverrideRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.OverrideRank(r.Context(), chi.URLParam(r, "id"), req.Rank, req.Reason)
	h.reply(w, http.StatusOK, user, err)
}

// HandleFreeze handles POST /api/users/{id}/freeze
func (h *Handler) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	var req freezeRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.SetFrozen(r.Context(), chi.URLParam(r, "id"), req.Frozen)
	h.reply(w, http.StatusOK, user, err)
}

// HandleSetStatus handles POST /api/transactions/{id}/status
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	event, err := h.service.SetStatus(r.Context(), id, req.Status)
	h.reply(w, http.StatusOK, event, err)
}

// HandleCreateAsset handles POST /api/assets
func (h *Handler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var asset domain.Asset
	if !h.decode(w, r, &asset) {
		return
	}
	err := h.service.CreateAsset(r.Context(), &asset)
	h.reply(w, http.StatusCreated, &asset, err)
}

// HandleGetAsset handles GET /api/assets/{id}
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.service.GetAsset(r.Context(), chi.URLParam(r, "id"))
	h.reply(w, http.StatusOK, asset, err)
}

// HandleCompleteInvestment handles POST /api/investments/{id}/complete
func (h *Handler) HandleCompleteInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.CompleteInvestment(r.Context(), id)
	h.reply(w, http.StatusOK, inv, err)
}

func (h *Handler) reply(w http.ResponseWriter, status int, data interface{}, err error) {
	if err != nil {
		respond.Error(w, err, h.log)
		return
	}
	respond.Data(w, status, data, h.log)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.BadRequest(w, "Invalid request body", h.log)
		return false
	}
	return true
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.BadRequest(w, "Invalid ID", h.log)
		return 0, false
	}
	return id, true
}

func parseLimit(raw string) int {
	limit := 100 // default
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}

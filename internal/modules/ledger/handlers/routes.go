package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.HandleCreateUser)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetUser)
			r.Get("/balance", h.HandleGetBalance)
			r.Get("/downline", h.HandleGetDownline)
			r.Get("/upline", h.HandleGetUpline)
			r.Get("/transactions", h.HandleGetTransactions)
			r.Get("/bonuses", h.HandleGetBonuses)
			r.Get("/investments", h.HandleGetInvestments)

			// Money movement
			r.Post("/deposits", h.HandleDeposit)
			r.Post("/withdrawals", h.HandleWithdraw)
			r.Post("/investments", h.HandleInvest)

			// Admin
			r.Post("/adjustments", h.HandleAdjust)
			r.Post("/rank", h.HandleOverrideRank)
			r.Post("/freeze", h.HandleFreeze)
		})
	})

	r.Post("/transactions/{id}/status", h.HandleSetStatus)

	r.Route("/assets", func(r chi.Router) {
		r.Post("/", h.HandleCreateAsset)
		r.Get("/{id}", h.HandleGetAsset)
	})

	r.Post("/investments/{id}/complete", h.HandleCompleteInvestment)
}

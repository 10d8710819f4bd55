package reports

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/general-ledger/{accountID}", h.GeneralLedger)
		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/income-statement", h.IncomeStatement)
		r.Get("/balance-sheet", h.BalanceSheet)
	})
}

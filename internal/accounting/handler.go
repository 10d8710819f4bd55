package accounting

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
)

// Handler wires ledger endpoints.
type Handler struct {
	accounts *accounts.Handler
	journals *journals.Handler
	reports  *reports.Handler
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, ledger *Ledger) *Handler {
	return &Handler{
		accounts: accounts.NewHandler(logger, ledger.Accounts),
		journals: journals.NewHandler(logger, ledger.Journals),
		reports:  reports.NewHandler(logger, ledger.Reports),
	}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	h.journals.MountRoutes(r)
	h.reports.MountRoutes(r)
	h.accounts.MountRoutes(r)
}

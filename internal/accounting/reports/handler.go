package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/platform/httpx"
)

// Handler renders reports as JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) GeneralLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.URLInt64(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	in := GeneralLedgerInput{AccountID: accountID, From: from, To: to}
	q := r.URL.Query()
	if raw := q.Get("opening"); raw != "" {
		opening, err := decimal.NewFromString(raw)
		if err != nil {
			httpx.RespondError(w, &httpx.FieldErrors{Fields: map[string]string{"opening": "expected decimal"}})
			return
		}
		in.Opening = &opening
	}
	if raw := q.Get("carry_forward"); raw != "" {
		in.CarryForward, err = strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, &httpx.FieldErrors{Fields: map[string]string{"carry_forward": "expected boolean"}})
			return
		}
	}
	gl, err := h.service.GeneralLedger(r.Context(), in)
	if err != nil {
		h.fail(w, "general ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, gl)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := asOfDate(w, r)
	if !ok {
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	is, err := h.service.IncomeStatement(r.Context(), from, to)
	if err != nil {
		h.fail(w, "income statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, is)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, ok := asOfDate(w, r)
	if !ok {
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func asOfDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, false
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return asOf, true
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, time.Time{}, false
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

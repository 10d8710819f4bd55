package journals

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/ledger/internal/shared"
)

// Handler exposes posting operations over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the journal handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type voucherTypeRequest struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"required,max=128"`
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"max=255"`
}

type postingRequest struct {
	VoucherTypeID int64         `json:"voucher_type_id" validate:"required,gt=0"`
	VoucherNo     string        `json:"voucher_no" validate:"max=64"`
	EntryDate     string        `json:"entry_date" validate:"required,datetime=2006-01-02"`
	Payee         string        `json:"payee" validate:"max=255"`
	Memo          string        `json:"memo" validate:"max=1024"`
	Reference     string        `json:"reference" validate:"omitempty,uuid"`
	Lines         []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=512"`
}

type closeRequest struct {
	Through                   string `json:"through" validate:"required,datetime=2006-01-02"`
	VoucherTypeID             int64  `json:"voucher_type_id" validate:"required,gt=0"`
	RetainedEarningsAccountID int64  `json:"retained_earnings_account_id" validate:"required,gt=0"`
}

type lineResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	Description string `json:"description,omitempty"`
	Side        string `json:"side"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

type transactionResponse struct {
	ID            int64          `json:"id"`
	VoucherTypeID int64          `json:"voucher_type_id"`
	VoucherNo     string         `json:"voucher_no,omitempty"`
	EntryDate     string         `json:"entry_date"`
	Payee         string         `json:"payee,omitempty"`
	Memo          string         `json:"memo,omitempty"`
	Status        string         `json:"status"`
	Kind          string         `json:"kind"`
	Reference     string         `json:"reference"`
	ReversalOf    *int64         `json:"reversal_of,omitempty"`
	ReversedBy    *int64         `json:"reversed_by,omitempty"`
	VoidReason    string         `json:"void_reason,omitempty"`
	PostedAt      *time.Time     `json:"posted_at,omitempty"`
	Lines         []lineResponse `json:"lines"`
}

type entryResponse struct {
	EntryDate     string `json:"entry_date"`
	TransactionID int64  `json:"transaction_id"`
	LineID        int64  `json:"line_id"`
	VoucherNo     string `json:"voucher_no"`
	Kind          string `json:"kind"`
	Description   string `json:"description,omitempty"`
	Debit         string `json:"debit"`
	Credit        string `json:"credit"`
}

type closingResponse struct {
	ID                        int64  `json:"id"`
	ClosedThrough             string `json:"closed_through"`
	TransactionID             *int64 `json:"transaction_id,omitempty"`
	RetainedEarningsAccountID int64  `json:"retained_earnings_account_id"`
	NetIncome                 string `json:"net_income"`
}

func (h *Handler) CreateVoucherType(w http.ResponseWriter, r *http.Request) {
	var req voucherTypeRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	vt, err := h.service.CreateVoucherType(r.Context(), req.Code, req.Name, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "create voucher type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": vt.ID, "code": vt.Code, "name": vt.Name})
}

func (h *Handler) VoucherTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListVoucherTypes(r.Context())
	if err != nil {
		h.fail(w, "list voucher types", err)
		return
	}
	out := make([]map[string]any, 0, len(types))
	for _, vt := range types {
		out = append(out, map[string]any{"id": vt.ID, "code": vt.Code, "name": vt.Name, "next_seq": vt.NextSeq})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePosting(w, r)
	if !ok {
		return
	}
	txn, err := h.service.PostTransaction(r.Context(), in)
	if err != nil {
		h.fail(w, "post transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePosting(w, r)
	if !ok {
		return
	}
	txn, err := h.service.SaveDraft(r.Context(), in)
	if err != nil {
		h.fail(w, "save draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) PostDraft(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	txn, err := h.service.PostDraft(r.Context(), id, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "post draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id, internalShared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req voidRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reversal, err := h.service.VoidTransaction(r.Context(), VoidInput{
		TransactionID: id,
		Reason:        req.Reason,
		ActorID:       internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "void transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(reversal))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	txn, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.AccountEntries(r.Context(), accountID, from, to)
	if err != nil {
		h.fail(w, "account entries", err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			EntryDate:     e.EntryDate.Format(httpx.DateLayout),
			TransactionID: e.TransactionID,
			LineID:        e.Line.ID,
			VoucherNo:     e.VoucherNo,
			Kind:          string(e.Kind),
			Description:   e.Line.Description,
			Debit:         e.Line.Debit().StringFixed(shared.AmountScale),
			Credit:        e.Line.Credit().StringFixed(shared.AmountScale),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	through, _ := time.Parse(httpx.DateLayout, req.Through)
	closing, err := h.service.CloseThrough(r.Context(), CloseInput{
		Through:                   through,
		VoucherTypeID:             req.VoucherTypeID,
		RetainedEarningsAccountID: req.RetainedEarningsAccountID,
		ActorID:                   internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "close period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClosingResponse(closing))
}

func (h *Handler) Closings(w http.ResponseWriter, r *http.Request) {
	closings, err := h.service.ListClosings(r.Context())
	if err != nil {
		h.fail(w, "list closings", err)
		return
	}
	out := make([]closingResponse, 0, len(closings))
	for _, c := range closings {
		out = append(out, toClosingResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toClosingResponse(closing periods.Closing) closingResponse {
	return closingResponse{
		ID:                        closing.ID,
		ClosedThrough:             closing.ClosedThrough.Format(httpx.DateLayout),
		TransactionID:             closing.TransactionID,
		RetainedEarningsAccountID: closing.RetainedEarningsAccountID,
		NetIncome:                 closing.NetIncome.StringFixed(shared.AmountScale),
	}
}

func (h *Handler) decodePosting(w http.ResponseWriter, r *http.Request) (PostingInput, bool) {
	var req postingRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return PostingInput{}, false
	}
	entryDate, _ := time.Parse(httpx.DateLayout, req.EntryDate)
	in := PostingInput{
		VoucherTypeID: req.VoucherTypeID,
		VoucherNo:     req.VoucherNo,
		EntryDate:     entryDate,
		Payee:         req.Payee,
		Memo:          req.Memo,
		ActorID:       internalShared.ActorFromContext(r.Context()),
	}
	if req.Reference != "" {
		in.Reference = uuid.MustParse(req.Reference)
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, PostingLineInput{
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		})
	}
	return in, true
}

func toTransactionResponse(t Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            t.ID,
		VoucherTypeID: t.VoucherTypeID,
		VoucherNo:     t.VoucherNo,
		EntryDate:     t.EntryDate.Format(httpx.DateLayout),
		Payee:         t.Payee,
		Memo:          t.Memo,
		Status:        string(t.Status),
		Kind:          string(t.Kind),
		Reference:     t.Reference.String(),
		ReversalOf:    t.ReversalOf,
		ReversedBy:    t.ReversedBy,
		VoidReason:    t.VoidReason,
		PostedAt:      t.PostedAt,
		Lines:         make([]lineResponse, 0, len(t.Lines)),
	}
	for _, l := range t.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:          l.ID,
			AccountID:   l.AccountID,
			Description: l.Description,
			Side:        string(l.Side),
			Debit:       l.Debit().StringFixed(shared.AmountScale),
			Credit:      l.Credit().StringFixed(shared.AmountScale),
		})
	}
	return resp
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

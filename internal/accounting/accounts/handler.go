package accounts

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/ledger/internal/shared"
)

// Handler exposes the chart of accounts over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the chart of accounts handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type createGroupRequest struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=128"`
	Class         string `json:"class" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME REVENUE EXPENSE"`
	NormalBalance string `json:"normal_balance" validate:"omitempty,oneof=DEBIT CREDIT"`
}

type createParentRequest struct {
	GroupID int64  `json:"group_id" validate:"required,gt=0"`
	Code    string `json:"code" validate:"required,max=32"`
	Name    string `json:"name" validate:"required,max=128"`
}

type createAccountRequest struct {
	ParentID int64  `json:"parent_id" validate:"required,gt=0"`
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=128"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.service.CreateGroup(r.Context(), CreateGroupInput{
		Code:          req.Code,
		Name:          req.Name,
		Class:         AccountClass(req.Class),
		NormalBalance: shared.Side(req.NormalBalance),
		ActorID:       internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create group", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) CreateParent(w http.ResponseWriter, r *http.Request) {
	var req createParentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.service.CreateParentAccount(r.Context(), CreateParentInput{
		GroupID: req.GroupID,
		Code:    req.Code,
		Name:    req.Name,
		ActorID: internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create parent account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		ParentID: req.ParentID,
		Code:     req.Code,
		Name:     req.Name,
		ActorID:  internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, idResponse{ID: id})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chiParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, shared.Invalid("kind", err.Error()))
		return
	}
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Deactivate(r.Context(), kind, id, internalShared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "deactivate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Hierarchy(r.Context())
	if err != nil {
		h.fail(w, "hierarchy", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

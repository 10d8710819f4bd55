// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// RespondError maps ledger errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var problem ProblemDetail
	var fields *FieldErrors
	switch {
	case errors.As(err, &fields):
		problem = ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Detail: err.Error(), Fields: fields.Fields}
	case errors.Is(err, shared.ErrNotFound):
		problem = ProblemDetail{Status: http.StatusNotFound, Title: "Not Found", Detail: err.Error()}
	case errors.Is(err, shared.ErrDuplicateCode), errors.Is(err, shared.ErrDuplicateReference), errors.Is(err, shared.ErrDuplicateVoucher):
		problem = ProblemDetail{Status: http.StatusConflict, Title: "Duplicate", Detail: err.Error()}
	case errors.Is(err, shared.ErrInUse):
		problem = ProblemDetail{Status: http.StatusConflict, Title: "In Use", Detail: err.Error()}
	case errors.Is(err, shared.ErrAlreadyVoided):
		problem = ProblemDetail{Status: http.StatusConflict, Title: "Already Voided", Detail: err.Error()}
	case errors.Is(err, shared.ErrNotPosted), errors.Is(err, shared.ErrInvalidStatus):
		problem = ProblemDetail{Status: http.StatusConflict, Title: "Invalid Status", Detail: err.Error()}
	case errors.Is(err, shared.ErrPeriodClosed):
		problem = ProblemDetail{Status: http.StatusConflict, Title: "Period Closed", Detail: err.Error()}
	case errors.Is(err, shared.ErrUnbalanced):
		problem = ProblemDetail{Status: http.StatusUnprocessableEntity, Title: "Imbalanced Entry", Detail: err.Error()}
	case errors.Is(err, shared.ErrInactiveAccount):
		problem = ProblemDetail{Status: http.StatusUnprocessableEntity, Title: "Inactive Account", Detail: err.Error()}
	case errors.Is(err, shared.ErrMalformedLine):
		problem = ProblemDetail{Status: http.StatusUnprocessableEntity, Title: "Malformed Line", Detail: err.Error()}
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrTooFewLines):
		problem = ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Detail: err.Error()}
	default:
		problem = ProblemDetail{Status: http.StatusInternalServerError, Title: "Internal Error"}
	}
	if idx, ok := shared.LineIndex(err); ok {
		problem.LineIndex = &idx
	}
	JSON(w, problem.Status, problem)
}

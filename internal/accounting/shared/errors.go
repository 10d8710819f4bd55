package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation indicates malformed input or an unknown reference.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInactiveAccount indicates a posting against a deactivated account.
	ErrInactiveAccount = errors.New("accounting: account is inactive")
	// ErrMalformedLine indicates a line without exactly one positive side.
	ErrMalformedLine = errors.New("accounting: malformed journal line")
	// ErrInUse indicates a deactivation blocked by descendants or postings.
	ErrInUse = errors.New("accounting: entity in use")
	// ErrAlreadyVoided indicates the transaction was voided before.
	ErrAlreadyVoided = errors.New("accounting: transaction already voided")
	// ErrNotPosted indicates the transaction is still a draft.
	ErrNotPosted = errors.New("accounting: transaction not posted")
	// ErrNotFound indicates a missing entity.
	ErrNotFound = errors.New("accounting: not found")
	// ErrDuplicateCode indicates a code already used at the same level.
	ErrDuplicateCode = errors.New("accounting: duplicate code")
	// ErrDuplicateReference indicates the transaction reference is already linked.
	ErrDuplicateReference = errors.New("accounting: reference already linked")
	// ErrDuplicateVoucher indicates the voucher number is already used.
	ErrDuplicateVoucher = errors.New("accounting: voucher number already used")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrPeriodClosed indicates a posting dated inside a closed range.
	ErrPeriodClosed = errors.New("accounting: period closed")
)

// ValidationError describes malformed input. LineIndex is -1 for header fields.
type ValidationError struct {
	Field     string
	LineIndex int
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.LineIndex >= 0 {
		return fmt.Sprintf("accounting: line %d %s: %s", e.LineIndex, e.Field, e.Reason)
	}
	return fmt.Sprintf("accounting: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a header-level ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, LineIndex: -1, Reason: reason}
}

// InvalidLine builds a line-level ValidationError.
func InvalidLine(idx int, field, reason string) error {
	return &ValidationError{Field: field, LineIndex: idx, Reason: reason}
}

// ImbalancedEntryError carries the totals of an unbalanced posting.
// Lines lists the indices on the heavier side.
type ImbalancedEntryError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
	Delta  decimal.Decimal
	Lines  []int
}

func (e *ImbalancedEntryError) Error() string {
	idx := make([]string, 0, len(e.Lines))
	for _, i := range e.Lines {
		idx = append(idx, fmt.Sprint(i))
	}
	return fmt.Sprintf("accounting: debits %s != credits %s (delta %s, lines [%s])",
		e.Debit.StringFixed(AmountScale), e.Credit.StringFixed(AmountScale), e.Delta.StringFixed(AmountScale), strings.Join(idx, ","))
}

func (e *ImbalancedEntryError) Unwrap() error { return ErrUnbalanced }

// InactiveAccountError reports a line referencing an inactive account.
type InactiveAccountError struct {
	AccountID int64
	LineIndex int
}

func (e *InactiveAccountError) Error() string {
	return fmt.Sprintf("accounting: line %d account %d is inactive", e.LineIndex, e.AccountID)
}

func (e *InactiveAccountError) Unwrap() error { return ErrInactiveAccount }

// MalformedLineError reports a line that is not exactly one non-negative side.
type MalformedLineError struct {
	LineIndex int
	Reason    string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("accounting: line %d %s", e.LineIndex, e.Reason)
}

func (e *MalformedLineError) Unwrap() error { return ErrMalformedLine }

// InUseError reports a blocked deactivation.
type InUseError struct {
	Kind   string
	ID     int64
	Reason string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("accounting: %s %d in use: %s", e.Kind, e.ID, e.Reason)
}

func (e *InUseError) Unwrap() error { return ErrInUse }

// AlreadyVoidedError reports a second void attempt.
type AlreadyVoidedError struct {
	TransactionID int64
}

func (e *AlreadyVoidedError) Error() string {
	return fmt.Sprintf("accounting: transaction %d already voided", e.TransactionID)
}

func (e *AlreadyVoidedError) Unwrap() error { return ErrAlreadyVoided }

// NotPostedError reports an operation that requires a posted transaction.
type NotPostedError struct {
	TransactionID int64
	Status        string
}

func (e *NotPostedError) Error() string {
	return fmt.Sprintf("accounting: transaction %d is %s, not posted", e.TransactionID, e.Status)
}

func (e *NotPostedError) Unwrap() error { return ErrNotPosted }

// LineIndex extracts the offending line index from err, if any.
func LineIndex(err error) (int, bool) {
	var v *ValidationError
	if errors.As(err, &v) && v.LineIndex >= 0 {
		return v.LineIndex, true
	}
	var m *MalformedLineError
	if errors.As(err, &m) {
		return m.LineIndex, true
	}
	var ia *InactiveAccountError
	if errors.As(err, &ia) {
		return ia.LineIndex, true
	}
	var imb *ImbalancedEntryError
	if errors.As(err, &imb) && len(imb.Lines) > 0 {
		return imb.Lines[0], true
	}
	return 0, false
}

package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// TransactionStatus enumerates the transaction lifecycle.
type TransactionStatus string

const (
	StatusDraft  TransactionStatus = "DRAFT"
	StatusPosted TransactionStatus = "POSTED"
	StatusVoided TransactionStatus = "VOIDED"
)

// InLedger reports whether lines of a transaction in this status belong to
// the posting log. A voided transaction stays in the log next to its reversal.
func (s TransactionStatus) InLedger() bool {
	return s == StatusPosted || s == StatusVoided
}

// TransactionKind distinguishes regular postings from generated ones.
type TransactionKind string

const (
	KindStandard TransactionKind = "STANDARD"
	KindReversal TransactionKind = "REVERSAL"
	KindClosing  TransactionKind = "CLOSING"
)

// VoucherType classifies transaction origin and numbers vouchers.
type VoucherType struct {
	ID        int64
	Code      string
	Name      string
	NextSeq   int64
	CreatedAt time.Time
}

// Transaction is the journal header.
type Transaction struct {
	ID            int64
	VoucherTypeID int64
	VoucherNo     string
	Payee         string
	Memo          string
	EntryDate     time.Time
	Status        TransactionStatus
	Kind          TransactionKind
	Reference     uuid.UUID
	ReversalOf    *int64
	ReversedBy    *int64
	VoidReason    string
	PostedBy      int64
	PostedAt      *time.Time
	CreatedBy     int64
	UpdatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []Line
}

// Line is a posting line; Side plus a positive Amount.
type Line struct {
	ID            int64
	TransactionID int64
	AccountID     int64
	Description   string
	Side          shared.Side
	Amount        decimal.Decimal
	CreatedBy     int64
	CreatedAt     time.Time
}

// Debit returns the amount when the line is a debit, zero otherwise.
func (l Line) Debit() decimal.Decimal {
	if l.Side == shared.Debit {
		return l.Amount
	}
	return decimal.Zero
}

// Credit returns the amount when the line is a credit, zero otherwise.
func (l Line) Credit() decimal.Decimal {
	if l.Side == shared.Credit {
		return l.Amount
	}
	return decimal.Zero
}

// AccountEntry is a ledger line with the header fields needed for replay.
type AccountEntry struct {
	EntryDate     time.Time
	TransactionID int64
	VoucherNo     string
	Payee         string
	Kind          TransactionKind
	Line          Line
}

// AccountState is the lock-time view of an account used during validation.
type AccountState struct {
	ID       int64
	IsActive bool
	Class    accounts.AccountClass
}

// Totals sums debit and credit lines.
func Totals(lines []Line) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit())
		credit = credit.Add(l.Credit())
	}
	return debit, credit
}

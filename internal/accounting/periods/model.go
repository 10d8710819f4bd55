package periods

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// Closing records a period close. Postings dated on or before ClosedThrough
// are refused afterwards.
type Closing struct {
	ID                        int64
	ClosedThrough             time.Time
	TransactionID             *int64
	RetainedEarningsAccountID int64
	NetIncome                 decimal.Decimal
	ClosedBy                  int64
	ClosedAt                  time.Time
}

// NominalBalance is the cumulative turnover of an income or expense account.
type NominalBalance struct {
	AccountID int64
	Code      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// ClosingLine is one line of the closing transaction.
type ClosingLine struct {
	AccountID   int64
	Side        shared.Side
	Amount      decimal.Decimal
	Description string
}

package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// AccountBalance models a ledger account with aggregated turnover.
type AccountBalance struct {
	AccountID     int64
	Code          string
	Name          string
	GroupCode     string
	GroupName     string
	Class         accounts.AccountClass
	NormalBalance shared.Side
	IsActive      bool
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// Closing is the net balance on the account's normal side.
func (a AccountBalance) Closing() decimal.Decimal {
	return shared.NetOnSide(a.NormalBalance, a.Debit, a.Credit)
}

// ClassAmount is the net balance on the side its class increases on. Statements
// sum these so a contra account with overridden polarity still reconciles.
func (a AccountBalance) ClassAmount() decimal.Decimal {
	return shared.NetOnSide(a.Class.DefaultNormalBalance(), a.Debit, a.Credit)
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	return a.GroupCode
}

func (a AccountBalance) hasActivity() bool {
	return !a.Debit.IsZero() || !a.Credit.IsZero()
}

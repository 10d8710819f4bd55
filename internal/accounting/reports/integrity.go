package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// UnbalancedTransaction is a ledger transaction whose lines do not net to zero.
type UnbalancedTransaction struct {
	TransactionID int64           `json:"transaction_id"`
	VoucherNo     string          `json:"voucher_no"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
}

// IntegrityReport is the outcome of the ledger self-check.
type IntegrityReport struct {
	AsOf               time.Time               `json:"as_of"`
	TrialBalanceDebit  decimal.Decimal         `json:"trial_balance_debit"`
	TrialBalanceCredit decimal.Decimal         `json:"trial_balance_credit"`
	TrialBalanceOK     bool                    `json:"trial_balance_ok"`
	BalanceSheetGap    decimal.Decimal         `json:"balance_sheet_gap"`
	BalanceSheetOK     bool                    `json:"balance_sheet_ok"`
	Unbalanced         []UnbalancedTransaction `json:"unbalanced"`
}

// OK reports whether every check passed.
func (r IntegrityReport) OK() bool {
	return r.TrialBalanceOK && r.BalanceSheetOK && len(r.Unbalanced) == 0
}

// Integrity recomputes the trial balance and balance sheet as of asOf and
// scans for unbalanced transactions, all in one snapshot. It bypasses the cache.
func (s *Service) Integrity(ctx context.Context, asOf time.Time) (IntegrityReport, error) {
	asOf = shared.DateOnly(asOf)
	if asOf.IsZero() {
		return IntegrityReport{}, shared.Invalid("as_of", "required")
	}
	report := IntegrityReport{AsOf: asOf}
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, snap Snapshot) error {
		balances, err := snap.Balances(ctx, BalanceFilter{To: asOf})
		if err != nil {
			return err
		}
		tb := BuildTrialBalance(asOf, balances)
		report.TrialBalanceDebit, report.TrialBalanceCredit = tb.TotalDebit, tb.TotalCredit
		report.TrialBalanceOK = tb.Balanced

		bs, err := balanceSheet(ctx, snap, asOf)
		if err != nil {
			return err
		}
		report.BalanceSheetGap = bs.TotalAssets.Sub(bs.TotalLiabilitiesAndEquity)
		report.BalanceSheetOK = bs.Balanced

		report.Unbalanced, err = snap.UnbalancedTransactions(ctx)
		return err
	})
	return report, err
}

package periods

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// BuildClosingLines zeroes every nominal account into the retained earnings
// account. It returns the lines in account code order followed by the
// retained earnings line, and the net income moved (income minus expense).
func BuildClosingLines(balances []NominalBalance, retainedEarningsID int64, through time.Time) ([]ClosingLine, decimal.Decimal) {
	sorted := append([]NominalBalance(nil), balances...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	label := fmt.Sprintf("Closing through %s", through.Format("2006-01-02"))
	lines := make([]ClosingLine, 0, len(sorted)+1)
	total := decimal.Zero
	for _, b := range sorted {
		net := b.Debit.Sub(b.Credit)
		if net.IsZero() {
			continue
		}
		total = total.Add(net)
		side := shared.Credit
		if net.IsNegative() {
			side = shared.Debit
		}
		lines = append(lines, ClosingLine{AccountID: b.AccountID, Side: side, Amount: net.Abs(), Description: label})
	}
	netIncome := total.Neg()
	if len(lines) == 0 {
		return nil, netIncome
	}
	if !total.IsZero() {
		side := shared.Debit
		if total.IsNegative() {
			side = shared.Credit
		}
		lines = append(lines, ClosingLine{AccountID: retainedEarningsID, Side: side, Amount: total.Abs(), Description: label})
	}
	return lines, netIncome
}

package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
)

// NetIncomeCode labels the synthetic equity line carrying unclosed earnings.
const NetIncomeCode = "NET-INCOME"

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	AsOf                      time.Time        `json:"as_of"`
	PeriodStart               time.Time        `json:"period_start"`
	Assets                    StatementSection `json:"assets"`
	Liabilities               StatementSection `json:"liabilities"`
	Equity                    StatementSection `json:"equity"`
	NetIncome                 decimal.Decimal  `json:"net_income"`
	TotalAssets               decimal.Decimal  `json:"total_assets"`
	TotalLiabilities          decimal.Decimal  `json:"total_liabilities"`
	TotalEquity               decimal.Decimal  `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal  `json:"total_liabilities_and_equity"`
	Balanced                  bool             `json:"balanced"`
}

// BuildBalanceSheet aggregates cumulative balances into assets, liabilities
// and equity, then folds netIncome into equity as a synthetic line.
func BuildBalanceSheet(asOf, periodStart time.Time, balances []AccountBalance, netIncome decimal.Decimal) BalanceSheet {
	assets := newSection("Assets")
	liabilities := newSection("Liabilities")
	equity := newSection("Equity")

	for _, acc := range balances {
		if !acc.hasActivity() {
			continue
		}
		row := StatementLine{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.ClassAmount()}
		switch acc.Class {
		case accounts.ClassAsset:
			assets.add(row)
		case accounts.ClassLiability:
			liabilities.add(row)
		case accounts.ClassEquity:
			equity.add(row)
		}
	}
	assets.sort()
	liabilities.sort()
	equity.sort()
	equity.add(StatementLine{Code: NetIncomeCode, Name: "Net Income", Amount: netIncome})

	total := liabilities.Total.Add(equity.Total)
	return BalanceSheet{
		AsOf:                      asOf,
		PeriodStart:               periodStart,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		NetIncome:                 netIncome,
		TotalAssets:               assets.Total,
		TotalLiabilities:          liabilities.Total,
		TotalEquity:               equity.Total,
		TotalLiabilitiesAndEquity: total,
		Balanced:                  assets.Total.Equal(total),
	}
}

package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
)

// StatementLine is an account amount on a financial statement.
type StatementLine struct {
	AccountID int64           `json:"account_id,omitempty"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// StatementSection groups accounts by class.
type StatementSection struct {
	Label    string          `json:"label"`
	Accounts []StatementLine `json:"accounts"`
	Total    decimal.Decimal `json:"total"`
}

func newSection(label string) StatementSection {
	return StatementSection{Label: label, Accounts: []StatementLine{}, Total: decimal.Zero}
}

func (s *StatementSection) add(line StatementLine) {
	s.Accounts = append(s.Accounts, line)
	s.Total = s.Total.Add(line.Amount)
}

func (s *StatementSection) sort() {
	sort.Slice(s.Accounts, func(i, j int) bool { return s.Accounts[i].Code < s.Accounts[j].Code })
}

// IncomeStatement contains the structured output for a period.
type IncomeStatement struct {
	From      time.Time        `json:"from"`
	To        time.Time        `json:"to"`
	Income    StatementSection `json:"income"`
	Expense   StatementSection `json:"expense"`
	NetIncome decimal.Decimal  `json:"net_income"`
}

// BuildIncomeStatement aggregates income and expense accounts. Other classes
// are ignored; accounts without activity in the window are omitted.
func BuildIncomeStatement(from, to time.Time, balances []AccountBalance) IncomeStatement {
	income := newSection("Income")
	expense := newSection("Expense")

	for _, acc := range balances {
		if !acc.hasActivity() {
			continue
		}
		row := StatementLine{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.ClassAmount()}
		switch acc.Class {
		case accounts.ClassIncome:
			income.add(row)
		case accounts.ClassExpense:
			expense.add(row)
		}
	}
	income.sort()
	expense.sort()

	return IncomeStatement{
		From:      from,
		To:        to,
		Income:    income,
		Expense:   expense,
		NetIncome: income.Total.Sub(expense.Total),
	}
}

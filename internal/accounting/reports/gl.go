package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// GeneralLedgerInput selects an account and a date window. Opening overrides
// the starting balance; CarryForward derives it from entries before From.
type GeneralLedgerInput struct {
	AccountID    int64
	From         time.Time
	To           time.Time
	Opening      *decimal.Decimal
	CarryForward bool
}

// GeneralLedgerRow is one replayed line with its running balance.
type GeneralLedgerRow struct {
	Date           time.Time       `json:"date"`
	TransactionID  int64           `json:"transaction_id"`
	LineID         int64           `json:"line_id"`
	VoucherNo      string          `json:"voucher_no"`
	Description    string          `json:"description"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// GeneralLedger is the replay of one account over a window.
type GeneralLedger struct {
	AccountID     int64              `json:"account_id"`
	Code          string             `json:"code"`
	Name          string             `json:"name"`
	NormalBalance shared.Side        `json:"normal_balance"`
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	Opening       decimal.Decimal    `json:"opening"`
	Rows          []GeneralLedgerRow `json:"rows"`
	TotalDebit    decimal.Decimal    `json:"total_debit"`
	TotalCredit   decimal.Decimal    `json:"total_credit"`
	Closing       decimal.Decimal    `json:"closing"`
}

// Contribution is the signed effect of a line on an account balance.
func Contribution(normal shared.Side, line journals.Line) decimal.Decimal {
	return shared.Signed(normal, line.Side, line.Amount)
}

// SumContributions folds entries into a balance starting at opening.
func SumContributions(normal shared.Side, opening decimal.Decimal, entries []journals.AccountEntry) decimal.Decimal {
	balance := opening
	for _, e := range entries {
		balance = balance.Add(Contribution(normal, e.Line))
	}
	return balance
}

// BuildGeneralLedger replays entries, which must already be ordered by
// (date, transaction, line), into running balances.
func BuildGeneralLedger(account accounts.LedgerAccount, from, to time.Time, opening decimal.Decimal, entries []journals.AccountEntry) GeneralLedger {
	gl := GeneralLedger{
		AccountID:     account.ID,
		Code:          account.Code,
		Name:          account.Name,
		NormalBalance: account.NormalBalance,
		From:          from,
		To:            to,
		Opening:       opening,
		Rows:          make([]GeneralLedgerRow, 0, len(entries)),
		TotalDebit:    decimal.Zero,
		TotalCredit:   decimal.Zero,
	}
	balance := opening
	for _, e := range entries {
		balance = balance.Add(Contribution(account.NormalBalance, e.Line))
		desc := e.Line.Description
		if desc == "" {
			desc = e.Payee
		}
		row := GeneralLedgerRow{
			Date:           e.EntryDate,
			TransactionID:  e.TransactionID,
			LineID:         e.Line.ID,
			VoucherNo:      e.VoucherNo,
			Description:    desc,
			Debit:          e.Line.Debit(),
			Credit:         e.Line.Credit(),
			RunningBalance: balance,
		}
		gl.TotalDebit = gl.TotalDebit.Add(row.Debit)
		gl.TotalCredit = gl.TotalCredit.Add(row.Credit)
		gl.Rows = append(gl.Rows, row)
	}
	gl.Closing = balance
	return gl
}

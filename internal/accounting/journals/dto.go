package journals

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// PostingInput groups fields required to create a transaction.
type PostingInput struct {
	VoucherTypeID int64
	VoucherNo     string
	EntryDate     time.Time
	Payee         string
	Memo          string
	Reference     uuid.UUID
	ActorID       int64
	Lines         []PostingLineInput
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	TransactionID int64
	Reason        string
	ActorID       int64
}

// CloseInput wraps parameters for a period close.
type CloseInput struct {
	Through                   time.Time
	VoucherTypeID             int64
	RetainedEarningsAccountID int64
	ActorID                   int64
}

// validateHeader checks fields that need no storage lookup.
func (in *PostingInput) validateHeader() error {
	in.VoucherNo = strings.TrimSpace(in.VoucherNo)
	in.Payee = strings.TrimSpace(in.Payee)
	in.Memo = strings.TrimSpace(in.Memo)
	in.EntryDate = shared.DateOnly(in.EntryDate)
	if in.VoucherTypeID <= 0 {
		return shared.Invalid("voucher_type_id", "required")
	}
	if in.EntryDate.IsZero() {
		return shared.Invalid("entry_date", "required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	return nil
}

// ValidateLines applies the posting rules in order: (a) account exists and
// is active, (b) exactly one non-negative side per line, (c) debits equal
// credits. accounts holds the lock-time state of every referenced account.
// requireBalance is false for drafts.
func ValidateLines(lines []PostingLineInput, accounts map[int64]AccountState, requireBalance bool) ([]Line, error) {
	for idx, line := range lines {
		state, ok := accounts[line.AccountID]
		if line.AccountID <= 0 || !ok {
			return nil, shared.InvalidLine(idx, "account_id", "unknown account")
		}
		if !state.IsActive {
			return nil, &shared.InactiveAccountError{AccountID: line.AccountID, LineIndex: idx}
		}
	}
	out := make([]Line, 0, len(lines))
	for idx, line := range lines {
		normalized, err := normalizeLine(idx, line)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	if !requireBalance {
		return out, nil
	}
	debit, credit := Totals(out)
	if !debit.Equal(credit) {
		heavy := shared.Debit
		if credit.GreaterThan(debit) {
			heavy = shared.Credit
		}
		var offending []int
		for idx, l := range out {
			if l.Side == heavy {
				offending = append(offending, idx)
			}
		}
		return nil, &shared.ImbalancedEntryError{
			Debit:  debit,
			Credit: credit,
			Delta:  debit.Sub(credit),
			Lines:  offending,
		}
	}
	return out, nil
}

func normalizeLine(idx int, line PostingLineInput) (Line, error) {
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return Line{}, &shared.MalformedLineError{LineIndex: idx, Reason: "negative amount"}
	}
	hasDebit, hasCredit := line.Debit.IsPositive(), line.Credit.IsPositive()
	if hasDebit == hasCredit {
		if hasDebit {
			return Line{}, &shared.MalformedLineError{LineIndex: idx, Reason: "cannot be both debit and credit"}
		}
		return Line{}, &shared.MalformedLineError{LineIndex: idx, Reason: "requires a debit or credit amount"}
	}
	side, amount := shared.Debit, line.Debit
	if hasCredit {
		side, amount = shared.Credit, line.Credit
	}
	if !shared.HasScale(amount) {
		return Line{}, &shared.MalformedLineError{LineIndex: idx, Reason: "amount exceeds two decimal places"}
	}
	return Line{
		AccountID:   line.AccountID,
		Description: strings.TrimSpace(line.Description),
		Side:        side,
		Amount:      amount,
	}, nil
}

// AccountIDs returns the distinct accounts referenced by the lines.
func (in PostingInput) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(in.Lines))
	ids := make([]int64, 0, len(in.Lines))
	for _, l := range in.Lines {
		if _, ok := seen[l.AccountID]; ok || l.AccountID <= 0 {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	return ids
}

func reverseLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, Line{
			AccountID:   line.AccountID,
			Description: line.Description,
			Side:        line.Side.Opposite(),
			Amount:      line.Amount,
		})
	}
	return out
}

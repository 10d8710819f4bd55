package accounting

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	acctshared "github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/shared"
	_ "github.com/odyssey-erp/ledger/testing"
)

type fixture struct {
	ledger      *Ledger
	audit       *shared.MemoryAuditLog
	voucherType int64
	closingType int64
	current     int64

	cash, bank, capital, retained, revenue, rent int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, Options{})
}

func newFixtureWith(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	audit := &shared.MemoryAuditLog{}
	opts.Audit = audit
	ledger := New(MemoryStores(), opts)
	f := &fixture{ledger: ledger, audit: audit}

	group := func(code, name string, class accounts.AccountClass) int64 {
		id, err := ledger.Accounts.CreateGroup(ctx, accounts.CreateGroupInput{Code: code, Name: name, Class: class, ActorID: 1})
		require.NoError(t, err)
		return id
	}
	parent := func(groupID int64, code, name string) int64 {
		id, err := ledger.Accounts.CreateParentAccount(ctx, accounts.CreateParentInput{GroupID: groupID, Code: code, Name: name, ActorID: 1})
		require.NoError(t, err)
		return id
	}
	account := func(parentID int64, code, name string) int64 {
		id, err := ledger.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{ParentID: parentID, Code: code, Name: name, ActorID: 1})
		require.NoError(t, err)
		return id
	}

	current := parent(group("1", "Assets", accounts.ClassAsset), "11", "Current Assets")
	f.current = current
	group("2", "Liabilities", accounts.ClassLiability)
	equity := parent(group("3", "Equity", accounts.ClassEquity), "31", "Owner Equity")
	income := parent(group("4", "Income", accounts.ClassIncome), "41", "Operating Income")
	expense := parent(group("5", "Expense", accounts.ClassExpense), "51", "Operating Expense")

	f.cash = account(current, "1001", "Cash")
	f.bank = account(current, "1002", "Bank")
	f.capital = account(equity, "3001", "Capital")
	f.retained = account(equity, "3002", "Retained Earnings")
	f.revenue = account(income, "4001", "Service Revenue")
	f.rent = account(expense, "5001", "Rent")

	vt, err := ledger.Journals.CreateVoucherType(ctx, "jv", "Journal Voucher", 1)
	require.NoError(t, err)
	f.voucherType = vt.ID
	cl, err := ledger.Journals.CreateVoucherType(ctx, "CL", "Closing", 1)
	require.NoError(t, err)
	f.closingType = cl.ID
	return f
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func amt(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dr(accountID int64, amount string) journals.PostingLineInput {
	return journals.PostingLineInput{AccountID: accountID, Debit: amt(amount)}
}

func cr(accountID int64, amount string) journals.PostingLineInput {
	return journals.PostingLineInput{AccountID: accountID, Credit: amt(amount)}
}

func (f *fixture) input(date string, lines ...journals.PostingLineInput) journals.PostingInput {
	return journals.PostingInput{
		VoucherTypeID: f.voucherType,
		EntryDate:     day(date),
		Payee:         "Walk-in",
		ActorID:       7,
		Lines:         lines,
	}
}

func (f *fixture) post(t *testing.T, date string, lines ...journals.PostingLineInput) journals.Transaction {
	t.Helper()
	txn, err := f.ledger.Journals.PostTransaction(context.Background(), f.input(date, lines...))
	require.NoError(t, err)
	return txn
}

func requireBalancedReports(t *testing.T, l *Ledger, asOf time.Time) {
	t.Helper()
	ctx := context.Background()
	tb, err := l.Reports.TrialBalance(ctx, asOf)
	require.NoError(t, err)
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit), "trial balance %s != %s", tb.TotalDebit, tb.TotalCredit)
	require.True(t, tb.Balanced)
	bs, err := l.Reports.BalanceSheet(ctx, asOf)
	require.NoError(t, err)
	require.True(t, bs.Balanced, "assets %s, liabilities+equity %s", bs.TotalAssets, bs.TotalLiabilitiesAndEquity)
}

func TestCashAndServiceRevenueScenario(t *testing.T) {
	ctx := context.Background()
	audit := &shared.MemoryAuditLog{}
	l := New(MemoryStores(), Options{Audit: audit})

	assets, err := l.Accounts.CreateGroup(ctx, accounts.CreateGroupInput{Code: "1", Name: "Assets", Class: accounts.ClassAsset, NormalBalance: acctshared.Debit})
	require.NoError(t, err)
	currentAssets, err := l.Accounts.CreateParentAccount(ctx, accounts.CreateParentInput{GroupID: assets, Code: "11", Name: "Current Assets"})
	require.NoError(t, err)
	cash, err := l.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{ParentID: currentAssets, Code: "1001", Name: "Cash"})
	require.NoError(t, err)
	income, err := l.Accounts.CreateGroup(ctx, accounts.CreateGroupInput{Code: "4", Name: "Income", Class: accounts.ClassIncome, NormalBalance: acctshared.Credit})
	require.NoError(t, err)
	operating, err := l.Accounts.CreateParentAccount(ctx, accounts.CreateParentInput{GroupID: income, Code: "41", Name: "Operating Income"})
	require.NoError(t, err)
	revenue, err := l.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{ParentID: operating, Code: "4001", Name: "Service Revenue"})
	require.NoError(t, err)
	vt, err := l.Journals.CreateVoucherType(ctx, "RV", "Receipt Voucher", 0)
	require.NoError(t, err)

	txn, err := l.Journals.PostTransaction(ctx, journals.PostingInput{
		VoucherTypeID: vt.ID,
		EntryDate:     day("2024-01-10"),
		Payee:         "Client",
		Lines:         []journals.PostingLineInput{dr(cash, "500"), cr(revenue, "500")},
	})
	require.NoError(t, err)
	require.Equal(t, "RV-000001", txn.VoucherNo)
	require.Equal(t, journals.StatusPosted, txn.Status)

	gl, err := l.Reports.GeneralLedger(ctx, reports.GeneralLedgerInput{AccountID: cash})
	require.NoError(t, err)
	require.Len(t, gl.Rows, 1)
	require.True(t, gl.Rows[0].RunningBalance.Equal(amt("500")))

	tb, err := l.Reports.TrialBalance(ctx, day("2024-01-31"))
	require.NoError(t, err)
	rows := tb.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, "1001", rows[0].Code)
	require.True(t, rows[0].Debit.Equal(amt("500")))
	require.Equal(t, "4001", rows[1].Code)
	require.True(t, rows[1].Credit.Equal(amt("500")))
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit))

	is, err := l.Reports.IncomeStatement(ctx, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.True(t, is.NetIncome.Equal(amt("500")))

	bs, err := l.Reports.BalanceSheet(ctx, day("2024-01-31"))
	require.NoError(t, err)
	require.True(t, bs.TotalAssets.Equal(amt("500")))
	require.True(t, bs.TotalEquity.Equal(amt("500")))
	require.True(t, bs.Balanced)

	require.Contains(t, audit.Actions(), "ledger.transaction.post")
}

func TestPostTransactionValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Accounts.Deactivate(ctx, accounts.KindAccount, f.bank, 1))

	// inactive account wins over a malformed and unbalanced entry
	_, err := f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10",
		dr(f.cash, "100"),
		journals.PostingLineInput{AccountID: f.revenue},
		cr(f.bank, "1"),
	))
	var inactive *acctshared.InactiveAccountError
	require.ErrorAs(t, err, &inactive)
	require.Equal(t, 2, inactive.LineIndex)

	// unknown account is a validation error carrying the line index
	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "100"), cr(9999, "100")))
	var verr *acctshared.ValidationError
	require.ErrorAs(t, err, &verr)
	idx, ok := acctshared.LineIndex(err)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	// malformed wins over imbalance
	both := journals.PostingLineInput{AccountID: f.revenue, Debit: amt("5"), Credit: amt("5")}
	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "100"), both))
	var malformed *acctshared.MalformedLineError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, 1, malformed.LineIndex)

	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "-100"), cr(f.revenue, "-100")))
	require.ErrorIs(t, err, acctshared.ErrMalformedLine)

	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "100.005"), cr(f.revenue, "100.005")))
	require.ErrorIs(t, err, acctshared.ErrMalformedLine)

	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "100"), cr(f.revenue, "60"), cr(f.capital, "39.99")))
	var imbalance *acctshared.ImbalancedEntryError
	require.ErrorAs(t, err, &imbalance)
	require.True(t, imbalance.Delta.Equal(amt("0.01")))
	require.Equal(t, []int{0}, imbalance.Lines)

	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "100")))
	require.ErrorIs(t, err, acctshared.ErrTooFewLines)
}

func TestFailedPostingLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "100"), cr(f.revenue, "90")))
	require.ErrorIs(t, err, acctshared.ErrUnbalanced)

	entries, err := f.ledger.Journals.AccountEntries(ctx, f.cash, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, entries)

	txn := f.post(t, "2024-01-10", dr(f.cash, "100"), cr(f.revenue, "100"))
	require.Equal(t, "JV-000001", txn.VoucherNo, "a rejected posting must not consume a voucher number")
	require.NotEqual(t, uuid.Nil, txn.Reference)
}

func TestDuplicateReferenceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.input("2024-01-10", dr(f.cash, "100"), cr(f.revenue, "100"))
	in.Reference = uuid.New()
	_, err := f.ledger.Journals.PostTransaction(ctx, in)
	require.NoError(t, err)

	_, err = f.ledger.Journals.PostTransaction(ctx, in)
	require.ErrorIs(t, err, acctshared.ErrDuplicateReference)
}

func TestVoidProducesExactReversal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.post(t, "2024-01-10", dr(f.cash, "250.75"), cr(f.revenue, "200"), cr(f.capital, "50.75"))

	reversal, err := f.ledger.Journals.VoidTransaction(ctx, journals.VoidInput{TransactionID: original.ID, Reason: "typo", ActorID: 3})
	require.NoError(t, err)
	require.Equal(t, journals.KindReversal, reversal.Kind)
	require.Equal(t, journals.StatusPosted, reversal.Status)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.True(t, reversal.EntryDate.Equal(original.EntryDate))
	require.Len(t, reversal.Lines, len(original.Lines))
	for i, line := range reversal.Lines {
		require.Equal(t, original.Lines[i].AccountID, line.AccountID)
		require.Equal(t, original.Lines[i].Side.Opposite(), line.Side)
		require.True(t, original.Lines[i].Amount.Equal(line.Amount))
	}

	voided, err := f.ledger.Journals.GetTransaction(ctx, original.ID)
	require.NoError(t, err)
	require.Equal(t, journals.StatusVoided, voided.Status)
	require.NotNil(t, voided.ReversedBy)
	require.Equal(t, reversal.ID, *voided.ReversedBy)
	require.Equal(t, "typo", voided.VoidReason)

	_, err = f.ledger.Journals.VoidTransaction(ctx, journals.VoidInput{TransactionID: original.ID, Reason: "again"})
	var already *acctshared.AlreadyVoidedError
	require.ErrorAs(t, err, &already)

	_, err = f.ledger.Journals.VoidTransaction(ctx, journals.VoidInput{TransactionID: reversal.ID, Reason: "undo"})
	require.ErrorIs(t, err, acctshared.ErrInvalidStatus)

	gl, err := f.ledger.Reports.GeneralLedger(ctx, reports.GeneralLedgerInput{AccountID: f.cash})
	require.NoError(t, err)
	require.Len(t, gl.Rows, 2)
	require.True(t, gl.Closing.IsZero())
	requireBalancedReports(t, f.ledger, day("2024-01-31"))
}

func TestConcurrentVoidsReverseOnce(t *testing.T) {
	f := newFixture(t)
	original := f.post(t, "2024-01-10", dr(f.cash, "100"), cr(f.revenue, "100"))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.Journals.VoidTransaction(context.Background(), journals.VoidInput{TransactionID: original.ID, Reason: "dup"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, acctshared.ErrAlreadyVoided)
	}
	require.Equal(t, 1, succeeded)

	entries, err := f.ledger.Journals.AccountEntries(context.Background(), f.cash, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestVoidDraftIsNotPosted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.ledger.Journals.SaveDraft(ctx, f.input("2024-01-10", dr(f.cash, "100"), cr(f.revenue, "40")))
	require.NoError(t, err)
	require.Equal(t, journals.StatusDraft, draft.Status)
	require.Empty(t, draft.VoucherNo)

	_, err = f.ledger.Journals.VoidTransaction(ctx, journals.VoidInput{TransactionID: draft.ID, Reason: "x"})
	var notPosted *acctshared.NotPostedError
	require.ErrorAs(t, err, &notPosted)

	_, err = f.ledger.Journals.VoidTransaction(ctx, journals.VoidInput{TransactionID: 404, Reason: "x"})
	require.ErrorIs(t, err, acctshared.ErrNotFound)
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unbalanced, err := f.ledger.Journals.SaveDraft(ctx, f.input("2024-01-10", dr(f.cash, "100"), cr(f.revenue, "40")))
	require.NoError(t, err)
	_, err = f.ledger.Journals.PostDraft(ctx, unbalanced.ID, 2)
	require.ErrorIs(t, err, acctshared.ErrUnbalanced)

	tb, err := f.ledger.Reports.TrialBalance(ctx, day("2024-01-31"))
	require.NoError(t, err)
	require.True(t, tb.TotalDebit.IsZero(), "drafts never reach reports")

	require.NoError(t, f.ledger.Journals.DeleteDraft(ctx, unbalanced.ID, 2))
	_, err = f.ledger.Journals.GetTransaction(ctx, unbalanced.ID)
	require.ErrorIs(t, err, acctshared.ErrNotFound)

	draft, err := f.ledger.Journals.SaveDraft(ctx, f.input("2024-01-11", dr(f.cash, "100"), cr(f.revenue, "100")))
	require.NoError(t, err)
	posted, err := f.ledger.Journals.PostDraft(ctx, draft.ID, 2)
	require.NoError(t, err)
	require.Equal(t, journals.StatusPosted, posted.Status)
	require.Equal(t, "JV-000001", posted.VoucherNo)

	_, err = f.ledger.Journals.PostDraft(ctx, draft.ID, 2)
	require.ErrorIs(t, err, acctshared.ErrInvalidStatus)
	err = f.ledger.Journals.DeleteDraft(ctx, draft.ID, 2)
	require.ErrorIs(t, err, acctshared.ErrInvalidStatus)
}

func TestDeactivateReferencedAccountIsInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, "2024-01-10", dr(f.cash, "100"), cr(f.revenue, "100"))

	err := f.ledger.Accounts.Deactivate(ctx, accounts.KindAccount, f.cash, 1)
	var inUse *acctshared.InUseError
	require.ErrorAs(t, err, &inUse)

	_, err = f.ledger.Journals.SaveDraft(ctx, f.input("2024-01-10", dr(f.bank, "5"), cr(f.capital, "5")))
	require.NoError(t, err)
	err = f.ledger.Accounts.Deactivate(ctx, accounts.KindAccount, f.bank, 1)
	require.ErrorIs(t, err, acctshared.ErrInUse, "draft lines also block deactivation")

	require.NoError(t, f.ledger.Accounts.Deactivate(ctx, accounts.KindAccount, f.rent, 1))
	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-12", dr(f.rent, "10"), cr(f.cash, "10")))
	require.ErrorIs(t, err, acctshared.ErrInactiveAccount)
}

func TestReportsStayBalancedAcrossPostings(t *testing.T) {
	f := newFixture(t)
	f.post(t, "2024-01-01", dr(f.bank, "10000"), cr(f.capital, "10000"))
	f.post(t, "2024-01-05", dr(f.cash, "1200.40"), cr(f.revenue, "1200.40"))
	f.post(t, "2024-01-07", dr(f.rent, "800"), cr(f.bank, "800"))
	f.post(t, "2024-02-02", dr(f.cash, "99.99"), cr(f.revenue, "99.99"))
	f.post(t, "2024-02-03", dr(f.rent, "0.01"), cr(f.cash, "0.01"))

	for _, asOf := range []string{"2023-12-31", "2024-01-01", "2024-01-06", "2024-01-31", "2024-02-29"} {
		requireBalancedReports(t, f.ledger, day(asOf))
	}

	ctx := context.Background()
	is, err := f.ledger.Reports.IncomeStatement(ctx, day("2024-02-01"), day("2024-02-29"))
	require.NoError(t, err)
	require.True(t, is.NetIncome.Equal(amt("99.98")))
	bs, err := f.ledger.Reports.BalanceSheet(ctx, day("2024-02-29"))
	require.NoError(t, err)
	require.True(t, bs.NetIncome.Equal(amt("500.38")), "net income is cumulative since inception without a closing")
	require.True(t, bs.TotalAssets.Equal(amt("10500.38")))

	integrity, err := f.ledger.Reports.Integrity(ctx, day("2024-02-29"))
	require.NoError(t, err)
	require.True(t, integrity.OK(), "%+v", integrity)
}

func TestGeneralLedgerMatchesEntryReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, "2024-01-03", dr(f.cash, "300"), cr(f.revenue, "300"))
	f.post(t, "2024-01-02", dr(f.rent, "120"), cr(f.cash, "120"))
	f.post(t, "2024-01-03", dr(f.cash, "15.50"), cr(f.capital, "15.50"))

	gl, err := f.ledger.Reports.GeneralLedger(ctx, reports.GeneralLedgerInput{AccountID: f.cash, To: day("2024-01-31")})
	require.NoError(t, err)
	require.Len(t, gl.Rows, 3)
	require.True(t, gl.Rows[0].Date.Equal(day("2024-01-02")), "entries are ordered by date first")

	entries, err := f.ledger.Journals.AccountEntries(ctx, f.cash, time.Time{}, day("2024-01-31"))
	require.NoError(t, err)
	for i, row := range gl.Rows {
		replayed := reports.SumContributions(acctshared.Debit, decimal.Zero, entries[:i+1])
		require.True(t, row.RunningBalance.Equal(replayed), "row %d", i)
	}

	previous, err := f.ledger.Reports.GeneralLedger(ctx, reports.GeneralLedgerInput{AccountID: f.cash, To: day("2024-01-02")})
	require.NoError(t, err)
	f.post(t, "2024-01-04", dr(f.cash, "1"), cr(f.revenue, "1"))
	next, err := f.ledger.Reports.GeneralLedger(ctx, reports.GeneralLedgerInput{
		AccountID:    f.cash,
		From:         day("2024-01-03"),
		To:           day("2024-01-04"),
		CarryForward: true,
	})
	require.NoError(t, err)
	require.True(t, next.Opening.Equal(previous.Closing))
	full, err := f.ledger.Reports.GeneralLedger(ctx, reports.GeneralLedgerInput{AccountID: f.cash, To: day("2024-01-04")})
	require.NoError(t, err)
	require.True(t, full.Closing.Equal(next.Closing))
	require.True(t, full.Closing.Equal(amt("196.50")))
}

func TestPeriodClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, "2024-01-01", dr(f.bank, "1000"), cr(f.capital, "1000"))
	sale := f.post(t, "2024-01-15", dr(f.cash, "700"), cr(f.revenue, "700"))
	f.post(t, "2024-01-20", dr(f.rent, "200"), cr(f.bank, "200"))

	closing, err := f.ledger.Journals.CloseThrough(ctx, journals.CloseInput{
		Through:                   day("2024-01-31"),
		VoucherTypeID:             f.closingType,
		RetainedEarningsAccountID: f.retained,
		ActorID:                   9,
	})
	require.NoError(t, err)
	require.True(t, closing.NetIncome.Equal(amt("500")))
	require.NotNil(t, closing.TransactionID)

	closingTxn, err := f.ledger.Journals.GetTransaction(ctx, *closing.TransactionID)
	require.NoError(t, err)
	require.Equal(t, journals.KindClosing, closingTxn.Kind)
	require.Equal(t, "CL-000001", closingTxn.VoucherNo)

	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-31", dr(f.cash, "1"), cr(f.revenue, "1")))
	require.ErrorIs(t, err, acctshared.ErrPeriodClosed)
	_, err = f.ledger.Journals.CloseThrough(ctx, journals.CloseInput{Through: day("2024-01-15"), VoucherTypeID: f.closingType, RetainedEarningsAccountID: f.retained})
	require.ErrorIs(t, err, acctshared.ErrPeriodClosed)

	is, err := f.ledger.Reports.IncomeStatement(ctx, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.True(t, is.NetIncome.Equal(amt("500")), "closing entries are excluded from the income statement")

	bs, err := f.ledger.Reports.BalanceSheet(ctx, day("2024-01-31"))
	require.NoError(t, err)
	require.True(t, bs.NetIncome.IsZero())
	require.True(t, bs.Balanced)

	reversal, err := f.ledger.Journals.VoidTransaction(ctx, journals.VoidInput{TransactionID: sale.ID, Reason: "cancelled", ActorID: 9})
	require.NoError(t, err)
	require.True(t, reversal.EntryDate.Equal(day("2024-02-01")), "reversal of a closed entry lands after the close")

	bs, err = f.ledger.Reports.BalanceSheet(ctx, day("2024-02-29"))
	require.NoError(t, err)
	require.True(t, bs.PeriodStart.Equal(day("2024-02-01")))
	require.True(t, bs.NetIncome.Equal(amt("-700")))
	requireBalancedReports(t, f.ledger, day("2024-02-29"))

	_, err = f.ledger.Journals.CloseThrough(ctx, journals.CloseInput{Through: day("2024-02-29"), VoucherTypeID: f.closingType, RetainedEarningsAccountID: f.cash})
	require.ErrorIs(t, err, acctshared.ErrValidation, "retained earnings must be equity")

	require.Contains(t, f.audit.Actions(), "ledger.period.close")
}

func TestConcurrentPostingsKeepLedgerConsistent(t *testing.T) {
	f := newFixture(t)
	const workers = 16
	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := fmt.Sprintf("%d.%02d", i+1, i)
			txn, err := f.ledger.Journals.PostTransaction(context.Background(), f.input("2024-03-01", dr(f.cash, amount), cr(f.revenue, amount)))
			numbers[i], errs[i] = txn.VoucherNo, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range numbers {
		require.NoError(t, errs[i])
		require.False(t, seen[numbers[i]], "voucher %s issued twice", numbers[i])
		seen[numbers[i]] = true
	}
	requireBalancedReports(t, f.ledger, day("2024-03-31"))

	entries, err := f.ledger.Journals.AccountEntries(context.Background(), f.revenue, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, workers)
}

func TestHierarchyAfterSetup(t *testing.T) {
	f := newFixture(t)
	tree, err := f.ledger.Accounts.Hierarchy(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 5)
	require.Equal(t, "1", tree[0].Code)
	require.Len(t, tree[0].Parents, 1)
	require.Len(t, tree[0].Parents[0].Accounts, 2)
	require.Equal(t, "1001", tree[0].Parents[0].Accounts[0].Code)
	require.Empty(t, tree[1].Parents)

	la, err := f.ledger.Accounts.LedgerAccount(context.Background(), f.revenue)
	require.NoError(t, err)
	require.Equal(t, acctshared.Credit, la.NormalBalance)
}

type writeRecorder struct {
	mu   sync.Mutex
	errs map[string][]error
}

func (r *writeRecorder) ObserveLedgerWrite(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errs == nil {
		r.errs = map[string][]error{}
	}
	r.errs[op] = append(r.errs[op], err)
}

func (r *writeRecorder) outcomes(op string) []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs[op]...)
}

type cachedFixture struct {
	*fixture
	redis    *miniredis.Miniredis
	observed *writeRecorder
	logs     *bytes.Buffer
}

func newCachedFixture(t *testing.T) *cachedFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	observed := &writeRecorder{}
	logs := &bytes.Buffer{}
	f := newFixtureWith(t, Options{
		Cache:    reports.NewCache(client, 10*time.Minute),
		Observer: observed,
		Logger:   slog.New(slog.NewTextHandler(logs, nil)),
	})
	return &cachedFixture{fixture: f, redis: mr, observed: observed, logs: logs}
}

func rowCodes(tb reports.TrialBalance) []string {
	var codes []string
	for _, row := range tb.Rows() {
		codes = append(codes, row.Code)
	}
	return codes
}

func TestChartChangesRefreshCachedTrialBalance(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()
	asOf := day("2024-01-31")

	before, err := f.ledger.Reports.TrialBalance(ctx, asOf)
	require.NoError(t, err)
	require.Contains(t, rowCodes(before), "1002")

	petty, err := f.ledger.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{ParentID: f.current, Code: "1003", Name: "Petty Cash", ActorID: 1})
	require.NoError(t, err)
	require.NotZero(t, petty)
	require.NoError(t, f.ledger.Accounts.Deactivate(ctx, accounts.KindAccount, f.bank, 1))

	after, err := f.ledger.Reports.TrialBalance(ctx, asOf)
	require.NoError(t, err)
	codes := rowCodes(after)
	require.Contains(t, codes, "1003")
	require.NotContains(t, codes, "1002")
	for _, err := range f.observed.outcomes(acctshared.OpCacheInvalidate) {
		require.NoError(t, err)
	}
}

func TestCommittedPostingRefreshesCacheDespiteCancelledCaller(t *testing.T) {
	f := newCachedFixture(t)
	asOf := day("2024-01-31")

	primed, err := f.ledger.Reports.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, primed.TotalDebit.IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.ledger.Journals.PostTransaction(ctx, f.input("2024-01-10", dr(f.cash, "500"), cr(f.revenue, "500")))
	require.NoError(t, err)

	tb, err := f.ledger.Reports.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, tb.TotalDebit.Equal(amt("500")), "total debit %s", tb.TotalDebit)
	outcomes := f.observed.outcomes(acctshared.OpCacheInvalidate)
	require.NotEmpty(t, outcomes)
	require.NoError(t, outcomes[len(outcomes)-1])
}

func TestFailedInvalidationIsLoggedAndCounted(t *testing.T) {
	f := newCachedFixture(t)
	f.redis.Close()

	txn := f.post(t, "2024-01-10", dr(f.cash, "500"), cr(f.revenue, "500"))
	require.Equal(t, journals.StatusPosted, txn.Status)

	outcomes := f.observed.outcomes(acctshared.OpCacheInvalidate)
	require.NotEmpty(t, outcomes)
	require.Error(t, outcomes[len(outcomes)-1])
	require.Contains(t, f.logs.String(), "report cache invalidation failed")
	require.Contains(t, f.logs.String(), "ledger.transaction.post")
}

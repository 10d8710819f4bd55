package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/app"
)

func seededRuntime(t *testing.T) (Runtime, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	ledger := accounting.New(accounting.MemoryStores(), accounting.Options{})

	group := func(code string, class accounts.AccountClass) int64 {
		id, err := ledger.Accounts.CreateGroup(ctx, accounts.CreateGroupInput{Code: code, Name: code, Class: class, ActorID: 1})
		require.NoError(t, err)
		id, err = ledger.Accounts.CreateParentAccount(ctx, accounts.CreateParentInput{GroupID: id, Code: code + "1", Name: code, ActorID: 1})
		require.NoError(t, err)
		id, err = ledger.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{ParentID: id, Code: code + "001", Name: code, ActorID: 1})
		require.NoError(t, err)
		return id
	}
	cash := group("1", accounts.ClassAsset)
	revenue := group("4", accounts.ClassIncome)

	vt, err := ledger.Journals.CreateVoucherType(ctx, "RV", "Receipt", 1)
	require.NoError(t, err)
	_, err = ledger.Journals.PostTransaction(ctx, journals.PostingInput{
		VoucherTypeID: vt.ID,
		EntryDate:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		ActorID:       1,
		Lines: []journals.PostingLineInput{
			{AccountID: cash, Debit: decimal.NewFromInt(500)},
			{AccountID: revenue, Credit: decimal.NewFromInt(500)},
		},
	})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return Runtime{
		Out:        out,
		LoadConfig: func() (*app.Config, error) { return &app.Config{LedgerStore: app.StoreMemory}, nil },
		OpenReporter: func(context.Context, *app.Config) (Reporter, func() error, error) {
			return ledger.Reports, nil, nil
		},
	}, out
}

func run(t *testing.T, rt Runtime, args ...string) error {
	t.Helper()
	cmd := NewRootCommand(rt)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestTrialBalanceCommandPrintsJSON(t *testing.T) {
	rt, out := seededRuntime(t)
	require.NoError(t, run(t, rt, "report", "trial-balance", "--as-of", "2024-01-31"))

	var tb struct {
		TotalDebit  decimal.Decimal `json:"total_debit"`
		TotalCredit decimal.Decimal `json:"total_credit"`
		Balanced    bool            `json:"balanced"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &tb))
	require.True(t, tb.TotalDebit.Equal(decimal.NewFromInt(500)), tb.TotalDebit.String())
	require.True(t, tb.TotalCredit.Equal(decimal.NewFromInt(500)), tb.TotalCredit.String())
	require.True(t, tb.Balanced)
}

func TestBalanceSheetAndIntegrityCommands(t *testing.T) {
	rt, out := seededRuntime(t)
	require.NoError(t, run(t, rt, "report", "balance-sheet", "--as-of", "2024-01-31"))
	var bs struct {
		Balanced bool `json:"balanced"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &bs))
	require.True(t, bs.Balanced)

	out.Reset()
	require.NoError(t, run(t, rt, "report", "integrity", "--as-of", "2024-01-31"))
	require.Contains(t, out.String(), `"trial_balance_ok": true`)
}

func TestIncomeStatementRequiresFrom(t *testing.T) {
	rt, _ := seededRuntime(t)
	require.Error(t, run(t, rt, "report", "income-statement", "--to", "2024-01-31"))
	require.Error(t, run(t, rt, "report", "income-statement", "--from", "31/01/2024"))
	require.NoError(t, run(t, rt, "report", "income-statement", "--from", "2024-01-01", "--to", "2024-01-31"))
}

func TestMigrateDownRejectsNonPositiveSteps(t *testing.T) {
	rt, _ := seededRuntime(t)
	require.ErrorContains(t, run(t, rt, "migrate", "down", "--steps", "0"), "--steps")
}

func TestTriggerWithoutClientFails(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "integrity", time.Time{})
	require.Error(t, err)
}

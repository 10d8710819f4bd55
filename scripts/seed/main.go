package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/app"
)

type seedAccount struct {
	code, name string
}

type seedParent struct {
	code, name string
	accounts   []seedAccount
}

type seedGroup struct {
	code, name string
	class      accounts.AccountClass
	parents    []seedParent
}

var chart = []seedGroup{
	{code: "1", name: "Assets", class: accounts.ClassAsset, parents: []seedParent{
		{code: "11", name: "Current Assets", accounts: []seedAccount{{"1101", "Cash on Hand"}, {"1102", "Bank"}, {"1103", "Accounts Receivable"}}},
		{code: "12", name: "Fixed Assets", accounts: []seedAccount{{"1201", "Equipment"}}},
	}},
	{code: "2", name: "Liabilities", class: accounts.ClassLiability, parents: []seedParent{
		{code: "21", name: "Current Liabilities", accounts: []seedAccount{{"2101", "Accounts Payable"}, {"2102", "Taxes Payable"}}},
	}},
	{code: "3", name: "Equity", class: accounts.ClassEquity, parents: []seedParent{
		{code: "31", name: "Owner Equity", accounts: []seedAccount{{"3101", "Owner Capital"}, {"3102", "Retained Earnings"}}},
	}},
	{code: "4", name: "Income", class: accounts.ClassIncome, parents: []seedParent{
		{code: "41", name: "Operating Income", accounts: []seedAccount{{"4101", "Service Revenue"}, {"4102", "Sales"}}},
	}},
	{code: "5", name: "Expenses", class: accounts.ClassExpense, parents: []seedParent{
		{code: "51", name: "Operating Expenses", accounts: []seedAccount{{"5101", "Rent"}, {"5102", "Salaries"}, {"5103", "Utilities"}}},
	}},
}

var voucherTypes = [][2]string{
	{"JV", "Journal Voucher"},
	{"RV", "Receipt Voucher"},
	{"PV", "Payment Voucher"},
	{"CL", "Period Closing"},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.UsesMemoryStore() {
		log.Fatalf("seed needs LEDGER_STORE=%s; the memory store does not outlive this process", app.StorePostgres)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := app.OpenLedger(ctx, cfg, logger, accounting.Options{})
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer res.Close()

	existing, err := res.Ledger.Accounts.Hierarchy(ctx)
	if err != nil {
		log.Fatalf("load hierarchy: %v", err)
	}
	if len(existing) > 0 {
		fmt.Println("✓ Chart of accounts already present, nothing to seed")
		return
	}

	fmt.Println("→ Seeding chart of accounts...")
	if err := seedChart(ctx, res.Ledger); err != nil {
		log.Fatalf("seed chart: %v", err)
	}
	fmt.Println("→ Seeding voucher types...")
	for _, vt := range voucherTypes {
		if _, err := res.Ledger.Journals.CreateVoucherType(ctx, vt[0], vt[1], 0); err != nil {
			log.Fatalf("seed voucher type %s: %v", vt[0], err)
		}
	}
	fmt.Println("✓ Seed complete")
}

func seedChart(ctx context.Context, ledger *accounting.Ledger) error {
	for _, g := range chart {
		groupID, err := ledger.Accounts.CreateGroup(ctx, accounts.CreateGroupInput{Code: g.code, Name: g.name, Class: g.class})
		if err != nil {
			return fmt.Errorf("group %s: %w", g.code, err)
		}
		for _, p := range g.parents {
			parentID, err := ledger.Accounts.CreateParentAccount(ctx, accounts.CreateParentInput{GroupID: groupID, Code: p.code, Name: p.name})
			if err != nil {
				return fmt.Errorf("parent %s: %w", p.code, err)
			}
			for _, a := range p.accounts {
				if _, err := ledger.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{ParentID: parentID, Code: a.code, Name: a.name}); err != nil {
					return fmt.Errorf("account %s: %w", a.code, err)
				}
			}
		}
	}
	return nil
}

package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
)

type reportsRepo struct {
	store *Store
}

// WithSnapshot pins the currently published state for the whole callback.
func (r *reportsRepo) WithSnapshot(ctx context.Context, fn func(context.Context, reports.Snapshot) error) error {
	return fn(ctx, &snapshot{st: r.store.snapshot()})
}

type snapshot struct {
	st *state
}

func (s *snapshot) LedgerAccount(ctx context.Context, id int64) (accounts.LedgerAccount, error) {
	return s.st.ledgerAccount(id)
}

func (s *snapshot) AccountEntries(ctx context.Context, accountID int64, from, to time.Time) ([]journals.AccountEntry, error) {
	return s.st.accountEntries(accountID, from, to), nil
}

func (s *snapshot) Balances(ctx context.Context, filter reports.BalanceFilter) ([]reports.AccountBalance, error) {
	byAccount := make(map[int64]*reports.AccountBalance, len(s.st.accounts))
	for id := range s.st.accounts {
		la, err := s.st.ledgerAccount(id)
		if err != nil {
			return nil, err
		}
		if len(filter.Classes) > 0 && !slices.Contains(filter.Classes, la.Class) {
			continue
		}
		byAccount[id] = &reports.AccountBalance{
			AccountID:     la.ID,
			Code:          la.Code,
			Name:          la.Name,
			GroupCode:     la.GroupCode,
			GroupName:     la.GroupName,
			Class:         la.Class,
			NormalBalance: la.NormalBalance,
			IsActive:      la.IsActive,
			Debit:         decimal.Zero,
			Credit:        decimal.Zero,
		}
	}
	for _, t := range s.st.transactions {
		if !t.Status.InLedger() || !inWindow(t.EntryDate, filter.From, filter.To) {
			continue
		}
		if filter.ExcludeClosing && t.Kind == journals.KindClosing {
			continue
		}
		for _, l := range t.Lines {
			b, ok := byAccount[l.AccountID]
			if !ok {
				continue
			}
			b.Debit = b.Debit.Add(l.Debit())
			b.Credit = b.Credit.Add(l.Credit())
		}
	}
	out := make([]reports.AccountBalance, 0, len(byAccount))
	for _, b := range byAccount {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *snapshot) LastClosing(ctx context.Context, asOf time.Time) (time.Time, error) {
	return s.st.closedThrough(asOf), nil
}

func (s *snapshot) UnbalancedTransactions(ctx context.Context) ([]reports.UnbalancedTransaction, error) {
	var out []reports.UnbalancedTransaction
	for _, t := range s.st.transactions {
		if !t.Status.InLedger() {
			continue
		}
		debit, credit := journals.Totals(t.Lines)
		if debit.Equal(credit) && len(t.Lines) >= 2 {
			continue
		}
		out = append(out, reports.UnbalancedTransaction{TransactionID: t.ID, VoucherNo: t.VoucherNo, Debit: debit, Credit: credit})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

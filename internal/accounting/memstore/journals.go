package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

type journalsRepo struct {
	store *Store
}

func (r *journalsRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.store.write(func(st *state) error {
		return fn(ctx, &journalsTx{st: st, store: r.store})
	})
}

func (r *journalsRepo) GetTransaction(ctx context.Context, id int64) (journals.Transaction, error) {
	return r.store.snapshot().transaction(id)
}

func (r *journalsRepo) ListVoucherTypes(ctx context.Context) ([]journals.VoucherType, error) {
	st := r.store.snapshot()
	out := make([]journals.VoucherType, 0, len(st.voucherTypes))
	for _, vt := range st.voucherTypes {
		out = append(out, vt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *journalsRepo) AccountEntries(ctx context.Context, accountID int64, from, to time.Time) ([]journals.AccountEntry, error) {
	return r.store.snapshot().accountEntries(accountID, from, to), nil
}

func (r *journalsRepo) ListClosings(ctx context.Context) ([]periods.Closing, error) {
	return append([]periods.Closing(nil), r.store.snapshot().closings...), nil
}

func (s *state) transaction(id int64) (journals.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok {
		return journals.Transaction{}, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
	}
	t.Lines = append([]journals.Line(nil), t.Lines...)
	return t, nil
}

func inWindow(date, from, to time.Time) bool {
	if !from.IsZero() && date.Before(from) {
		return false
	}
	if !to.IsZero() && date.After(to) {
		return false
	}
	return true
}

func (s *state) accountEntries(accountID int64, from, to time.Time) []journals.AccountEntry {
	var out []journals.AccountEntry
	for _, t := range s.transactions {
		if !t.Status.InLedger() || !inWindow(t.EntryDate, from, to) {
			continue
		}
		for _, l := range t.Lines {
			if l.AccountID != accountID {
				continue
			}
			out = append(out, journals.AccountEntry{
				EntryDate:     t.EntryDate,
				TransactionID: t.ID,
				VoucherNo:     t.VoucherNo,
				Payee:         t.Payee,
				Kind:          t.Kind,
				Line:          l,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		if a.TransactionID != b.TransactionID {
			return a.TransactionID < b.TransactionID
		}
		return a.Line.ID < b.Line.ID
	})
	return out
}

func (s *state) closedThrough(asOf time.Time) time.Time {
	var through time.Time
	for _, c := range s.closings {
		if !asOf.IsZero() && c.ClosedThrough.After(asOf) {
			continue
		}
		if c.ClosedThrough.After(through) {
			through = c.ClosedThrough
		}
	}
	return through
}

type journalsTx struct {
	st    *state
	store *Store
}

// LockLedger is a no-op: writers already run one at a time.
func (t *journalsTx) LockLedger(ctx context.Context, exclusive bool) error {
	return nil
}

func (t *journalsTx) ClosedThrough(ctx context.Context) (time.Time, error) {
	return t.st.closedThrough(time.Time{}), nil
}

func (t *journalsTx) LockAccounts(ctx context.Context, ids []int64) (map[int64]journals.AccountState, error) {
	out := make(map[int64]journals.AccountState, len(ids))
	for _, id := range ids {
		a, ok := t.st.accounts[id]
		if !ok {
			continue
		}
		class := t.st.groups[t.st.parents[a.ParentID].GroupID].Class
		out[id] = journals.AccountState{ID: id, IsActive: a.IsActive, Class: class}
	}
	return out, nil
}

func (t *journalsTx) InsertVoucherType(ctx context.Context, vt journals.VoucherType) (int64, error) {
	for _, existing := range t.st.voucherTypes {
		if existing.Code == vt.Code {
			return 0, shared.ErrDuplicateCode
		}
	}
	vt.ID = t.st.next("voucher_types")
	vt.NextSeq = 1
	vt.CreatedAt = t.store.now().UTC()
	t.st.voucherTypes[vt.ID] = vt
	return vt.ID, nil
}

func (t *journalsTx) NextVoucherNo(ctx context.Context, voucherTypeID int64) (string, error) {
	vt, ok := t.st.voucherTypes[voucherTypeID]
	if !ok {
		return "", shared.Invalid("voucher_type_id", "unknown voucher type")
	}
	seq := vt.NextSeq
	vt.NextSeq++
	t.st.voucherTypes[vt.ID] = vt
	return journals.FormatVoucherNo(vt.Code, seq), nil
}

func (t *journalsTx) InsertTransaction(ctx context.Context, txn journals.Transaction) (journals.Transaction, error) {
	if _, ok := t.st.voucherTypes[txn.VoucherTypeID]; !ok {
		return journals.Transaction{}, shared.Invalid("voucher_type_id", "unknown voucher type")
	}
	for _, existing := range t.st.transactions {
		if existing.Reference == txn.Reference {
			return journals.Transaction{}, shared.ErrDuplicateReference
		}
		if txn.VoucherNo != "" && existing.VoucherNo == txn.VoucherNo {
			return journals.Transaction{}, shared.ErrDuplicateVoucher
		}
	}
	now := t.store.now().UTC()
	txn.ID = t.st.next("transactions")
	txn.CreatedAt, txn.UpdatedAt = now, now
	txn.UpdatedBy = txn.CreatedBy
	txn.Lines = nil
	t.st.transactions[txn.ID] = txn
	return txn, nil
}

func (t *journalsTx) InsertLines(ctx context.Context, transactionID, actorID int64, lines []journals.Line) ([]journals.Line, error) {
	txn, ok := t.st.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %d: %w", transactionID, shared.ErrNotFound)
	}
	now := t.store.now().UTC()
	out := make([]journals.Line, 0, len(lines))
	for _, l := range lines {
		if _, ok := t.st.accounts[l.AccountID]; !ok {
			return nil, shared.Invalid("account_id", "unknown account")
		}
		l.ID = t.st.next("transaction_lines")
		l.TransactionID = transactionID
		l.CreatedBy = actorID
		l.CreatedAt = now
		out = append(out, l)
	}
	txn.Lines = append(txn.Lines, out...)
	t.st.transactions[transactionID] = txn
	return append([]journals.Line(nil), out...), nil
}

func (t *journalsTx) GetTransactionForUpdate(ctx context.Context, id int64) (journals.Transaction, error) {
	return t.st.transaction(id)
}

func (t *journalsTx) MarkPosted(ctx context.Context, id int64, voucherNo string, actorID int64, at time.Time) error {
	txn, ok := t.st.transactions[id]
	if !ok || txn.Status != journals.StatusDraft {
		return shared.ErrInvalidStatus
	}
	for otherID, other := range t.st.transactions {
		if otherID != id && other.VoucherNo == voucherNo {
			return shared.ErrDuplicateVoucher
		}
	}
	txn.Status = journals.StatusPosted
	txn.VoucherNo = voucherNo
	txn.PostedBy = actorID
	txn.PostedAt = &at
	txn.UpdatedBy = actorID
	txn.UpdatedAt = t.store.now().UTC()
	t.st.transactions[id] = txn
	return nil
}

func (t *journalsTx) MarkVoided(ctx context.Context, id, reversalID int64, reason string, actorID int64) error {
	txn, ok := t.st.transactions[id]
	if !ok || txn.Status != journals.StatusPosted {
		return shared.ErrInvalidStatus
	}
	txn.Status = journals.StatusVoided
	txn.ReversedBy = &reversalID
	txn.VoidReason = reason
	txn.UpdatedBy = actorID
	txn.UpdatedAt = t.store.now().UTC()
	t.st.transactions[id] = txn
	return nil
}

func (t *journalsTx) DeleteTransaction(ctx context.Context, id int64) error {
	txn, ok := t.st.transactions[id]
	if !ok || txn.Status != journals.StatusDraft {
		return shared.ErrInvalidStatus
	}
	delete(t.st.transactions, id)
	return nil
}

func (t *journalsTx) NominalBalances(ctx context.Context, through time.Time) ([]periods.NominalBalance, error) {
	agg := map[int64]*periods.NominalBalance{}
	for _, txn := range t.st.transactions {
		if !txn.Status.InLedger() || txn.EntryDate.After(through) {
			continue
		}
		for _, l := range txn.Lines {
			la, err := t.st.ledgerAccount(l.AccountID)
			if err != nil {
				return nil, err
			}
			if la.Class != accounts.ClassIncome && la.Class != accounts.ClassExpense {
				continue
			}
			b, ok := agg[la.ID]
			if !ok {
				b = &periods.NominalBalance{AccountID: la.ID, Code: la.Code, Debit: decimal.Zero, Credit: decimal.Zero}
				agg[la.ID] = b
			}
			b.Debit = b.Debit.Add(l.Debit())
			b.Credit = b.Credit.Add(l.Credit())
		}
	}
	out := make([]periods.NominalBalance, 0, len(agg))
	for _, b := range agg {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *journalsTx) InsertClosing(ctx context.Context, c periods.Closing) (int64, error) {
	c.ID = t.st.next("period_closings")
	t.st.closings = append(t.st.closings, c)
	sort.Slice(t.st.closings, func(i, j int) bool {
		return t.st.closings[i].ClosedThrough.Before(t.st.closings[j].ClosedThrough)
	})
	return c.ID, nil
}

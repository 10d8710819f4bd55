package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

type accountsRepo struct {
	store *Store
}

func (r *accountsRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.store.write(func(st *state) error {
		return fn(ctx, &accountsTx{st: st, store: r.store})
	})
}

func (r *accountsRepo) ListGroups(ctx context.Context) ([]accounts.Group, error) {
	st := r.store.snapshot()
	out := make([]accounts.Group, 0, len(st.groups))
	for _, g := range st.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *accountsRepo) ListParents(ctx context.Context) ([]accounts.ParentAccount, error) {
	st := r.store.snapshot()
	out := make([]accounts.ParentAccount, 0, len(st.parents))
	for _, p := range st.parents {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *accountsRepo) ListAccounts(ctx context.Context) ([]accounts.Account, error) {
	st := r.store.snapshot()
	out := make([]accounts.Account, 0, len(st.accounts))
	for _, a := range st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *accountsRepo) GetLedgerAccount(ctx context.Context, id int64) (accounts.LedgerAccount, error) {
	return r.store.snapshot().ledgerAccount(id)
}

func (s *state) ledgerAccount(id int64) (accounts.LedgerAccount, error) {
	a, ok := s.accounts[id]
	if !ok {
		return accounts.LedgerAccount{}, fmt.Errorf("account %d: %w", id, shared.ErrNotFound)
	}
	p := s.parents[a.ParentID]
	g := s.groups[p.GroupID]
	return accounts.LedgerAccount{
		ID:            a.ID,
		Code:          a.Code,
		Name:          a.Name,
		IsActive:      a.IsActive,
		ParentID:      p.ID,
		ParentCode:    p.Code,
		ParentName:    p.Name,
		GroupID:       g.ID,
		GroupCode:     g.Code,
		GroupName:     g.Name,
		Class:         g.Class,
		NormalBalance: g.NormalBalance,
	}, nil
}

type accountsTx struct {
	st    *state
	store *Store
}

func (t *accountsTx) InsertGroup(ctx context.Context, g accounts.Group) (int64, error) {
	for _, existing := range t.st.groups {
		if existing.Code == g.Code {
			return 0, shared.ErrDuplicateCode
		}
	}
	g.ID = t.st.next("account_groups")
	g.CreatedAt, g.UpdatedAt = t.stamp()
	g.UpdatedBy = g.CreatedBy
	t.st.groups[g.ID] = g
	return g.ID, nil
}

func (t *accountsTx) InsertParent(ctx context.Context, p accounts.ParentAccount) (int64, error) {
	for _, existing := range t.st.parents {
		if existing.Code == p.Code {
			return 0, shared.ErrDuplicateCode
		}
	}
	p.ID = t.st.next("parent_accounts")
	p.CreatedAt, p.UpdatedAt = t.stamp()
	p.UpdatedBy = p.CreatedBy
	t.st.parents[p.ID] = p
	return p.ID, nil
}

func (t *accountsTx) InsertAccount(ctx context.Context, a accounts.Account) (int64, error) {
	for _, existing := range t.st.accounts {
		if existing.Code == a.Code {
			return 0, shared.ErrDuplicateCode
		}
	}
	a.ID = t.st.next("accounts")
	a.CreatedAt, a.UpdatedAt = t.stamp()
	a.UpdatedBy = a.CreatedBy
	t.st.accounts[a.ID] = a
	return a.ID, nil
}

func (t *accountsTx) GetGroupForUpdate(ctx context.Context, id int64) (accounts.Group, error) {
	g, ok := t.st.groups[id]
	if !ok {
		return accounts.Group{}, notFound(accounts.KindGroup, id)
	}
	return g, nil
}

func (t *accountsTx) GetParentForUpdate(ctx context.Context, id int64) (accounts.ParentAccount, error) {
	p, ok := t.st.parents[id]
	if !ok {
		return accounts.ParentAccount{}, notFound(accounts.KindParent, id)
	}
	return p, nil
}

func (t *accountsTx) GetAccountForUpdate(ctx context.Context, id int64) (accounts.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return accounts.Account{}, notFound(accounts.KindAccount, id)
	}
	return a, nil
}

func (t *accountsTx) CountActiveChildren(ctx context.Context, kind accounts.EntityKind, id int64) (int, error) {
	n := 0
	switch kind {
	case accounts.KindGroup:
		for _, p := range t.st.parents {
			if p.GroupID == id && p.IsActive {
				n++
			}
		}
	case accounts.KindParent:
		for _, a := range t.st.accounts {
			if a.ParentID == id && a.IsActive {
				n++
			}
		}
	}
	return n, nil
}

func (t *accountsTx) CountLines(ctx context.Context, kind accounts.EntityKind, id int64) (int, error) {
	n := 0
	for _, txn := range t.st.transactions {
		for _, l := range txn.Lines {
			if t.under(kind, id, l.AccountID) {
				n++
			}
		}
	}
	return n, nil
}

func (t *accountsTx) under(kind accounts.EntityKind, id, accountID int64) bool {
	a := t.st.accounts[accountID]
	switch kind {
	case accounts.KindAccount:
		return a.ID == id
	case accounts.KindParent:
		return a.ParentID == id
	case accounts.KindGroup:
		return t.st.parents[a.ParentID].GroupID == id
	}
	return false
}

func (t *accountsTx) SetActive(ctx context.Context, kind accounts.EntityKind, id int64, active bool, actorID int64) error {
	_, now := t.stamp()
	switch kind {
	case accounts.KindGroup:
		g, ok := t.st.groups[id]
		if !ok {
			return notFound(kind, id)
		}
		g.IsActive, g.UpdatedBy, g.UpdatedAt = active, actorID, now
		t.st.groups[id] = g
	case accounts.KindParent:
		p, ok := t.st.parents[id]
		if !ok {
			return notFound(kind, id)
		}
		p.IsActive, p.UpdatedBy, p.UpdatedAt = active, actorID, now
		t.st.parents[id] = p
	case accounts.KindAccount:
		a, ok := t.st.accounts[id]
		if !ok {
			return notFound(kind, id)
		}
		a.IsActive, a.UpdatedBy, a.UpdatedAt = active, actorID, now
		t.st.accounts[id] = a
	default:
		return fmt.Errorf("accounting: unknown entity kind %q", kind)
	}
	return nil
}

func (t *accountsTx) stamp() (created, updated time.Time) {
	now := t.store.now().UTC()
	return now, now
}

func notFound(kind accounts.EntityKind, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ledger/internal/shared"
)

type memoryCoARepo struct {
	groups   map[int64]Group
	parents  map[int64]ParentAccount
	accounts map[int64]Account
	lines    map[int64]int
	nextID   int64
}

type memoryCoATx struct {
	repo *memoryCoARepo
}

func newMemoryCoARepo() *memoryCoARepo {
	return &memoryCoARepo{
		groups:   make(map[int64]Group),
		parents:  make(map[int64]ParentAccount),
		accounts: make(map[int64]Account),
		lines:    make(map[int64]int),
	}
}

func (r *memoryCoARepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryCoATx{repo: r})
}

func (r *memoryCoARepo) ListGroups(ctx context.Context) ([]Group, error) {
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out, nil
}

func (r *memoryCoARepo) ListParents(ctx context.Context) ([]ParentAccount, error) {
	out := make([]ParentAccount, 0, len(r.parents))
	for _, p := range r.parents {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryCoARepo) ListAccounts(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryCoARepo) GetLedgerAccount(ctx context.Context, id int64) (LedgerAccount, error) {
	a, ok := r.accounts[id]
	if !ok {
		return LedgerAccount{}, shared.ErrNotFound
	}
	p := r.parents[a.ParentID]
	g := r.groups[p.GroupID]
	return LedgerAccount{
		ID: a.ID, Code: a.Code, Name: a.Name, IsActive: a.IsActive,
		ParentID: p.ID, ParentCode: p.Code, ParentName: p.Name,
		GroupID: g.ID, GroupCode: g.Code, GroupName: g.Name,
		Class: g.Class, NormalBalance: g.NormalBalance,
	}, nil
}

func (tx *memoryCoATx) nextID() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryCoATx) InsertGroup(ctx context.Context, g Group) (int64, error) {
	for _, existing := range tx.repo.groups {
		if existing.Code == g.Code {
			return 0, shared.ErrDuplicateCode
		}
	}
	g.ID = tx.nextID()
	tx.repo.groups[g.ID] = g
	return g.ID, nil
}

func (tx *memoryCoATx) InsertParent(ctx context.Context, p ParentAccount) (int64, error) {
	for _, existing := range tx.repo.parents {
		if existing.Code == p.Code {
			return 0, shared.ErrDuplicateCode
		}
	}
	p.ID = tx.nextID()
	tx.repo.parents[p.ID] = p
	return p.ID, nil
}

func (tx *memoryCoATx) InsertAccount(ctx context.Context, a Account) (int64, error) {
	for _, existing := range tx.repo.accounts {
		if existing.Code == a.Code {
			return 0, shared.ErrDuplicateCode
		}
	}
	a.ID = tx.nextID()
	tx.repo.accounts[a.ID] = a
	return a.ID, nil
}

func (tx *memoryCoATx) GetGroupForUpdate(ctx context.Context, id int64) (Group, error) {
	g, ok := tx.repo.groups[id]
	if !ok {
		return Group{}, shared.ErrNotFound
	}
	return g, nil
}

func (tx *memoryCoATx) GetParentForUpdate(ctx context.Context, id int64) (ParentAccount, error) {
	p, ok := tx.repo.parents[id]
	if !ok {
		return ParentAccount{}, shared.ErrNotFound
	}
	return p, nil
}

func (tx *memoryCoATx) GetAccountForUpdate(ctx context.Context, id int64) (Account, error) {
	a, ok := tx.repo.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return a, nil
}

func (tx *memoryCoATx) CountActiveChildren(ctx context.Context, kind EntityKind, id int64) (int, error) {
	n := 0
	switch kind {
	case KindGroup:
		for _, p := range tx.repo.parents {
			if p.GroupID == id && p.IsActive {
				n++
			}
		}
	case KindParent:
		for _, a := range tx.repo.accounts {
			if a.ParentID == id && a.IsActive {
				n++
			}
		}
	}
	return n, nil
}

func (tx *memoryCoATx) CountLines(ctx context.Context, kind EntityKind, id int64) (int, error) {
	n := 0
	for accountID, count := range tx.repo.lines {
		a := tx.repo.accounts[accountID]
		p := tx.repo.parents[a.ParentID]
		switch {
		case kind == KindAccount && accountID == id,
			kind == KindParent && a.ParentID == id,
			kind == KindGroup && p.GroupID == id:
			n += count
		}
	}
	return n, nil
}

func (tx *memoryCoATx) SetActive(ctx context.Context, kind EntityKind, id int64, active bool, actorID int64) error {
	switch kind {
	case KindGroup:
		g := tx.repo.groups[id]
		g.IsActive = active
		tx.repo.groups[id] = g
	case KindParent:
		p := tx.repo.parents[id]
		p.IsActive = active
		tx.repo.parents[id] = p
	case KindAccount:
		a := tx.repo.accounts[id]
		a.IsActive = active
		tx.repo.accounts[id] = a
	}
	return nil
}

func seedCash(t *testing.T, svc *Service) (groupID, parentID, accountID int64) {
	t.Helper()
	ctx := context.Background()
	groupID, err := svc.CreateGroup(ctx, CreateGroupInput{Code: "1", Name: "Assets", Class: ClassAsset, NormalBalance: shared.Debit})
	require.NoError(t, err)
	parentID, err = svc.CreateParentAccount(ctx, CreateParentInput{GroupID: groupID, Code: "10", Name: "Current Assets"})
	require.NoError(t, err)
	accountID, err = svc.CreateAccount(ctx, CreateAccountInput{ParentID: parentID, Code: "1001", Name: "Cash"})
	require.NoError(t, err)
	return groupID, parentID, accountID
}

func TestCreateGroupRejectsDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryCoARepo(), nil)
	ctx := context.Background()
	_, err := svc.CreateGroup(ctx, CreateGroupInput{Code: "1", Name: "Assets", Class: ClassAsset})
	require.NoError(t, err)

	_, err = svc.CreateGroup(ctx, CreateGroupInput{Code: "1", Name: "Other", Class: ClassAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)
}

func TestCreateGroupDefaultsNormalBalanceFromClass(t *testing.T) {
	repo := newMemoryCoARepo()
	svc := NewService(repo, nil)
	id, err := svc.CreateGroup(context.Background(), CreateGroupInput{Code: "4", Name: "Income", Class: "revenue"})
	require.NoError(t, err)
	require.Equal(t, ClassIncome, repo.groups[id].Class)
	require.Equal(t, shared.Credit, repo.groups[id].NormalBalance)
}

func TestCreateGroupRejectsUnknownClass(t *testing.T) {
	svc := NewService(newMemoryCoARepo(), nil)
	_, err := svc.CreateGroup(context.Background(), CreateGroupInput{Code: "9", Name: "Misc", Class: "OTHER"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateParentRequiresActiveGroup(t *testing.T) {
	repo := newMemoryCoARepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateParentAccount(ctx, CreateParentInput{GroupID: 42, Code: "10", Name: "Current"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	groupID, err := svc.CreateGroup(ctx, CreateGroupInput{Code: "1", Name: "Assets", Class: ClassAsset})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, KindGroup, groupID, 7))

	_, err = svc.CreateParentAccount(ctx, CreateParentInput{GroupID: groupID, Code: "10", Name: "Current"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateAccountRequiresActiveParent(t *testing.T) {
	svc := NewService(newMemoryCoARepo(), nil)
	ctx := context.Background()
	_, parentID, accountID := seedCash(t, svc)

	require.NoError(t, svc.Deactivate(ctx, KindAccount, accountID, 1))
	require.NoError(t, svc.Deactivate(ctx, KindParent, parentID, 1))

	_, err := svc.CreateAccount(ctx, CreateAccountInput{ParentID: parentID, Code: "1002", Name: "Bank"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeactivateRefusesActiveDescendants(t *testing.T) {
	svc := NewService(newMemoryCoARepo(), nil)
	groupID, parentID, _ := seedCash(t, svc)

	err := svc.Deactivate(context.Background(), KindGroup, groupID, 1)
	var inUse *shared.InUseError
	require.ErrorAs(t, err, &inUse)
	require.Equal(t, groupID, inUse.ID)

	err = svc.Deactivate(context.Background(), KindParent, parentID, 1)
	require.ErrorIs(t, err, shared.ErrInUse)
}

func TestDeactivateRefusesReferencedAccount(t *testing.T) {
	repo := newMemoryCoARepo()
	svc := NewService(repo, nil)
	_, _, accountID := seedCash(t, svc)
	repo.lines[accountID] = 1

	err := svc.Deactivate(context.Background(), KindAccount, accountID, 1)
	require.ErrorIs(t, err, shared.ErrInUse)
	require.True(t, repo.accounts[accountID].IsActive)
}

func TestDeactivateIsIdempotentAndAudited(t *testing.T) {
	repo := newMemoryCoARepo()
	audit := &internalShared.MemoryAuditLog{}
	svc := NewService(repo, audit)
	ctx := context.Background()
	_, _, accountID := seedCash(t, svc)

	require.NoError(t, svc.Deactivate(ctx, KindAccount, accountID, 3))
	require.NoError(t, svc.Deactivate(ctx, KindAccount, accountID, 3))
	require.False(t, repo.accounts[accountID].IsActive)

	require.Equal(t, []string{
		"coa.group.create",
		"coa.parent.create",
		"coa.account.create",
		"coa.account.deactivate",
	}, audit.Actions())
}

func TestDeactivateUnknownEntity(t *testing.T) {
	svc := NewService(newMemoryCoARepo(), nil)
	err := svc.Deactivate(context.Background(), KindAccount, 99, 1)
	require.True(t, errors.Is(err, shared.ErrNotFound), fmt.Sprint(err))
}

func TestHierarchySortedByCodeAtEveryLevel(t *testing.T) {
	svc := NewService(newMemoryCoARepo(), nil)
	ctx := context.Background()

	income, err := svc.CreateGroup(ctx, CreateGroupInput{Code: "4", Name: "Income", Class: ClassIncome})
	require.NoError(t, err)
	assets, err := svc.CreateGroup(ctx, CreateGroupInput{Code: "1", Name: "Assets", Class: ClassAsset})
	require.NoError(t, err)
	fixed, err := svc.CreateParentAccount(ctx, CreateParentInput{GroupID: assets, Code: "15", Name: "Fixed Assets"})
	require.NoError(t, err)
	current, err := svc.CreateParentAccount(ctx, CreateParentInput{GroupID: assets, Code: "10", Name: "Current Assets"})
	require.NoError(t, err)
	_, err = svc.CreateParentAccount(ctx, CreateParentInput{GroupID: income, Code: "40", Name: "Operating Income"})
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, CreateAccountInput{ParentID: current, Code: "1002", Name: "Bank"})
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, CreateAccountInput{ParentID: current, Code: "1001", Name: "Cash"})
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, CreateAccountInput{ParentID: fixed, Code: "1501", Name: "Vehicles"})
	require.NoError(t, err)

	tree, err := svc.Hierarchy(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Equal(t, "1", tree[0].Code)
	require.Equal(t, "4", tree[1].Code)
	require.Len(t, tree[0].Parents, 2)
	require.Equal(t, "10", tree[0].Parents[0].Code)
	require.Equal(t, "15", tree[0].Parents[1].Code)
	require.Equal(t, "1001", tree[0].Parents[0].Accounts[0].Code)
	require.Equal(t, "1002", tree[0].Parents[0].Accounts[1].Code)
	require.Empty(t, tree[1].Parents[0].Accounts)
}

func TestLedgerAccountInheritsGroupPolarity(t *testing.T) {
	svc := NewService(newMemoryCoARepo(), nil)
	_, _, accountID := seedCash(t, svc)

	la, err := svc.LedgerAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.Equal(t, shared.Debit, la.NormalBalance)
	require.Equal(t, ClassAsset, la.Class)
	require.Equal(t, "10", la.ParentCode)
}

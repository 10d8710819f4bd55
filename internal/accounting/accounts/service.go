package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ledger/internal/shared"
)

// AuditPort records chart of accounts changes.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Observer receives the outcome of post-commit work.
type Observer interface {
	ObserveLedgerWrite(operation string, err error)
}

// Service owns the Group -> Parent -> Account classification.
type Service struct {
	repo        Repository
	audit       AuditPort
	invalidator shared.Invalidator
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the chart of accounts service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, logger: slog.Default(), now: time.Now}
}

// WithInvalidator attaches the report cache. Trial balances list every
// active account, so chart changes make cached reports stale.
func (s *Service) WithInvalidator(inv shared.Invalidator) {
	s.invalidator = inv
}

// WithObserver attaches a metrics observer.
func (s *Service) WithObserver(o Observer) {
	s.observer = o
}

// WithLogger sets the logger used for post-commit failures.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateGroup registers a top-level group. Codes are unique.
func (s *Service) CreateGroup(ctx context.Context, in CreateGroupInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.InsertGroup(ctx, Group{
			Code:          in.Code,
			Name:          in.Name,
			Class:         in.Class,
			NormalBalance: in.NormalBalance,
			IsActive:      true,
			Audit:         Audit{CreatedBy: in.ActorID, UpdatedBy: in.ActorID},
		})
		if errors.Is(err, shared.ErrDuplicateCode) {
			return fmt.Errorf("group code %q: %w", in.Code, shared.ErrDuplicateCode)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	s.afterCommit(ctx, in.ActorID, "coa.group.create", KindGroup, id, map[string]any{"code": in.Code, "class": string(in.Class)})
	return id, nil
}

// CreateParentAccount registers a parent under an active group.
func (s *Service) CreateParentAccount(ctx context.Context, in CreateParentInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroupForUpdate(ctx, in.GroupID)
		if err != nil {
			return err
		}
		if !group.IsActive {
			return fmt.Errorf("group %d inactive: %w", in.GroupID, shared.ErrNotFound)
		}
		id, err = tx.InsertParent(ctx, ParentAccount{
			GroupID:  in.GroupID,
			Code:     in.Code,
			Name:     in.Name,
			IsActive: true,
			Audit:    Audit{CreatedBy: in.ActorID, UpdatedBy: in.ActorID},
		})
		if errors.Is(err, shared.ErrDuplicateCode) {
			return fmt.Errorf("parent code %q: %w", in.Code, shared.ErrDuplicateCode)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	s.afterCommit(ctx, in.ActorID, "coa.parent.create", KindParent, id, map[string]any{"code": in.Code, "group_id": in.GroupID})
	return id, nil
}

// CreateAccount registers a posting account under an active parent.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		parent, err := tx.GetParentForUpdate(ctx, in.ParentID)
		if err != nil {
			return err
		}
		if !parent.IsActive {
			return fmt.Errorf("parent %d inactive: %w", in.ParentID, shared.ErrNotFound)
		}
		id, err = tx.InsertAccount(ctx, Account{
			ParentID: in.ParentID,
			Code:     in.Code,
			Name:     in.Name,
			IsActive: true,
			Audit:    Audit{CreatedBy: in.ActorID, UpdatedBy: in.ActorID},
		})
		if errors.Is(err, shared.ErrDuplicateCode) {
			return fmt.Errorf("account code %q: %w", in.Code, shared.ErrDuplicateCode)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	s.afterCommit(ctx, in.ActorID, "coa.account.create", KindAccount, id, map[string]any{"code": in.Code, "parent_id": in.ParentID})
	return id, nil
}

// Deactivate switches an entity off. It is refused while active descendants
// or transaction lines reference it; deactivating twice is a no-op.
func (s *Service) Deactivate(ctx context.Context, kind EntityKind, id, actorID int64) error {
	if id <= 0 {
		return shared.Invalid("id", "required")
	}
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		active, err := lockEntity(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if !active {
			return nil
		}
		children, err := tx.CountActiveChildren(ctx, kind, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return &shared.InUseError{Kind: string(kind), ID: id, Reason: fmt.Sprintf("%d active descendants", children)}
		}
		lines, err := tx.CountLines(ctx, kind, id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return &shared.InUseError{Kind: string(kind), ID: id, Reason: fmt.Sprintf("referenced by %d transaction lines", lines)}
		}
		changed = true
		return tx.SetActive(ctx, kind, id, false, actorID)
	})
	if err != nil {
		return err
	}
	if changed {
		s.afterCommit(ctx, actorID, "coa."+string(kind)+".deactivate", kind, id, nil)
	}
	return nil
}

func lockEntity(ctx context.Context, tx TxRepository, kind EntityKind, id int64) (bool, error) {
	switch kind {
	case KindGroup:
		g, err := tx.GetGroupForUpdate(ctx, id)
		return g.IsActive, err
	case KindParent:
		p, err := tx.GetParentForUpdate(ctx, id)
		return p.IsActive, err
	case KindAccount:
		a, err := tx.GetAccountForUpdate(ctx, id)
		return a.IsActive, err
	}
	return false, shared.Invalid("kind", fmt.Sprintf("unknown entity kind %q", kind))
}

// Hierarchy returns the Group -> Parent -> Account tree sorted by code.
func (s *Service) Hierarchy(ctx context.Context) ([]GroupNode, error) {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	parents, err := s.repo.ListParents(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return BuildHierarchy(groups, parents, accounts), nil
}

// BuildHierarchy assembles the tree from flat rows. Orphans are dropped.
func BuildHierarchy(groups []Group, parents []ParentAccount, accounts []Account) []GroupNode {
	byParent := make(map[int64][]Account)
	for _, a := range accounts {
		byParent[a.ParentID] = append(byParent[a.ParentID], a)
	}
	byGroup := make(map[int64][]ParentNode)
	for _, p := range parents {
		children := byParent[p.ID]
		sort.Slice(children, func(i, j int) bool { return children[i].Code < children[j].Code })
		byGroup[p.GroupID] = append(byGroup[p.GroupID], ParentNode{ParentAccount: p, Accounts: children})
	}
	out := make([]GroupNode, 0, len(groups))
	for _, g := range groups {
		nodes := byGroup[g.ID]
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
		out = append(out, GroupNode{Group: g, Parents: nodes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LedgerAccount resolves an account with its inherited normal balance.
func (s *Service) LedgerAccount(ctx context.Context, id int64) (LedgerAccount, error) {
	return s.repo.GetLedgerAccount(ctx, id)
}

func (s *Service) afterCommit(ctx context.Context, actorID int64, action string, kind EntityKind, id int64, meta map[string]any) {
	ctx = context.WithoutCancel(ctx)
	if s.invalidator != nil {
		logger := s.logger.With(slog.String("action", action), slog.Int64("entity_id", id))
		err := shared.InvalidateReports(ctx, s.invalidator, logger)
		if s.observer != nil {
			s.observer.ObserveLedgerWrite(shared.OpCacheInvalidate, err)
		}
	}
	s.record(ctx, actorID, action, kind, id, meta)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, kind EntityKind, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   string(kind),
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

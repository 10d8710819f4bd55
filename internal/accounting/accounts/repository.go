package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/platform/db"
)

// Repository persists the chart of accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListGroups(ctx context.Context) ([]Group, error)
	ListParents(ctx context.Context) ([]ParentAccount, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	GetLedgerAccount(ctx context.Context, id int64) (LedgerAccount, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertGroup(ctx context.Context, g Group) (int64, error)
	InsertParent(ctx context.Context, p ParentAccount) (int64, error)
	InsertAccount(ctx context.Context, a Account) (int64, error)
	GetGroupForUpdate(ctx context.Context, id int64) (Group, error)
	GetParentForUpdate(ctx context.Context, id int64) (ParentAccount, error)
	GetAccountForUpdate(ctx context.Context, id int64) (Account, error)
	// CountActiveChildren counts active direct children of a group or parent.
	CountActiveChildren(ctx context.Context, kind EntityKind, id int64) (int, error)
	// CountLines counts transaction lines of any status under the entity.
	CountLines(ctx context.Context, kind EntityKind, id int64) (int, error)
	SetActive(ctx context.Context, kind EntityKind, id int64, active bool, actorID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const ledgerAccountSelect = `SELECT a.id, a.code, a.name, a.is_active, p.id, p.code, p.name, g.id, g.code, g.name, g.class, g.normal_balance
FROM accounts a
JOIN parent_accounts p ON p.id = a.parent_id
JOIN account_groups g ON g.id = p.group_id`

// ScanLedgerAccount scans a row produced by LedgerAccountQuery.
func ScanLedgerAccount(row pgx.Row) (LedgerAccount, error) {
	var la LedgerAccount
	err := row.Scan(&la.ID, &la.Code, &la.Name, &la.IsActive, &la.ParentID, &la.ParentCode, &la.ParentName,
		&la.GroupID, &la.GroupCode, &la.GroupName, &la.Class, &la.NormalBalance)
	return la, err
}

// LedgerAccountQuery returns the join used to resolve accounts with polarity.
func LedgerAccountQuery() string {
	return ledgerAccountSelect
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, db.Write, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, class, normal_balance, is_active, created_by, updated_by, created_at, updated_at FROM account_groups ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		var createdBy, updatedBy *int64
		if err := rows.Scan(&g.ID, &g.Code, &g.Name, &g.Class, &g.NormalBalance, &g.IsActive, &createdBy, &updatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.CreatedBy, g.UpdatedBy = deref(createdBy), deref(updatedBy)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *repository) ListParents(ctx context.Context) ([]ParentAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT id, group_id, code, name, is_active, created_by, updated_by, created_at, updated_at FROM parent_accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var parents []ParentAccount
	for rows.Next() {
		var p ParentAccount
		var createdBy, updatedBy *int64
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Code, &p.Name, &p.IsActive, &createdBy, &updatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedBy, p.UpdatedBy = deref(createdBy), deref(updatedBy)
		parents = append(parents, p)
	}
	return parents, rows.Err()
}

func (r *repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, parent_id, code, name, is_active, created_by, updated_by, created_at, updated_at FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		var createdBy, updatedBy *int64
		if err := rows.Scan(&a.ID, &a.ParentID, &a.Code, &a.Name, &a.IsActive, &createdBy, &updatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.CreatedBy, a.UpdatedBy = deref(createdBy), deref(updatedBy)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetLedgerAccount(ctx context.Context, id int64) (LedgerAccount, error) {
	la, err := ScanLedgerAccount(r.db.QueryRow(ctx, ledgerAccountSelect+` WHERE a.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerAccount{}, fmt.Errorf("account %d: %w", id, shared.ErrNotFound)
		}
		return LedgerAccount{}, err
	}
	return la, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertGroup(ctx context.Context, g Group) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO account_groups (code, name, class, normal_balance, is_active, created_by, updated_by)
VALUES ($1,$2,$3,$4,TRUE,$5,$5) RETURNING id`, g.Code, g.Name, g.Class, g.NormalBalance, nullInt(g.CreatedBy)).Scan(&id)
	return id, mapInsertErr(err)
}

func (r *txRepository) InsertParent(ctx context.Context, p ParentAccount) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO parent_accounts (group_id, code, name, is_active, created_by, updated_by)
VALUES ($1,$2,$3,TRUE,$4,$4) RETURNING id`, p.GroupID, p.Code, p.Name, nullInt(p.CreatedBy)).Scan(&id)
	return id, mapInsertErr(err)
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (parent_id, code, name, is_active, created_by, updated_by)
VALUES ($1,$2,$3,TRUE,$4,$4) RETURNING id`, a.ParentID, a.Code, a.Name, nullInt(a.CreatedBy)).Scan(&id)
	return id, mapInsertErr(err)
}

func (r *txRepository) GetGroupForUpdate(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, class, normal_balance, is_active, created_at, updated_at FROM account_groups WHERE id=$1 FOR UPDATE`, id).
		Scan(&g.ID, &g.Code, &g.Name, &g.Class, &g.NormalBalance, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	return g, notFound(err, KindGroup, id)
}

func (r *txRepository) GetParentForUpdate(ctx context.Context, id int64) (ParentAccount, error) {
	var p ParentAccount
	err := r.tx.QueryRow(ctx, `SELECT id, group_id, code, name, is_active, created_at, updated_at FROM parent_accounts WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.GroupID, &p.Code, &p.Name, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, notFound(err, KindParent, id)
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.tx.QueryRow(ctx, `SELECT id, parent_id, code, name, is_active, created_at, updated_at FROM accounts WHERE id=$1 FOR UPDATE`, id).
		Scan(&a.ID, &a.ParentID, &a.Code, &a.Name, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, notFound(err, KindAccount, id)
}

func (r *txRepository) CountActiveChildren(ctx context.Context, kind EntityKind, id int64) (int, error) {
	var query string
	switch kind {
	case KindGroup:
		query = `SELECT COUNT(*) FROM parent_accounts WHERE group_id=$1 AND is_active`
	case KindParent:
		query = `SELECT COUNT(*) FROM accounts WHERE parent_id=$1 AND is_active`
	default:
		return 0, nil
	}
	var n int
	err := r.tx.QueryRow(ctx, query, id).Scan(&n)
	return n, err
}

func (r *txRepository) CountLines(ctx context.Context, kind EntityKind, id int64) (int, error) {
	var query string
	switch kind {
	case KindGroup:
		query = `SELECT COUNT(*) FROM transaction_lines l
JOIN accounts a ON a.id = l.account_id
JOIN parent_accounts p ON p.id = a.parent_id
WHERE p.group_id=$1`
	case KindParent:
		query = `SELECT COUNT(*) FROM transaction_lines l JOIN accounts a ON a.id = l.account_id WHERE a.parent_id=$1`
	case KindAccount:
		query = `SELECT COUNT(*) FROM transaction_lines WHERE account_id=$1`
	default:
		return 0, fmt.Errorf("accounting: unknown entity kind %q", kind)
	}
	var n int
	err := r.tx.QueryRow(ctx, query, id).Scan(&n)
	return n, err
}

func (r *txRepository) SetActive(ctx context.Context, kind EntityKind, id int64, active bool, actorID int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE `+table+` SET is_active=$2, updated_by=$3, updated_at=NOW() WHERE id=$1`, id, active, nullInt(actorID))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	return nil
}

func tableFor(kind EntityKind) (string, error) {
	switch kind {
	case KindGroup:
		return "account_groups", nil
	case KindParent:
		return "parent_accounts", nil
	case KindAccount:
		return "accounts", nil
	}
	return "", fmt.Errorf("accounting: unknown entity kind %q", kind)
}

func mapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicateCode
	}
	return err
}

func notFound(err error, kind EntityKind, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

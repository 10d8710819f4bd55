package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/platform/db"
)

// BalanceFilter narrows the aggregation window. Zero bounds are open.
type BalanceFilter struct {
	From           time.Time
	To             time.Time
	Classes        []accounts.AccountClass
	ExcludeClosing bool
}

// Snapshot reads a single consistent view of the ledger.
type Snapshot interface {
	LedgerAccount(ctx context.Context, id int64) (accounts.LedgerAccount, error)
	AccountEntries(ctx context.Context, accountID int64, from, to time.Time) ([]journals.AccountEntry, error)
	// Balances returns every account of the requested classes with turnover
	// of posted and voided transactions inside the window.
	Balances(ctx context.Context, filter BalanceFilter) ([]AccountBalance, error)
	// LastClosing returns the latest closed-through date on or before asOf.
	LastClosing(ctx context.Context, asOf time.Time) (time.Time, error)
	// UnbalancedTransactions lists ledger transactions whose lines do not net to zero.
	UnbalancedTransactions(ctx context.Context) ([]UnbalancedTransaction, error)
}

// Repository opens read snapshots.
type Repository interface {
	WithSnapshot(ctx context.Context, fn func(context.Context, Snapshot) error) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres backed report reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) WithSnapshot(ctx context.Context, fn func(context.Context, Snapshot) error) error {
	return db.WithTx(ctx, r.db, db.Snapshot, func(tx pgx.Tx) error {
		return fn(ctx, &snapshot{tx: tx})
	})
}

type snapshot struct {
	tx pgx.Tx
}

func (s *snapshot) LedgerAccount(ctx context.Context, id int64) (accounts.LedgerAccount, error) {
	la, err := accounts.ScanLedgerAccount(s.tx.QueryRow(ctx, accounts.LedgerAccountQuery()+` WHERE a.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.LedgerAccount{}, fmt.Errorf("account %d: %w", id, shared.ErrNotFound)
		}
		return accounts.LedgerAccount{}, err
	}
	return la, nil
}

func (s *snapshot) AccountEntries(ctx context.Context, accountID int64, from, to time.Time) ([]journals.AccountEntry, error) {
	return journals.SelectAccountEntries(ctx, s.tx, accountID, from, to)
}

func (s *snapshot) Balances(ctx context.Context, filter BalanceFilter) ([]AccountBalance, error) {
	classes := make([]string, 0, len(filter.Classes))
	for _, c := range filter.Classes {
		classes = append(classes, string(c))
	}
	rows, err := s.tx.Query(ctx, `SELECT a.id, a.code, a.name, g.code, g.name, g.class, g.normal_balance, a.is_active,
       COALESCE(SUM(CASE WHEN l.side='DEBIT' THEN l.amount END), 0),
       COALESCE(SUM(CASE WHEN l.side='CREDIT' THEN l.amount END), 0)
FROM accounts a
JOIN parent_accounts p ON p.id = a.parent_id
JOIN account_groups g ON g.id = p.group_id
LEFT JOIN (
    SELECT l.account_id, l.side, l.amount
    FROM transaction_lines l
    JOIN transactions t ON t.id = l.transaction_id
    WHERE t.status IN ('POSTED','VOIDED')
      AND ($1::date IS NULL OR t.entry_date >= $1)
      AND ($2::date IS NULL OR t.entry_date <= $2)
      AND (NOT $3 OR t.kind <> 'CLOSING')
) l ON l.account_id = a.id
WHERE cardinality($4::text[]) = 0 OR g.class = ANY($4)
GROUP BY a.id, a.code, a.name, g.code, g.name, g.class, g.normal_balance, a.is_active
ORDER BY a.code`, nullDate(filter.From), nullDate(filter.To), filter.ExcludeClosing, classes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.GroupCode, &b.GroupName, &b.Class, &b.NormalBalance, &b.IsActive,
			&b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *snapshot) LastClosing(ctx context.Context, asOf time.Time) (time.Time, error) {
	var through *time.Time
	if err := s.tx.QueryRow(ctx, `SELECT MAX(closed_through) FROM period_closings WHERE closed_through <= $1`, asOf).Scan(&through); err != nil {
		return time.Time{}, err
	}
	if through == nil {
		return time.Time{}, nil
	}
	return *through, nil
}

func (s *snapshot) UnbalancedTransactions(ctx context.Context) ([]UnbalancedTransaction, error) {
	rows, err := s.tx.Query(ctx, `SELECT t.id, COALESCE(t.voucher_no, ''),
       COALESCE(SUM(CASE WHEN l.side='DEBIT' THEN l.amount END), 0),
       COALESCE(SUM(CASE WHEN l.side='CREDIT' THEN l.amount END), 0)
FROM transactions t
LEFT JOIN transaction_lines l ON l.transaction_id = t.id
WHERE t.status IN ('POSTED','VOIDED')
GROUP BY t.id, t.voucher_no
HAVING COALESCE(SUM(CASE WHEN l.side='DEBIT' THEN l.amount ELSE -l.amount END), 0) <> 0
    OR COUNT(l.id) < 2
ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnbalancedTransaction
	for rows.Next() {
		var u UnbalancedTransaction
		if err := rows.Scan(&u.TransactionID, &u.VoucherNo, &u.Debit, &u.Credit); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

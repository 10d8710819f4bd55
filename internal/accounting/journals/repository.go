package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/ledger/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListVoucherTypes(ctx context.Context) ([]VoucherType, error)
	AccountEntries(ctx context.Context, accountID int64, from, to time.Time) ([]AccountEntry, error)
	ListClosings(ctx context.Context) ([]periods.Closing, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// LockLedger takes the ledger close lock, shared for postings and
	// exclusive for period close.
	LockLedger(ctx context.Context, exclusive bool) error
	// ClosedThrough returns the latest closed date, zero when never closed.
	ClosedThrough(ctx context.Context) (time.Time, error)
	// LockAccounts takes a share lock on the accounts and returns their
	// state. Unknown ids are absent from the map.
	LockAccounts(ctx context.Context, ids []int64) (map[int64]AccountState, error)
	InsertVoucherType(ctx context.Context, vt VoucherType) (int64, error)
	NextVoucherNo(ctx context.Context, voucherTypeID int64) (string, error)
	InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	InsertLines(ctx context.Context, transactionID, actorID int64, lines []Line) ([]Line, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error)
	MarkPosted(ctx context.Context, id int64, voucherNo string, actorID int64, at time.Time) error
	MarkVoided(ctx context.Context, id, reversalID int64, reason string, actorID int64) error
	DeleteTransaction(ctx context.Context, id int64) error
	NominalBalances(ctx context.Context, through time.Time) ([]periods.NominalBalance, error)
	InsertClosing(ctx context.Context, c periods.Closing) (int64, error)
}

// Querier is satisfied by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const transactionColumns = `id, voucher_type_id, voucher_no, payee, memo, entry_date, status, kind, reference,
reversal_of, reversed_by, void_reason, posted_by, posted_at, created_by, updated_by, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var postedBy, createdBy, updatedBy *int64
	var voucherNo, voidReason *string
	err := row.Scan(&t.ID, &t.VoucherTypeID, &voucherNo, &t.Payee, &t.Memo, &t.EntryDate, &t.Status, &t.Kind, &t.Reference,
		&t.ReversalOf, &t.ReversedBy, &voidReason, &postedBy, &t.PostedAt, &createdBy, &updatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	t.VoucherNo = derefString(voucherNo)
	t.VoidReason = derefString(voidReason)
	t.PostedBy, t.CreatedBy, t.UpdatedBy = deref(postedBy), deref(createdBy), deref(updatedBy)
	return t, nil
}

func loadLines(ctx context.Context, q Querier, transactionID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, transaction_id, account_id, description, side, amount, created_by, created_at
FROM transaction_lines WHERE transaction_id=$1 ORDER BY id ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		var createdBy *int64
		if err := rows.Scan(&l.ID, &l.TransactionID, &l.AccountID, &l.Description, &l.Side, &l.Amount, &createdBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.CreatedBy = deref(createdBy)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func getTransaction(ctx context.Context, q Querier, id int64, forUpdate bool) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
		}
		return Transaction{}, err
	}
	t.Lines, err = loadLines(ctx, q, id)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, db.Write, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return getTransaction(ctx, r.db, id, false)
}

func (r *repository) ListVoucherTypes(ctx context.Context) ([]VoucherType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, next_seq, created_at FROM voucher_types ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VoucherType
	for rows.Next() {
		var vt VoucherType
		if err := rows.Scan(&vt.ID, &vt.Code, &vt.Name, &vt.NextSeq, &vt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, rows.Err()
}

func (r *repository) AccountEntries(ctx context.Context, accountID int64, from, to time.Time) ([]AccountEntry, error) {
	return SelectAccountEntries(ctx, r.db, accountID, from, to)
}

func (r *repository) ListClosings(ctx context.Context) ([]periods.Closing, error) {
	return SelectClosings(ctx, r.db)
}

// SelectAccountEntries loads ledger lines of one account ordered by
// (entry date, transaction id, line id). Zero bounds are open.
func SelectAccountEntries(ctx context.Context, q Querier, accountID int64, from, to time.Time) ([]AccountEntry, error) {
	rows, err := q.Query(ctx, `SELECT t.entry_date, t.id, COALESCE(t.voucher_no, ''), t.payee, t.kind,
       l.id, l.account_id, l.description, l.side, l.amount, l.created_at
FROM transaction_lines l
JOIN transactions t ON t.id = l.transaction_id
WHERE l.account_id = $1
  AND t.status IN ('POSTED','VOIDED')
  AND ($2::date IS NULL OR t.entry_date >= $2)
  AND ($3::date IS NULL OR t.entry_date <= $3)
ORDER BY t.entry_date, t.id, l.id`, accountID, nullDate(from), nullDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []AccountEntry
	for rows.Next() {
		var e AccountEntry
		if err := rows.Scan(&e.EntryDate, &e.TransactionID, &e.VoucherNo, &e.Payee, &e.Kind,
			&e.Line.ID, &e.Line.AccountID, &e.Line.Description, &e.Line.Side, &e.Line.Amount, &e.Line.CreatedAt); err != nil {
			return nil, err
		}
		e.Line.TransactionID = e.TransactionID
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SelectClosings lists recorded period closes, oldest first.
func SelectClosings(ctx context.Context, q Querier) ([]periods.Closing, error) {
	rows, err := q.Query(ctx, `SELECT id, closed_through, transaction_id, retained_earnings_account_id, net_income, closed_by, closed_at
FROM period_closings ORDER BY closed_through`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []periods.Closing
	for rows.Next() {
		var c periods.Closing
		var closedBy *int64
		if err := rows.Scan(&c.ID, &c.ClosedThrough, &c.TransactionID, &c.RetainedEarningsAccountID, &c.NetIncome, &closedBy, &c.ClosedAt); err != nil {
			return nil, err
		}
		c.ClosedBy = deref(closedBy)
		out = append(out, c)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockLedger(ctx context.Context, exclusive bool) error {
	query := `SELECT pg_advisory_xact_lock_shared($1)`
	if exclusive {
		query = `SELECT pg_advisory_xact_lock($1)`
	}
	_, err := r.tx.Exec(ctx, query, internalShared.LedgerCloseLockKey())
	return err
}

func (r *txRepository) ClosedThrough(ctx context.Context) (time.Time, error) {
	var through *time.Time
	if err := r.tx.QueryRow(ctx, `SELECT MAX(closed_through) FROM period_closings`).Scan(&through); err != nil {
		return time.Time{}, err
	}
	if through == nil {
		return time.Time{}, nil
	}
	return *through, nil
}

func (r *txRepository) LockAccounts(ctx context.Context, ids []int64) (map[int64]AccountState, error) {
	out := make(map[int64]AccountState, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.is_active, g.class
FROM accounts a
JOIN parent_accounts p ON p.id = a.parent_id
JOIN account_groups g ON g.id = p.group_id
WHERE a.id = ANY($1)
ORDER BY a.id
FOR SHARE OF a`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st AccountState
		if err := rows.Scan(&st.ID, &st.IsActive, &st.Class); err != nil {
			return nil, err
		}
		out[st.ID] = st
	}
	return out, rows.Err()
}

func (r *txRepository) InsertVoucherType(ctx context.Context, vt VoucherType) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO voucher_types (code, name, next_seq) VALUES ($1,$2,1) RETURNING id`, vt.Code, vt.Name).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) NextVoucherNo(ctx context.Context, voucherTypeID int64) (string, error) {
	var code string
	var seq int64
	err := r.tx.QueryRow(ctx, `UPDATE voucher_types SET next_seq = next_seq + 1 WHERE id=$1 RETURNING code, next_seq - 1`, voucherTypeID).
		Scan(&code, &seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.Invalid("voucher_type_id", "unknown voucher type")
		}
		return "", err
	}
	return FormatVoucherNo(code, seq), nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO transactions (voucher_type_id, voucher_no, payee, memo, entry_date, status, kind, reference,
reversal_of, posted_by, posted_at, created_by, updated_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12) RETURNING id, created_at, updated_at`,
		txn.VoucherTypeID, nullString(txn.VoucherNo), txn.Payee, txn.Memo, txn.EntryDate, txn.Status, txn.Kind, txn.Reference,
		txn.ReversalOf, nullInt(txn.PostedBy), txn.PostedAt, nullInt(txn.CreatedBy))
	if err := row.Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
		return Transaction{}, mapTransactionErr(err)
	}
	txn.UpdatedBy = txn.CreatedBy
	return txn, nil
}

func (r *txRepository) InsertLines(ctx context.Context, transactionID, actorID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		line.TransactionID = transactionID
		line.CreatedBy = actorID
		err := r.tx.QueryRow(ctx, `INSERT INTO transaction_lines (transaction_id, account_id, description, side, amount, created_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`, transactionID, line.AccountID, line.Description, line.Side,
			line.Amount.StringFixed(shared.AmountScale), nullInt(actorID)).Scan(&line.ID, &line.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return getTransaction(ctx, r.tx, id, true)
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, voucherNo string, actorID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET status='POSTED', voucher_no=$2, posted_by=$3, posted_at=$4, updated_by=$3, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, id, voucherNo, nullInt(actorID), at)
	if err != nil {
		return mapTransactionErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) MarkVoided(ctx context.Context, id, reversalID int64, reason string, actorID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET status='VOIDED', reversed_by=$2, void_reason=$3, updated_by=$4, updated_at=NOW()
WHERE id=$1 AND status='POSTED'`, id, reversalID, nullString(reason), nullInt(actorID))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_lines WHERE transaction_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1 AND status='DRAFT'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) NominalBalances(ctx context.Context, through time.Time) ([]periods.NominalBalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code,
       COALESCE(SUM(CASE WHEN l.side='DEBIT' THEN l.amount END), 0),
       COALESCE(SUM(CASE WHEN l.side='CREDIT' THEN l.amount END), 0)
FROM accounts a
JOIN parent_accounts p ON p.id = a.parent_id
JOIN account_groups g ON g.id = p.group_id
JOIN transaction_lines l ON l.account_id = a.id
JOIN transactions t ON t.id = l.transaction_id
WHERE g.class IN ('INCOME','EXPENSE')
  AND t.status IN ('POSTED','VOIDED')
  AND t.entry_date <= $1
GROUP BY a.id, a.code
ORDER BY a.code`, through)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []periods.NominalBalance
	for rows.Next() {
		var b periods.NominalBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertClosing(ctx context.Context, c periods.Closing) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO period_closings (closed_through, transaction_id, retained_earnings_account_id, net_income, closed_by)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, c.ClosedThrough, c.TransactionID, c.RetainedEarningsAccountID,
		c.NetIncome.StringFixed(shared.AmountScale), nullInt(c.ClosedBy)).Scan(&id)
	return id, err
}

// FormatVoucherNo renders the per-type sequence as CODE-000042.
func FormatVoucherNo(code string, seq int64) string {
	return fmt.Sprintf("%s-%06d", code, seq)
}

func mapTransactionErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "uq_transactions_reference":
			return shared.ErrDuplicateReference
		case "uq_transactions_voucher_no":
			return shared.ErrDuplicateVoucher
		}
	}
	if errors.As(err, &pgErr) && pgErr.Code == "23503" && pgErr.ConstraintName == "fk_transactions_voucher_type" {
		return shared.Invalid("voucher_type_id", "unknown voucher type")
	}
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullString(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ledger/internal/shared"
)

// AuditPort records ledger mutations.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Observer receives the outcome of every ledger write.
type Observer interface {
	ObserveLedgerWrite(operation string, err error)
}

// Invalidator is notified after a ledger change commits.
type Invalidator = shared.Invalidator

// Service is the only writer of posted transactions.
type Service struct {
	repo        Repository
	audit       AuditPort
	observer    Observer
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, logger: slog.Default(), now: time.Now}
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

// WithObserver attaches a metrics observer.
func (s *Service) WithObserver(o Observer) {
	s.observer = o
}

// WithInvalidator attaches a report cache invalidator.
func (s *Service) WithInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// CreateVoucherType registers a voucher type whose code prefixes voucher numbers.
func (s *Service) CreateVoucherType(ctx context.Context, code, name string, actorID int64) (VoucherType, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return VoucherType{}, shared.Invalid("code", "required")
	}
	if name == "" {
		return VoucherType{}, shared.Invalid("name", "required")
	}
	vt := VoucherType{Code: code, Name: name, NextSeq: 1}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertVoucherType(ctx, vt)
		if errors.Is(err, shared.ErrDuplicateCode) {
			return fmt.Errorf("voucher type %q: %w", code, shared.ErrDuplicateCode)
		}
		vt.ID = id
		return err
	})
	if err != nil {
		return VoucherType{}, err
	}
	s.record(ctx, actorID, "ledger.voucher_type.create", "voucher_type", vt.ID, map[string]any{"code": code})
	return vt, nil
}

// ListVoucherTypes returns every voucher type ordered by code.
func (s *Service) ListVoucherTypes(ctx context.Context) ([]VoucherType, error) {
	return s.repo.ListVoucherTypes(ctx)
}

// PostTransaction validates and writes a balanced transaction atomically.
func (s *Service) PostTransaction(ctx context.Context, in PostingInput) (Transaction, error) {
	txn, err := s.postTransaction(ctx, in)
	s.observe("post", err)
	if err != nil {
		return Transaction{}, err
	}
	s.afterCommit(ctx, in.ActorID, "ledger.transaction.post", "transaction", txn.ID, map[string]any{
		"voucher_no": txn.VoucherNo,
		"reference":  txn.Reference.String(),
		"lines":      len(txn.Lines),
	})
	return txn, nil
}

func (s *Service) postTransaction(ctx context.Context, in PostingInput) (Transaction, error) {
	if err := in.validateHeader(); err != nil {
		return Transaction{}, err
	}
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedger(ctx, false); err != nil {
			return err
		}
		states, err := tx.LockAccounts(ctx, in.AccountIDs())
		if err != nil {
			return err
		}
		lines, err := ValidateLines(in.Lines, states, true)
		if err != nil {
			return err
		}
		if err := ensureOpen(ctx, tx, in.EntryDate); err != nil {
			return err
		}
		voucherNo := in.VoucherNo
		if voucherNo == "" {
			if voucherNo, err = tx.NextVoucherNo(ctx, in.VoucherTypeID); err != nil {
				return err
			}
		}
		now := s.now()
		inserted, err := tx.InsertTransaction(ctx, Transaction{
			VoucherTypeID: in.VoucherTypeID,
			VoucherNo:     voucherNo,
			Payee:         in.Payee,
			Memo:          in.Memo,
			EntryDate:     in.EntryDate,
			Status:        StatusPosted,
			Kind:          KindStandard,
			Reference:     referenceOrNew(in.Reference),
			PostedBy:      in.ActorID,
			PostedAt:      &now,
			CreatedBy:     in.ActorID,
		})
		if err != nil {
			return err
		}
		inserted.Lines, err = tx.InsertLines(ctx, inserted.ID, in.ActorID, lines)
		if err != nil {
			return err
		}
		txn = inserted
		return nil
	})
	return txn, err
}

// SaveDraft stores well-formed lines without requiring balance.
func (s *Service) SaveDraft(ctx context.Context, in PostingInput) (Transaction, error) {
	if err := in.validateHeader(); err != nil {
		return Transaction{}, err
	}
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		states, err := tx.LockAccounts(ctx, in.AccountIDs())
		if err != nil {
			return err
		}
		lines, err := ValidateLines(in.Lines, states, false)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertTransaction(ctx, Transaction{
			VoucherTypeID: in.VoucherTypeID,
			VoucherNo:     in.VoucherNo,
			Payee:         in.Payee,
			Memo:          in.Memo,
			EntryDate:     in.EntryDate,
			Status:        StatusDraft,
			Kind:          KindStandard,
			Reference:     referenceOrNew(in.Reference),
			CreatedBy:     in.ActorID,
		})
		if err != nil {
			return err
		}
		inserted.Lines, err = tx.InsertLines(ctx, inserted.ID, in.ActorID, lines)
		if err != nil {
			return err
		}
		txn = inserted
		return nil
	})
	s.observe("draft", err)
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, in.ActorID, "ledger.transaction.draft", "transaction", txn.ID, map[string]any{"lines": len(txn.Lines)})
	return txn, nil
}

// PostDraft revalidates a draft against current account state and posts it.
func (s *Service) PostDraft(ctx context.Context, id, actorID int64) (Transaction, error) {
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedger(ctx, false); err != nil {
			return err
		}
		current, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("transaction %d is %s: %w", id, current.Status, shared.ErrInvalidStatus)
		}
		input := draftInput(current)
		if len(input.Lines) < 2 {
			return shared.ErrTooFewLines
		}
		states, err := tx.LockAccounts(ctx, input.AccountIDs())
		if err != nil {
			return err
		}
		if _, err := ValidateLines(input.Lines, states, true); err != nil {
			return err
		}
		if err := ensureOpen(ctx, tx, current.EntryDate); err != nil {
			return err
		}
		voucherNo := current.VoucherNo
		if voucherNo == "" {
			if voucherNo, err = tx.NextVoucherNo(ctx, current.VoucherTypeID); err != nil {
				return err
			}
		}
		now := s.now()
		if err := tx.MarkPosted(ctx, id, voucherNo, actorID, now); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.VoucherNo = voucherNo
		current.PostedBy = actorID
		current.PostedAt = &now
		current.UpdatedBy = actorID
		txn = current
		return nil
	})
	s.observe("post", err)
	if err != nil {
		return Transaction{}, err
	}
	s.afterCommit(ctx, actorID, "ledger.transaction.post", "transaction", txn.ID, map[string]any{
		"voucher_no": txn.VoucherNo,
		"draft":      true,
	})
	return txn, nil
}

// DeleteDraft removes a draft and its lines. Posted history is never deleted.
func (s *Service) DeleteDraft(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("transaction %d is %s: %w", id, current.Status, shared.ErrInvalidStatus)
		}
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "ledger.transaction.delete", "transaction", id, nil)
	return nil
}

// VoidTransaction posts the side-swapped reversal and marks the original voided.
func (s *Service) VoidTransaction(ctx context.Context, in VoidInput) (Transaction, error) {
	reversal, err := s.voidTransaction(ctx, in)
	s.observe("void", err)
	if err != nil {
		return Transaction{}, err
	}
	s.afterCommit(ctx, in.ActorID, "ledger.transaction.void", "transaction", in.TransactionID, map[string]any{
		"reason":              in.Reason,
		"reversal_id":         reversal.ID,
		"reversal_voucher_no": reversal.VoucherNo,
	})
	return reversal, nil
}

func (s *Service) voidTransaction(ctx context.Context, in VoidInput) (Transaction, error) {
	if in.TransactionID <= 0 {
		return Transaction{}, shared.Invalid("transaction_id", "required")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	var reversal Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedger(ctx, false); err != nil {
			return err
		}
		original, err := tx.GetTransactionForUpdate(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		switch original.Status {
		case StatusVoided:
			return &shared.AlreadyVoidedError{TransactionID: original.ID}
		case StatusDraft:
			return &shared.NotPostedError{TransactionID: original.ID, Status: string(original.Status)}
		}
		if original.Kind != KindStandard {
			return fmt.Errorf("%s transaction %d cannot be voided: %w", strings.ToLower(string(original.Kind)), original.ID, shared.ErrInvalidStatus)
		}
		closed, err := tx.ClosedThrough(ctx)
		if err != nil {
			return err
		}
		date := original.EntryDate
		if shared.NotAfter(date, closed) {
			date = closed.AddDate(0, 0, 1)
		}
		voucherNo, err := tx.NextVoucherNo(ctx, original.VoucherTypeID)
		if err != nil {
			return err
		}
		now := s.now()
		originalID := original.ID
		inserted, err := tx.InsertTransaction(ctx, Transaction{
			VoucherTypeID: original.VoucherTypeID,
			VoucherNo:     voucherNo,
			Payee:         original.Payee,
			Memo:          reversalMemo(original.VoucherNo, in.Reason),
			EntryDate:     date,
			Status:        StatusPosted,
			Kind:          KindReversal,
			Reference:     uuid.New(),
			ReversalOf:    &originalID,
			PostedBy:      in.ActorID,
			PostedAt:      &now,
			CreatedBy:     in.ActorID,
		})
		if err != nil {
			return err
		}
		inserted.Lines, err = tx.InsertLines(ctx, inserted.ID, in.ActorID, reverseLines(original.Lines))
		if err != nil {
			return err
		}
		if err := tx.MarkVoided(ctx, original.ID, inserted.ID, in.Reason, in.ActorID); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	return reversal, err
}

// GetTransaction returns the header with its lines.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	if id <= 0 {
		return Transaction{}, shared.Invalid("id", "required")
	}
	return s.repo.GetTransaction(ctx, id)
}

// AccountEntries lists ledger lines of one account within [from, to].
// Zero bounds are open.
func (s *Service) AccountEntries(ctx context.Context, accountID int64, from, to time.Time) ([]AccountEntry, error) {
	if accountID <= 0 {
		return nil, shared.Invalid("account_id", "required")
	}
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, shared.Invalid("from", "must not be after to")
	}
	return s.repo.AccountEntries(ctx, accountID, from, to)
}

// ListClosings returns recorded period closes, oldest first.
func (s *Service) ListClosings(ctx context.Context) ([]periods.Closing, error) {
	return s.repo.ListClosings(ctx)
}

// CloseThrough moves income and expense balances up to the date into
// retained earnings and forbids later postings on or before it.
func (s *Service) CloseThrough(ctx context.Context, in CloseInput) (periods.Closing, error) {
	closing, err := s.closeThrough(ctx, in)
	s.observe("close", err)
	if err != nil {
		return periods.Closing{}, err
	}
	s.afterCommit(ctx, in.ActorID, "ledger.period.close", "period_closing", closing.ID, map[string]any{
		"closed_through": closing.ClosedThrough.Format("2006-01-02"),
		"net_income":     closing.NetIncome.StringFixed(shared.AmountScale),
	})
	return closing, nil
}

func (s *Service) closeThrough(ctx context.Context, in CloseInput) (periods.Closing, error) {
	through := shared.DateOnly(in.Through)
	if through.IsZero() {
		return periods.Closing{}, shared.Invalid("through", "required")
	}
	if in.VoucherTypeID <= 0 {
		return periods.Closing{}, shared.Invalid("voucher_type_id", "required")
	}
	if in.RetainedEarningsAccountID <= 0 {
		return periods.Closing{}, shared.Invalid("retained_earnings_account_id", "required")
	}
	var closing periods.Closing
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedger(ctx, true); err != nil {
			return err
		}
		if err := ensureOpen(ctx, tx, through); err != nil {
			return err
		}
		states, err := tx.LockAccounts(ctx, []int64{in.RetainedEarningsAccountID})
		if err != nil {
			return err
		}
		re, ok := states[in.RetainedEarningsAccountID]
		switch {
		case !ok:
			return shared.Invalid("retained_earnings_account_id", "unknown account")
		case !re.IsActive:
			return shared.Invalid("retained_earnings_account_id", "account is inactive")
		case re.Class != accounts.ClassEquity:
			return shared.Invalid("retained_earnings_account_id", "must be an equity account")
		}
		balances, err := tx.NominalBalances(ctx, through)
		if err != nil {
			return err
		}
		closingLines, netIncome := periods.BuildClosingLines(balances, re.ID, through)
		now := s.now()
		closing = periods.Closing{
			ClosedThrough:             through,
			RetainedEarningsAccountID: re.ID,
			NetIncome:                 netIncome,
			ClosedBy:                  in.ActorID,
			ClosedAt:                  now,
		}
		if len(closingLines) > 0 {
			voucherNo, err := tx.NextVoucherNo(ctx, in.VoucherTypeID)
			if err != nil {
				return err
			}
			inserted, err := tx.InsertTransaction(ctx, Transaction{
				VoucherTypeID: in.VoucherTypeID,
				VoucherNo:     voucherNo,
				Memo:          "Closing entry through " + through.Format("2006-01-02"),
				EntryDate:     through,
				Status:        StatusPosted,
				Kind:          KindClosing,
				Reference:     uuid.New(),
				PostedBy:      in.ActorID,
				PostedAt:      &now,
				CreatedBy:     in.ActorID,
			})
			if err != nil {
				return err
			}
			if _, err := tx.InsertLines(ctx, inserted.ID, in.ActorID, fromClosingLines(closingLines)); err != nil {
				return err
			}
			closing.TransactionID = &inserted.ID
		}
		closing.ID, err = tx.InsertClosing(ctx, closing)
		return err
	})
	return closing, err
}

func ensureOpen(ctx context.Context, tx TxRepository, date time.Time) error {
	closed, err := tx.ClosedThrough(ctx)
	if err != nil {
		return err
	}
	if shared.NotAfter(date, closed) {
		return fmt.Errorf("%s is within the period closed through %s: %w",
			date.Format("2006-01-02"), closed.Format("2006-01-02"), shared.ErrPeriodClosed)
	}
	return nil
}

func draftInput(t Transaction) PostingInput {
	in := PostingInput{
		VoucherTypeID: t.VoucherTypeID,
		VoucherNo:     t.VoucherNo,
		EntryDate:     t.EntryDate,
		Payee:         t.Payee,
		Memo:          t.Memo,
		Reference:     t.Reference,
	}
	for _, l := range t.Lines {
		in.Lines = append(in.Lines, PostingLineInput{
			AccountID:   l.AccountID,
			Debit:       l.Debit(),
			Credit:      l.Credit(),
			Description: l.Description,
		})
	}
	return in
}

func fromClosingLines(lines []periods.ClosingLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{AccountID: l.AccountID, Description: l.Description, Side: l.Side, Amount: l.Amount})
	}
	return out
}

func referenceOrNew(ref uuid.UUID) uuid.UUID {
	if ref == uuid.Nil {
		return uuid.New()
	}
	return ref
}

func reversalMemo(voucherNo, reason string) string {
	memo := "Reversal of " + voucherNo
	if reason != "" {
		memo += ": " + reason
	}
	return memo
}

func (s *Service) observe(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveLedgerWrite(op, err)
	}
}

// afterCommit runs the side effects of a committed write. They are detached
// from the caller's cancellation because the write already happened.
func (s *Service) afterCommit(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	ctx = context.WithoutCancel(ctx)
	if s.invalidator != nil {
		logger := s.logger.With(slog.String("action", action), slog.Int64("entity_id", id))
		s.observe(shared.OpCacheInvalidate, shared.InvalidateReports(ctx, s.invalidator, logger))
	}
	s.record(ctx, actorID, action, entity, id, meta)
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

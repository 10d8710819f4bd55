package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

const dateKey = "2006-01-02"

var (
	incomeClasses  = []accounts.AccountClass{accounts.ClassIncome, accounts.ClassExpense}
	balanceClasses = []accounts.AccountClass{accounts.ClassAsset, accounts.ClassLiability, accounts.ClassEquity}
)

// Service derives reports from the posting log. It never writes.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService constructs the report engine. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// GeneralLedger replays one account's entries with a running balance.
func (s *Service) GeneralLedger(ctx context.Context, in GeneralLedgerInput) (GeneralLedger, error) {
	if in.AccountID <= 0 {
		return GeneralLedger{}, shared.Invalid("account_id", "required")
	}
	in.From, in.To = shared.DateOnly(in.From), shared.DateOnly(in.To)
	if err := checkRange(in.From, in.To); err != nil {
		return GeneralLedger{}, err
	}
	opening := "none"
	switch {
	case in.Opening != nil:
		opening = in.Opening.StringFixed(shared.AmountScale)
	case in.CarryForward:
		opening = "carry"
	}
	var out GeneralLedger
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		var gl GeneralLedger
		err := s.repo.WithSnapshot(ctx, func(ctx context.Context, snap Snapshot) error {
			account, err := snap.LedgerAccount(ctx, in.AccountID)
			if err != nil {
				return err
			}
			start := decimal.Zero
			switch {
			case in.Opening != nil:
				start = *in.Opening
			case in.CarryForward && !in.From.IsZero():
				prior, err := snap.AccountEntries(ctx, in.AccountID, time.Time{}, in.From.AddDate(0, 0, -1))
				if err != nil {
					return err
				}
				start = SumContributions(account.NormalBalance, decimal.Zero, prior)
			}
			entries, err := snap.AccountEntries(ctx, in.AccountID, in.From, in.To)
			if err != nil {
				return err
			}
			gl = BuildGeneralLedger(account, in.From, in.To, start, entries)
			return nil
		})
		return gl, err
	}, "gl", strconv.FormatInt(in.AccountID, 10), keyDate(in.From), keyDate(in.To), opening)
	return out, err
}

// TrialBalance lists every active account's balance as of asOf.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	asOf = shared.DateOnly(asOf)
	if asOf.IsZero() {
		return TrialBalance{}, shared.Invalid("as_of", "required")
	}
	var out TrialBalance
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		var tb TrialBalance
		err := s.repo.WithSnapshot(ctx, func(ctx context.Context, snap Snapshot) error {
			balances, err := snap.Balances(ctx, BalanceFilter{To: asOf})
			if err != nil {
				return err
			}
			tb = BuildTrialBalance(asOf, balances)
			return nil
		})
		return tb, err
	}, "tb", keyDate(asOf))
	return out, err
}

// IncomeStatement sums income and expense activity within [from, to].
// Closing entries are excluded.
func (s *Service) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	if to.IsZero() {
		return IncomeStatement{}, shared.Invalid("to", "required")
	}
	if err := checkRange(from, to); err != nil {
		return IncomeStatement{}, err
	}
	var out IncomeStatement
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		var is IncomeStatement
		err := s.repo.WithSnapshot(ctx, func(ctx context.Context, snap Snapshot) error {
			var err error
			is, err = incomeStatement(ctx, snap, from, to)
			return err
		})
		return is, err
	}, "is", keyDate(from), keyDate(to))
	return out, err
}

// BalanceSheet reports cumulative asset, liability and equity balances with
// unclosed earnings folded into equity, all from one snapshot.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	asOf = shared.DateOnly(asOf)
	if asOf.IsZero() {
		return BalanceSheet{}, shared.Invalid("as_of", "required")
	}
	var out BalanceSheet
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		var bs BalanceSheet
		err := s.repo.WithSnapshot(ctx, func(ctx context.Context, snap Snapshot) error {
			var err error
			bs, err = balanceSheet(ctx, snap, asOf)
			return err
		})
		return bs, err
	}, "bs", keyDate(asOf))
	return out, err
}

func balanceSheet(ctx context.Context, snap Snapshot, asOf time.Time) (BalanceSheet, error) {
	closed, err := snap.LastClosing(ctx, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	var periodStart time.Time
	if !closed.IsZero() {
		periodStart = closed.AddDate(0, 0, 1)
	}
	is, err := incomeStatement(ctx, snap, periodStart, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	balances, err := snap.Balances(ctx, BalanceFilter{To: asOf, Classes: balanceClasses})
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(asOf, periodStart, balances, is.NetIncome), nil
}

func incomeStatement(ctx context.Context, snap Snapshot, from, to time.Time) (IncomeStatement, error) {
	balances, err := snap.Balances(ctx, BalanceFilter{From: from, To: to, Classes: incomeClasses, ExcludeClosing: true})
	if err != nil {
		return IncomeStatement{}, err
	}
	return BuildIncomeStatement(from, to, balances), nil
}

// cached resolves the versioned key, coalesces identical concurrent builds
// and stores the JSON result.
func (s *Service) cached(ctx context.Context, dest any, build func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		return err
	}
	// The build is shared by every waiter on key, so it must outlive the
	// caller that happened to start it.
	detached := context.WithoutCancel(ctx)
	resultChan := s.group.DoChan(key, func() (any, error) {
		var raw json.RawMessage
		err := s.cache.FetchJSON(detached, key, &raw, build)
		return raw, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

func checkRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return shared.Invalid("from", fmt.Sprintf("must not be after %s", to.Format(dateKey)))
	}
	return nil
}

func keyDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateKey)
}

// Package accounting assembles the double-entry ledger: the chart of
// accounts, the posting engine and the report engine over one store.
package accounting

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Stores bundles the repositories of one backing store.
type Stores struct {
	Accounts accounts.Repository
	Journals journals.Repository
	Reports  reports.Repository
}

// Options carries optional collaborators.
type Options struct {
	Audit    AuditPort
	Cache    *reports.Cache
	Observer journals.Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Ledger exposes the three ledger components.
type Ledger struct {
	Accounts *accounts.Service
	Journals *journals.Service
	Reports  *reports.Service
}

// New wires the services. Chart changes and ledger writes both invalidate
// the report cache.
func New(stores Stores, opts Options) *Ledger {
	coa := accounts.NewService(stores.Accounts, opts.Audit)
	posting := journals.NewService(stores.Journals, opts.Audit)
	if opts.Now != nil {
		coa.WithNow(opts.Now)
		posting.WithNow(opts.Now)
	}
	coa.WithLogger(opts.Logger)
	posting.WithLogger(opts.Logger)
	if opts.Observer != nil {
		coa.WithObserver(opts.Observer)
		posting.WithObserver(opts.Observer)
	}
	if opts.Cache != nil {
		coa.WithInvalidator(opts.Cache)
		posting.WithInvalidator(opts.Cache)
	}
	return &Ledger{
		Accounts: coa,
		Journals: posting,
		Reports:  reports.NewService(stores.Reports, opts.Cache),
	}
}

// MemoryStores returns repositories backed by a fresh in-process store.
func MemoryStores() Stores {
	store := memstore.New()
	return Stores{
		Accounts: store.Accounts(),
		Journals: store.Journals(),
		Reports:  store.Reports(),
	}
}

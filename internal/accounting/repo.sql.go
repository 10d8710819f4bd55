package accounting

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
)

// PostgresStores returns repositories backed by the pool. Writes run at
// READ COMMITTED with explicit row locks; reports use read-only
// REPEATABLE READ snapshots.
func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Accounts: accounts.NewRepository(pool),
		Journals: journals.NewRepository(pool),
		Reports:  reports.NewRepository(pool),
	}
}

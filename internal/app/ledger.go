package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/audit"
	"github.com/odyssey-erp/ledger/internal/platform/cache"
	"github.com/odyssey-erp/ledger/internal/platform/db"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// Resources holds the ledger and the connections backing it.
type Resources struct {
	Ledger *accounting.Ledger
	Audit  *audit.Service
	Pool   *pgxpool.Pool
	Redis  *redis.Client
}

// OpenLedger connects the configured store and assembles the ledger. The
// report cache is used only when Redis answers; otherwise reports are
// computed on every request.
func OpenLedger(ctx context.Context, cfg *Config, logger *slog.Logger, opts accounting.Options) (*Resources, error) {
	res := &Resources{}
	if opts.Logger == nil {
		opts.Logger = logger
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("report cache disabled", slog.Any("error", err))
	} else {
		res.Redis = redisClient
		opts.Cache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}

	if cfg.UsesMemoryStore() {
		logger.Warn("ledger running on the in-memory store; state is lost on restart")
		if opts.Cache != nil {
			// A fresh store restarts ids at 1; reports cached by an earlier
			// process must not be visible to it.
			ns := "memory:" + uuid.NewString()
			opts.Cache = opts.Cache.WithNamespace(ns)
			logger.Info("report cache namespaced to this process", slog.String("namespace", ns))
		}
		log := &shared.MemoryAuditLog{}
		if opts.Audit == nil {
			opts.Audit = log
		}
		res.Audit = audit.NewService(audit.NewMemoryRepository(log))
		res.Ledger = accounting.New(accounting.MemoryStores(), opts)
		return res, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		res.Close()
		return nil, err
	}
	res.Pool = pool
	if opts.Audit == nil {
		opts.Audit = shared.NewAuditLogger(pool)
	}
	res.Audit = audit.NewService(audit.NewRepository(pool))
	res.Ledger = accounting.New(accounting.PostgresStores(pool), opts)
	return res, nil
}

// Checks returns readiness checks for the open connections.
func (r *Resources) Checks() map[string]HealthCheck {
	checks := map[string]HealthCheck{}
	if r.Pool != nil {
		checks["postgres"] = r.Pool.Ping
	}
	if r.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return r.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases every connection.
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Pool != nil {
		r.Pool.Close()
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	return errors.Join(errs...)
}

package shared

import (
	"context"
	"log/slog"
)

// OpCacheInvalidate is the write-metric operation for report cache bumps.
const OpCacheInvalidate = "cache_invalidate"

// Invalidator drops cached reports after a change commits.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidateReports bumps the report cache once a write has committed. The
// write cannot be undone at this point, so the caller's cancellation is
// ignored; a failure leaves reports stale until the cache TTL and is logged.
func InvalidateReports(ctx context.Context, inv Invalidator, logger *slog.Logger) error {
	if inv == nil {
		return nil
	}
	if err := inv.Invalidate(context.WithoutCancel(ctx)); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("report cache invalidation failed", slog.Any("error", err))
		return err
	}
	return nil
}

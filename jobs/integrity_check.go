package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/ledger/internal/jobs"
)

// IntegrityChecker recomputes ledger invariants in one snapshot.
type IntegrityChecker interface {
	Integrity(ctx context.Context, asOf time.Time) (reports.IntegrityReport, error)
}

// IntegrityCheckJob verifies the trial balance, the balance sheet equation and
// per-transaction balance. Discrepancies are logged and counted; they do not
// fail the task.
type IntegrityCheckJob struct {
	Checker IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewIntegrityCheckJob initialises the integrity check handler.
func NewIntegrityCheckJob(checker IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityCheckJob {
	return &IntegrityCheckJob{
		Checker: checker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity check.
func (j *IntegrityCheckJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Checker == nil {
		return errors.New("integrity check: handler not configured")
	}
	var payload IntegrityCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf, err := payload.date(j.now())
	if err != nil {
		j.logger().Warn("integrity check: bad payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	_, err = j.Run(ctx, asOf)
	return err
}

// Run checks the ledger as of asOf and reports every discrepancy found.
func (j *IntegrityCheckJob) Run(ctx context.Context, asOf time.Time) (reports.IntegrityReport, error) {
	start := time.Now()
	tracker := j.Metrics.Track(TaskLedgerIntegrityCheck)
	logger := j.logger().With(slog.String("as_of", asOf.Format("2006-01-02")))
	logger.Info("starting ledger integrity check")

	report, err := j.Checker.Integrity(ctx, asOf)
	if err != nil {
		logger.Error("integrity check failed", slog.Any("error", err))
		return report, tracker.End(err)
	}

	if !report.TrialBalanceOK {
		logger.Error("trial balance does not balance",
			slog.String("debit", report.TrialBalanceDebit.StringFixed(2)),
			slog.String("credit", report.TrialBalanceCredit.StringFixed(2)),
		)
		j.Metrics.AddDiscrepancies("trial_balance", 1)
	}
	if !report.BalanceSheetOK {
		logger.Error("balance sheet equation violated", slog.String("gap", report.BalanceSheetGap.StringFixed(2)))
		j.Metrics.AddDiscrepancies("balance_sheet", 1)
	}
	for _, u := range report.Unbalanced {
		logger.Error("unbalanced transaction",
			slog.Int64("transaction_id", u.TransactionID),
			slog.String("voucher_no", u.VoucherNo),
			slog.String("debit", u.Debit.StringFixed(2)),
			slog.String("credit", u.Credit.StringFixed(2)),
		)
	}
	j.Metrics.AddDiscrepancies("transaction", len(report.Unbalanced))

	logger.Info("completed ledger integrity check",
		slog.Bool("ok", report.OK()),
		slog.Int("unbalanced", len(report.Unbalanced)),
		slog.Duration("duration", time.Since(start)),
	)
	return report, tracker.End(nil)
}

func (j *IntegrityCheckJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *IntegrityCheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityCheck))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityCheck))
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/ledger/internal/jobs"
)

type stubChecker struct {
	report reports.IntegrityReport
	err    error
	asOf   []time.Time
}

func (s *stubChecker) Integrity(_ context.Context, asOf time.Time) (reports.IntegrityReport, error) {
	s.asOf = append(s.asOf, asOf)
	return s.report, s.err
}

func newTestJob(checker IntegrityChecker) (*IntegrityCheckJob, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	job := NewIntegrityCheckJob(checker, slog.New(slog.NewTextHandler(io.Discard, nil)), jobmetrics.NewMetrics(registry))
	job.clock = func() time.Time { return time.Date(2024, 6, 30, 23, 0, 0, 0, time.UTC) }
	return job, registry
}

func seriesCount(t *testing.T, registry *prometheus.Registry, name string) int {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}

func TestIntegrityCheckCountsDiscrepancies(t *testing.T) {
	checker := &stubChecker{report: reports.IntegrityReport{
		TrialBalanceOK:  true,
		BalanceSheetGap: decimal.RequireFromString("0.01"),
		Unbalanced: []reports.UnbalancedTransaction{
			{TransactionID: 4, VoucherNo: "JV-000004", Debit: decimal.NewFromInt(10), Credit: decimal.NewFromInt(9)},
			{TransactionID: 7, VoucherNo: "JV-000007", Debit: decimal.NewFromInt(1)},
		},
	}}
	job, registry := newTestJob(checker)

	task, err := NewIntegrityCheckTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, checker.asOf, 1)
	require.True(t, checker.asOf[0].Equal(time.Date(2024, 6, 30, 23, 0, 0, 0, time.UTC)))

	require.Equal(t, 1, seriesCount(t, registry, "ledger_jobs_total"))
	require.Equal(t, 2, seriesCount(t, registry, "ledger_integrity_discrepancies_total"))
}

func TestIntegrityCheckPropagatesCheckerErrors(t *testing.T) {
	boom := errors.New("snapshot failed")
	job, registry := newTestJob(&stubChecker{err: boom})

	_, err := job.Run(context.Background(), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, seriesCount(t, registry, "ledger_jobs_failures_total"))
}

func TestIntegrityCheckPayload(t *testing.T) {
	task, err := NewIntegrityCheckTask(time.Date(2024, 3, 31, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrityCheck, task.Type())

	var payload IntegrityCheckPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "2024-03-31", payload.AsOf)

	checker := &stubChecker{report: reports.IntegrityReport{TrialBalanceOK: true, BalanceSheetOK: true}}
	job, _ := newTestJob(checker)
	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, checker.asOf[0].Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)))

	bad := asynq.NewTask(TaskLedgerIntegrityCheck, []byte(`{"as_of":"31/03/2024"}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
	require.Len(t, checker.asOf, 1)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, slog.Default()).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"failed":0}`, rr.Body.String())
}

// Package cli implements ledgerctl, the operator command line for the ledger.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/app"
)

// Reporter is the part of the report engine ledgerctl prints.
type Reporter interface {
	TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error)
	IncomeStatement(ctx context.Context, from, to time.Time) (reports.IncomeStatement, error)
	BalanceSheet(ctx context.Context, asOf time.Time) (reports.BalanceSheet, error)
	Integrity(ctx context.Context, asOf time.Time) (reports.IntegrityReport, error)
}

// Runtime supplies the collaborators commands need. Tests replace the openers.
type Runtime struct {
	Out          io.Writer
	LoadConfig   func() (*app.Config, error)
	OpenReporter func(ctx context.Context, cfg *app.Config) (Reporter, func() error, error)
}

// DefaultRuntime reads the environment and opens the configured store.
func DefaultRuntime() Runtime {
	return Runtime{
		Out:        os.Stdout,
		LoadConfig: app.LoadConfig,
		OpenReporter: func(ctx context.Context, cfg *app.Config) (Reporter, func() error, error) {
			if cfg.UsesMemoryStore() {
				return nil, nil, fmt.Errorf("ledgerctl: reports need the %s store", app.StorePostgres)
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			res, err := app.OpenLedger(ctx, cfg, logger, accounting.Options{})
			if err != nil {
				return nil, nil, err
			}
			return res.Ledger.Reports, res.Close, nil
		},
	}
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(rt Runtime) *cobra.Command {
	if rt.Out == nil {
		rt.Out = os.Stdout
	}
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the double-entry ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.SetOut(rt.Out)

	rootCmd.AddCommand(
		newMigrateCommand(rt),
		newReportCommand(rt),
		newJobsCommand(rt),
	)
	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		y, m, d := time.Now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

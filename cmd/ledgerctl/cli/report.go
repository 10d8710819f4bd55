package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newReportCommand(rt Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print ledger reports as JSON",
	}

	var asOf string
	tb := &cobra.Command{
		Use:   "trial-balance",
		Short: "Trial balance as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate("as-of", asOf)
			if err != nil {
				return err
			}
			return withReporter(cmd, rt, func(ctx context.Context, r Reporter) (any, error) {
				return r.TrialBalance(ctx, date)
			})
		},
	}
	tb.Flags().StringVar(&asOf, "as-of", "", "report date (default today)")

	var from, to string
	is := &cobra.Command{
		Use:   "income-statement",
		Short: "Income statement for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseDate("from", from)
			if err != nil {
				return err
			}
			end, err := parseDate("to", to)
			if err != nil {
				return err
			}
			return withReporter(cmd, rt, func(ctx context.Context, r Reporter) (any, error) {
				return r.IncomeStatement(ctx, start, end)
			})
		},
	}
	is.Flags().StringVar(&from, "from", "", "first day of the period (required)")
	is.Flags().StringVar(&to, "to", "", "last day of the period (default today)")
	_ = is.MarkFlagRequired("from")

	var bsAsOf string
	bs := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Balance sheet as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate("as-of", bsAsOf)
			if err != nil {
				return err
			}
			return withReporter(cmd, rt, func(ctx context.Context, r Reporter) (any, error) {
				return r.BalanceSheet(ctx, date)
			})
		},
	}
	bs.Flags().StringVar(&bsAsOf, "as-of", "", "report date (default today)")

	var checkAsOf string
	integrity := &cobra.Command{
		Use:   "integrity",
		Short: "Recompute ledger invariants; exits non-zero on discrepancies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate("as-of", checkAsOf)
			if err != nil {
				return err
			}
			var ok bool
			err = withReporter(cmd, rt, func(ctx context.Context, r Reporter) (any, error) {
				report, err := r.Integrity(ctx, date)
				ok = report.OK()
				return report, err
			})
			if err == nil && !ok {
				return errIntegrity
			}
			return err
		},
	}
	integrity.Flags().StringVar(&checkAsOf, "as-of", "", "check date (default today)")

	cmd.AddCommand(tb, is, bs, integrity)
	return cmd
}

var errIntegrity = errors.New("ledger integrity check found discrepancies")

func withReporter(cmd *cobra.Command, rt Runtime, run func(context.Context, Reporter) (any, error)) error {
	cfg, err := rt.LoadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	reporter, closeFn, err := rt.OpenReporter(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	out, err := run(ctx, reporter)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healops/config"
	"github.com/jonwraymond/healops/health"
	"github.com/jonwraymond/healops/report"
)

func newCheckCmd(loadOpts func() config.Options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every dependency once and print the health report",
		Long: "Probe every dependency once and print the health report as JSON.\n" +
			"Exits 0 when every dependency is healthy and 1 otherwise.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, loadOpts())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			agg := a.registry.CheckAll(ctx)
			if save {
				if err := a.reporter.ReportHealth(ctx, agg); err != nil {
					return err
				}
			}
			return printHealth(cmd.OutOrStdout(), agg, time.Now())
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "also write the report to the report directory")
	return cmd
}

// printHealth writes the report and fails with exitFailure unless everything
// is healthy.
func printHealth(w io.Writer, agg health.Aggregate, now time.Time) error {
	if err := writeIndented(w, report.NewHealthReport(agg, now)); err != nil {
		return err
	}
	if agg.Overall != health.StatusHealthy {
		return &exitError{code: exitFailure}
	}
	return nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healops/config"
	"github.com/jonwraymond/healops/report"
)

func newStartupCmd(loadOpts func() config.Options) *cobra.Command {
	var (
		maxWait time.Duration
		poll    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "startup",
		Short: "Wait for required dependencies, healing them inline",
		Long: "Wait until every required dependency is healthy, healing failures\n" +
			"as they are seen, then write and print the startup report.\n" +
			"Exits 0 when ready and 1 on timeout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, loadOpts())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			if maxWait <= 0 {
				maxWait = a.cfg.Startup.MaxWait
			}
			if poll <= 0 {
				poll = a.cfg.Startup.PollInterval
			}

			gate, err := a.startupGate()
			if err != nil {
				return err
			}
			res := gate.Await(ctx, a.cfg.Startup.Required, maxWait, poll)
			if err := writeIndented(cmd.OutOrStdout(), report.NewStartupReport(res)); err != nil {
				return err
			}
			if !res.Ready {
				return &exitError{code: exitFailure}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "maximum wait (default from config)")
	cmd.Flags().DurationVar(&poll, "poll", 0, "poll interval (default from config)")
	return cmd
}

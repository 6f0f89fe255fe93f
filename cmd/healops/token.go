package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healops/auth"
	"github.com/jonwraymond/healops/config"
)

var errNoJWTSecret = errors.New("auth.jwt_secret is not configured")

func newTokenCmd(loadOpts func() config.Options) *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the admin endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lookup, err := config.LoadWith(loadOpts())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := resolveConfig(cmd.Context(), cfg, lookup); err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errNoJWTSecret
			}

			token, err := auth.IssueToken(jwtConfig(cfg.Auth), subject, roles, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleOperator}, "granted roles")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

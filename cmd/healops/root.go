package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/healops/config"
	"github.com/jonwraymond/healops/secret"
)

// rootOptions overrides environment access, mainly for tests.
type rootOptions struct {
	Lookup   secret.LookupFunc
	EnvFiles []string
}

func newRootCmd(opts rootOptions) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "healops",
		Short:         "Dependency health monitoring and self-healing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	loadOpts := func() config.Options {
		return config.Options{
			Path:     configPath,
			EnvFiles: opts.EnvFiles,
			Lookup:   opts.Lookup,
		}
	}

	root.AddCommand(
		newServeCmd(loadOpts),
		newCheckCmd(loadOpts),
		newStartupCmd(loadOpts),
		newTokenCmd(loadOpts),
	)
	return root
}

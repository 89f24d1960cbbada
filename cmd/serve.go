package cmd

import (
	"github.com/spf13/cobra"

	"github.com/onronder/p-958660-sub000/internal/bootstrap"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.Serve(cmd.Context(), opts.configPath, opts.debug)
		},
	}
}

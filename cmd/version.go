package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onronder/p-958660-sub000/internal/bootstrap"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", bootstrap.ServiceName, bootstrap.Version)
		},
	}
}

package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/onronder/p-958660-sub000/internal/bootstrap"
)

var errConnectionFailed = errors.New("connection test failed")

func newTestConnectionCommand(opts *rootOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check that a source's credentials reach its store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Extractor.TestConnection(ctx, source)
				if err != nil {
					return err
				}
				if printErr := printJSON(cmd.OutOrStdout(), res); printErr != nil {
					return printErr
				}
				if !res.Success {
					return errConnectionFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source id")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// Package cmd implements the extractor command-line interface.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	infraconfig "github.com/onronder/p-958660-sub000/infrastructure/config"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/bootstrap"
)

const drainTimeout = 30 * time.Second

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand builds the extractor command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "extractor",
		Short:         "Extract datasets from connected Shopify stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config",
		infraconfig.GetConfigPath("config.yml"), "path to the configuration file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newPreviewCommand(opts),
		newExtractCommand(opts),
		newTestConnectionCommand(opts),
		newMigrateCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// withApp runs fn against a fully wired App and shuts it down afterwards.
func withApp(ctx context.Context, opts *rootOptions, fn func(context.Context, *bootstrap.App) error) error {
	cfg, err := bootstrap.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	cfg.Debug = cfg.Debug || opts.debug

	log, err := bootstrap.CreateLogger(cfg, bootstrap.Version)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		if closeErr := app.Close(drainCtx); closeErr != nil {
			log.Error("Failed to shut down cleanly", infralogger.Error(closeErr))
		}
	}()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/bootstrap"
	"github.com/onronder/p-958660-sub000/internal/database"
)

type migrateFlags struct {
	path  string
	steps int
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	flags := &migrateFlags{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&flags.path, "path", database.DefaultMigrationsPath, "migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator(opts, flags, func(m *database.Migrator) error {
				return m.Up()
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator(opts, flags, func(m *database.Migrator) error {
				return m.Down(flags.steps)
			})
		},
	}
	down.Flags().IntVar(&flags.steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withMigrator(opts, flags, func(m *database.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(opts, flags, func(m *database.Migrator) error {
				return m.Force(v)
			})
		},
	}

	cmd.AddCommand(up, down, version, force)
	return cmd
}

func withMigrator(opts *rootOptions, flags *migrateFlags, fn func(*database.Migrator) error) error {
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

	m, err := database.NewMigrator(cfg.Database, flags.path, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			log.Warn("Failed to close migrator", infralogger.Error(closeErr))
		}
	}()

	return fn(m)
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:blankimports // File source driver

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/config"
)

// DefaultMigrationsPath is resolved relative to the working directory.
const DefaultMigrationsPath = "migrations"

// Migrator applies the SQL files under a migrations directory.
type Migrator struct {
	m   *migrate.Migrate
	dir string
	log infralogger.Logger
}

// NewMigrator opens a dedicated connection; the migrate driver owns it
// until Close.
func NewMigrator(cfg config.DatabaseConfig, dir string, log infralogger.Logger) (*Migrator, error) {
	if dir == "" {
		dir = DefaultMigrationsPath
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return &Migrator{m: m, dir: dir, log: log}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("No pending migrations", infralogger.String("migrations_path", mg.dir))
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}
	mg.log.Info("Migrations applied", infralogger.String("migrations_path", mg.dir))
	return nil
}

// Down rolls back steps migrations, at least one.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := mg.m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("No migrations to roll back", infralogger.String("migrations_path", mg.dir))
			return nil
		}
		return fmt.Errorf("roll back migrations: %w", err)
	}
	mg.log.Info("Migrations rolled back",
		infralogger.String("migrations_path", mg.dir),
		infralogger.Int("steps", steps),
	)
	return nil
}

// Version reports the applied version. A database with no migrations
// reports zero.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the version without running anything, clearing a dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force migration version: %w", err)
	}
	mg.log.Info("Migration version forced", infralogger.Int("version", version))
	return nil
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

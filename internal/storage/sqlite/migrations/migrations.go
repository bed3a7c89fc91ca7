// Package migrations has the embedded schema migrations of the batch run history.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/devsbx/internal/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migrator applies the history schema migrations on a SQLite database.
type Migrator struct {
	db     *sql.DB
	logger log.Logger
}

// NewMigrator returns a new migrator for db.
func NewMigrator(db *sql.DB, logger log.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	return &Migrator{
		db:     db,
		logger: logger.WithValues(log.Kv{"svc": "storage.SQLiteMigrator"}),
	}, nil
}

// Up migrates the schema to the latest version.
func (m *Migrator) Up(ctx context.Context) error {
	return m.migrate(ctx, "up", (*migrate.Migrate).Up)
}

// Down reverts every migration, dropping the history.
func (m *Migrator) Down(ctx context.Context) error {
	return m.migrate(ctx, "down", (*migrate.Migrate).Down)
}

// Version returns the applied schema version, 0 when nothing is applied.
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	var version uint
	err := m.withInstance(ctx, func(inst *migrate.Migrate) error {
		v, dirty, err := inst.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty", v)
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not get schema version: %w", err)
	}

	return version, nil
}

func (m *Migrator) migrate(ctx context.Context, direction string, fn func(*migrate.Migrate) error) error {
	err := m.withInstance(ctx, func(inst *migrate.Migrate) error {
		err := fn(inst)
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Debugf("Schema already %s to date", direction)
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("could not migrate %s: %w", direction, err)
	}

	m.logger.Debugf("Schema migrated %s", direction)
	return nil
}

// withInstance runs fn with a migrate instance over the embedded migrations.
// The database is owned by the caller so only the source is closed.
func (m *Migrator) withInstance(ctx context.Context, fn func(inst *migrate.Migrate) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	driver, err := sqlite3.WithInstance(m.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("could not load migrations: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			m.logger.Warningf("Could not close migrations source: %s", err)
		}
	}()

	inst, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	return fn(inst)
}

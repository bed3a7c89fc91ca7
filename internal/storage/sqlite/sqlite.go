package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/storage"
	"github.com/slok/devsbx/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.BatchRunRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.BatchRunRepository = &Repository{}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s (schema v%d)", cfg.DBPath, version)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateBatchRun stores a new batch run with its operations.
func (r *Repository) CreateBatchRun(ctx context.Context, run model.BatchRun) error {
	if err := run.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // Rollback is safe to call after Commit

	query := `
		INSERT INTO batch_runs (
			id, module, version, device_serial,
			status, error,
			created_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.Module,
		run.Version,
		run.DeviceSerial,
		run.Status,
		run.Error,
		run.CreatedAt.UnixMilli(),
		unixMilliPtr(run.FinishedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: batch_runs.") {
			return fmt.Errorf("batch run already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert batch run: %w", err)
	}

	if err := insertOperations(ctx, tx, run.ID, run.Operations); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Created batch run in repository: %s", run.ID)
	return nil
}

// UpdateBatchRun updates an existing batch run replacing its operations.
func (r *Repository) UpdateBatchRun(ctx context.Context, run model.BatchRun) error {
	if err := run.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE batch_runs
		SET
			module = ?,
			version = ?,
			device_serial = ?,
			status = ?,
			error = ?,
			created_at = ?,
			finished_at = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		run.Module,
		run.Version,
		run.DeviceSerial,
		run.Status,
		run.Error,
		run.CreatedAt.UnixMilli(),
		unixMilliPtr(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update batch run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("batch run %s: %w", run.ID, model.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_operations WHERE batch_run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("could not delete batch operations: %w", err)
	}
	if err := insertOperations(ctx, tx, run.ID, run.Operations); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Updated batch run in repository: %s", run.ID)
	return nil
}

// GetBatchRun retrieves a batch run by ID.
func (r *Repository) GetBatchRun(ctx context.Context, id string) (*model.BatchRun, error) {
	query := `
		SELECT
			id, module, version, device_serial,
			status, error,
			created_at, finished_at
		FROM batch_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch run %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query batch run: %w", err)
	}

	run.Operations, err = r.operations(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// ListBatchRuns returns the batch runs matching the options, newest first.
func (r *Repository) ListBatchRuns(ctx context.Context, opts storage.ListBatchRunsOpts) ([]model.BatchRun, error) {
	var where []string
	var args []any
	if opts.Module != "" {
		where = append(where, "module = ?")
		args = append(args, opts.Module)
	}
	if opts.DeviceSerial != "" {
		where = append(where, "device_serial = ?")
		args = append(args, opts.DeviceSerial)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}

	query := `
		SELECT
			id, module, version, device_serial,
			status, error,
			created_at, finished_at
		FROM batch_runs
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []model.BatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for i := range runs {
		runs[i].Operations, err = r.operations(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return runs, nil
}

func (r *Repository) operations(ctx context.Context, runID string) ([]model.BatchOperation, error) {
	query := `
		SELECT idx, type, core, status, error
		FROM batch_operations
		WHERE batch_run_id = ?
		ORDER BY idx ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query batch operations: %w", err)
	}
	defer rows.Close()

	var ops []model.BatchOperation
	for rows.Next() {
		var op model.BatchOperation
		if err := rows.Scan(&op.Index, &op.Type, &op.Core, &op.Status, &op.Error); err != nil {
			return nil, fmt.Errorf("could not scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ops, nil
}

func insertOperations(ctx context.Context, tx *sql.Tx, runID string, ops []model.BatchOperation) error {
	if len(ops) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO batch_operations (batch_run_id, idx, type, core, status, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("could not prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		if _, err := stmt.ExecContext(ctx, runID, op.Index, op.Type, op.Core, op.Status, op.Error); err != nil {
			return fmt.Errorf("could not insert operation %d: %w", op.Index, err)
		}
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.BatchRun, error) {
	var run model.BatchRun
	var createdAt int64
	var finishedAt sql.NullInt64

	err := s.Scan(
		&run.ID,
		&run.Module,
		&run.Version,
		&run.DeviceSerial,
		&run.Status,
		&run.Error,
		&createdAt,
		&finishedAt,
	)
	if err != nil {
		return model.BatchRun{}, err
	}

	run.CreatedAt = timeFromUnixMilli(createdAt)
	if finishedAt.Valid {
		t := timeFromUnixMilli(finishedAt.Int64)
		run.FinishedAt = &t
	}

	return run, nil
}

func unixMilliPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.UnixMilli()
	return &u
}

func timeFromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

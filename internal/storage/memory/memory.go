package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.BatchRunRepository.
type Repository struct {
	runs   map[string]model.BatchRun
	mu     sync.RWMutex
	logger log.Logger
}

var _ storage.BatchRunRepository = &Repository{}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		runs:   make(map[string]model.BatchRun),
		logger: cfg.Logger,
	}, nil
}

// CreateBatchRun stores a new batch run.
func (r *Repository) CreateBatchRun(ctx context.Context, run model.BatchRun) error {
	if err := run.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("batch run %s: %w", run.ID, model.ErrAlreadyExists)
	}
	r.runs[run.ID] = copyRun(run)

	r.logger.Debugf("Created batch run in memory: %s", run.ID)
	return nil
}

// UpdateBatchRun updates an existing batch run.
func (r *Repository) UpdateBatchRun(ctx context.Context, run model.BatchRun) error {
	if err := run.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("batch run %s: %w", run.ID, model.ErrNotFound)
	}
	r.runs[run.ID] = copyRun(run)

	r.logger.Debugf("Updated batch run in memory: %s", run.ID)
	return nil
}

// GetBatchRun retrieves a batch run by ID.
func (r *Repository) GetBatchRun(ctx context.Context, id string) (*model.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("batch run %s: %w", id, model.ErrNotFound)
	}

	cp := copyRun(run)
	return &cp, nil
}

// ListBatchRuns returns the batch runs matching the options, newest first.
func (r *Repository) ListBatchRuns(ctx context.Context, opts storage.ListBatchRunsOpts) ([]model.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var runs []model.BatchRun
	for _, run := range r.runs {
		if opts.Module != "" && run.Module != opts.Module {
			continue
		}
		if opts.DeviceSerial != "" && run.DeviceSerial != opts.DeviceSerial {
			continue
		}
		if opts.Status != "" && run.Status != opts.Status {
			continue
		}
		runs = append(runs, copyRun(run))
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if opts.Limit > 0 && len(runs) > opts.Limit {
		runs = runs[:opts.Limit]
	}

	return runs, nil
}

func copyRun(run model.BatchRun) model.BatchRun {
	if run.Operations != nil {
		run.Operations = append([]model.BatchOperation(nil), run.Operations...)
	}
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		run.FinishedAt = &t
	}
	return run
}

package history

import (
	"context"
	"fmt"

	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.BatchRunRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})
	return nil
}

// Service queries the recorded batch runs.
type Service struct {
	repo   storage.BatchRunRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// ListRequest contains the filters to list batch runs.
type ListRequest struct {
	Module       string
	DeviceSerial string
	Status       model.BatchRunStatus
	Limit        int
}

// List returns the batch runs matching the request, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]model.BatchRun, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}
	switch req.Status {
	case "", model.BatchRunStatusRunning, model.BatchRunStatusCompleted, model.BatchRunStatusFailed, model.BatchRunStatusAborted:
	default:
		return nil, fmt.Errorf("invalid status filter %q: %w", req.Status, model.ErrNotValid)
	}

	runs, err := s.repo.ListBatchRuns(ctx, storage.ListBatchRunsOpts{
		Module:       req.Module,
		DeviceSerial: req.DeviceSerial,
		Status:       req.Status,
		Limit:        req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not list batch runs: %w", err)
	}

	s.logger.Debugf("Listed %d batch runs", len(runs))

	return runs, nil
}

// Get returns a batch run by ID.
func (s *Service) Get(ctx context.Context, id string) (*model.BatchRun, error) {
	if id == "" {
		return nil, fmt.Errorf("batch run id is required: %w", model.ErrNotValid)
	}

	run, err := s.repo.GetBatchRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get batch run: %w", err)
	}

	return run, nil
}

package storage

import (
	"context"

	"github.com/slok/devsbx/internal/model"
)

// ListBatchRunsOpts are the filters to list batch runs, empty fields don't filter.
type ListBatchRunsOpts struct {
	Module       string
	DeviceSerial string
	Status       model.BatchRunStatus
	// Limit is the max number of runs returned, newest first (0 is unlimited).
	Limit int
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name BatchRunRepository

// BatchRunRepository is the interface for batch run history persistence.
type BatchRunRepository interface {
	CreateBatchRun(ctx context.Context, r model.BatchRun) error
	UpdateBatchRun(ctx context.Context, r model.BatchRun) error
	GetBatchRun(ctx context.Context, id string) (*model.BatchRun, error)
	ListBatchRuns(ctx context.Context, opts ListBatchRunsOpts) ([]model.BatchRun, error)
}

package model

import (
	"fmt"
	"time"
)

// BatchRunStatus is the status of a recorded batch run.
type BatchRunStatus string

const (
	BatchRunStatusRunning   BatchRunStatus = "running"
	BatchRunStatusCompleted BatchRunStatus = "completed"
	BatchRunStatusFailed    BatchRunStatus = "failed"
	BatchRunStatusAborted   BatchRunStatus = "aborted"
)

// OperationStatus is the status of an operation inside a recorded batch run.
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusSucceeded OperationStatus = "succeeded"
	OperationStatusFailed    OperationStatus = "failed"
)

// BatchRun is the history record of a batch executed against a device.
type BatchRun struct {
	ID           string
	Module       string
	Version      string
	DeviceSerial string
	Status       BatchRunStatus
	Error        string
	Operations   []BatchOperation
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// BatchOperation is the history record of a single operation in a batch run.
type BatchOperation struct {
	Index  int
	Type   string
	Core   DeviceCore
	Status OperationStatus
	Error  string
}

// Validate validates the batch run record.
func (b BatchRun) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("batch run id is required: %w", ErrNotValid)
	}
	if b.Module == "" {
		return fmt.Errorf("batch run module is required: %w", ErrNotValid)
	}
	if b.DeviceSerial == "" {
		return fmt.Errorf("batch run device serial is required: %w", ErrNotValid)
	}
	switch b.Status {
	case BatchRunStatusRunning, BatchRunStatusCompleted, BatchRunStatusFailed, BatchRunStatusAborted:
	default:
		return fmt.Errorf("invalid batch run status %q: %w", b.Status, ErrNotValid)
	}
	for i, op := range b.Operations {
		if op.Index != i {
			return fmt.Errorf("operation %d has index %d: %w", i, op.Index, ErrNotValid)
		}
	}
	return nil
}

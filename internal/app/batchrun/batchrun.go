package batchrun

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/devsbx/internal/batch"
	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/storage"
)

// ServiceConfig is the configuration for the batch run service.
type ServiceConfig struct {
	Sessions   sandbox.Provider
	Repository storage.BatchRunRepository
	// StagingDir is where the batch stages temporary files.
	StagingDir string
	// IDGenerator returns new batch run IDs (default: ULID).
	IDGenerator func() string
	// TimeNow returns the current time (default: time.Now).
	TimeNow func() time.Time
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Sessions == nil {
		return fmt.Errorf("sessions provider is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.IDGenerator == nil {
		c.IDGenerator = func() string {
			return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
		}
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.BatchRun"})
	return nil
}

// Service runs batch specs against devices and records them in the history.
type Service struct {
	sessions   sandbox.Provider
	repo       storage.BatchRunRepository
	stagingDir string
	newID      func() string
	now        func() time.Time
	logger     log.Logger
}

// NewService creates a new batch run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sessions:   cfg.Sessions,
		repo:       cfg.Repository,
		stagingDir: cfg.StagingDir,
		newID:      cfg.IDGenerator,
		now:        cfg.TimeNow,
		logger:     cfg.Logger,
	}, nil
}

// UpdateKind is the kind of operation update.
type UpdateKind string

const (
	UpdateKindBegin     UpdateKind = "begin"
	UpdateKindProgress  UpdateKind = "progress"
	UpdateKindEnd       UpdateKind = "end"
	UpdateKindException UpdateKind = "exception"
)

// Update is a change on one of the batch operations while the batch runs.
type Update struct {
	Kind           UpdateKind
	OperationIndex int
	OperationType  string
	// Progress is set on progress updates.
	Progress model.Progress
	// Failed is set on end updates of failed tasks.
	Failed bool
	// Err is set on exception updates.
	Err error
}

// Request contains the parameters for running a batch.
type Request struct {
	Spec model.BatchSpec
	// OnUpdate receives the operation updates sequentially (optional).
	OnUpdate func(u Update)
}

// Collected are the results grouped by a collect of the batch spec.
type Collected struct {
	OperationIndex int
	Results        []json.RawMessage
}

// Result is the result of a batch run.
type Result struct {
	Run       model.BatchRun
	Results   []json.RawMessage
	Collected []Collected
}

// Run runs the batch spec. Once the run is recorded the result is returned
// even if the batch fails, with the record of what happened.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	spec := req.Spec

	// 1. Validate.
	if spec.Module == "" {
		return nil, fmt.Errorf("module is required: %w", model.ErrNotValid)
	}
	if err := spec.Device.Validate(); err != nil {
		return nil, err
	}

	// 2. Get the session of the module.
	session, err := s.sessions.Session(ctx, spec.Module)
	if err != nil {
		return nil, fmt.Errorf("could not get module session: %w", err)
	}
	if spec.Version != "" && spec.Version != session.Version() {
		return nil, fmt.Errorf("batch needs %s %s but %s is pinned: %w", spec.Module, spec.Version, session.Version(), model.ErrNotValid)
	}

	// 3. Build the batch.
	b, err := batch.New(batch.Config{
		Session:    session,
		StagingDir: s.stagingDir,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create batch: %w", err)
	}

	run := model.BatchRun{
		ID:           s.newID(),
		Module:       session.Module(),
		Version:      session.Version(),
		DeviceSerial: spec.Device.SerialNumber,
		Status:       model.BatchRunStatusRunning,
		CreatedAt:    s.now().UTC(),
	}
	rec := &recorder{run: run, onUpdate: req.OnUpdate}
	for i, op := range spec.Operations {
		rec.run.Operations = append(rec.run.Operations, model.BatchOperation{
			Index:  i,
			Type:   op.Type,
			Core:   op.Core,
			Status: model.OperationStatusPending,
		})

		if err := addOperation(b, op, rec.callbacks(i, op.Type)); err != nil {
			return nil, fmt.Errorf("invalid operation %d: %w", i, err)
		}
		if op.Collect > 0 {
			b.Collect(op.Collect, func(results []json.RawMessage) { rec.collect(i, results) })
		}
	}

	// 4. Record and run.
	logger := s.logger.WithValues(log.Kv{"batch-run": run.ID, "device": spec.Device.SerialNumber})
	if err := s.repo.CreateBatchRun(ctx, rec.snapshot()); err != nil {
		return nil, fmt.Errorf("could not record batch run: %w", err)
	}

	logger.Infof("Running batch with %d operations", len(spec.Operations))
	results, runErr := b.Run(ctx, spec.Device)

	// 5. Record the outcome, even when the context has been cancelled.
	final := rec.finish(b.State(), runErr, s.now().UTC())
	if err := s.repo.UpdateBatchRun(context.WithoutCancel(ctx), final); err != nil {
		logger.Errorf("Could not record batch run outcome: %s", err)
	}

	res := &Result{Run: final, Results: results, Collected: rec.collected()}
	if runErr != nil {
		return res, fmt.Errorf("batch run %s failed: %w", run.ID, runErr)
	}

	logger.Infof("Batch run completed")

	return res, nil
}

// recorder tracks the batch run record from the operation callbacks.
type recorder struct {
	mu       sync.Mutex
	run      model.BatchRun
	groups   []Collected
	onUpdate func(u Update)
}

func (r *recorder) callbacks(i int, opType string) batch.Callbacks {
	return batch.Callbacks{
		OnTaskBegin: func(ev event.TaskBegin) {
			r.setStatus(i, model.OperationStatusRunning, "")
			r.notify(Update{Kind: UpdateKindBegin, OperationIndex: i, OperationType: opType})
		},
		OnProgress: func(p model.Progress) {
			r.notify(Update{Kind: UpdateKindProgress, OperationIndex: i, OperationType: opType, Progress: p})
		},
		OnTaskEnd: func(ev event.TaskEnd) {
			if ev.Failed() {
				r.setStatus(i, model.OperationStatusFailed, taskEndError(ev))
			} else {
				r.setStatus(i, model.OperationStatusSucceeded, "")
			}
			r.notify(Update{Kind: UpdateKindEnd, OperationIndex: i, OperationType: opType, Failed: ev.Failed()})
		},
		OnException: func(err error) {
			r.setStatus(i, model.OperationStatusFailed, err.Error())
			r.notify(Update{Kind: UpdateKindException, OperationIndex: i, OperationType: opType, Err: err})
		},
	}
}

func (r *recorder) notify(u Update) {
	if r.onUpdate != nil {
		r.onUpdate(u)
	}
}

func (r *recorder) setStatus(i int, status model.OperationStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := &r.run.Operations[i]
	// A failure is final.
	if op.Status == model.OperationStatusFailed {
		return
	}
	op.Status = status
	op.Error = errMsg
}

func (r *recorder) collect(i int, results []json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, Collected{OperationIndex: i, Results: results})
}

func (r *recorder) collected() []Collected {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Collected(nil), r.groups...)
}

func (r *recorder) snapshot() model.BatchRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.run
	run.Operations = append([]model.BatchOperation(nil), r.run.Operations...)
	return run
}

// finish sets the final status of the run from the batch state.
func (r *recorder) finish(state batch.State, runErr error, now time.Time) model.BatchRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch state {
	case batch.StateCompleted:
		r.run.Status = model.BatchRunStatusCompleted
	case batch.StateAborted:
		r.run.Status = model.BatchRunStatusAborted
	default:
		r.run.Status = model.BatchRunStatusFailed
	}
	if runErr != nil {
		r.run.Error = runErr.Error()
	}

	// Operations that began but never ended didn't finish.
	for i := range r.run.Operations {
		op := &r.run.Operations[i]
		if op.Status == model.OperationStatusRunning {
			op.Status = model.OperationStatusFailed
			if op.Error == "" && runErr != nil {
				op.Error = runErr.Error()
			}
		}
	}
	r.run.FinishedAt = &now

	run := r.run
	run.Operations = append([]model.BatchOperation(nil), r.run.Operations...)
	return run
}

func taskEndError(ev event.TaskEnd) string {
	if ev.Error != nil && ev.Error.Description != "" {
		return ev.Error.Description
	}
	if ev.Message != "" {
		return ev.Message
	}
	return "task failed"
}

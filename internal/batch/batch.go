// Package batch builds batches of device operations and runs them as a single
// external tool subprocess, correlating the streamed events back to the
// operation that caused them.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/scope"
)

const executeSubcommand = "x-execute-batch"

// State is the lifecycle state of a batch.
type State string

const (
	StateBuilding  State = "building"
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

// Callbacks are the optional callbacks of an operation.
type Callbacks struct {
	// OnTaskBegin is called when the operation task starts.
	OnTaskBegin func(ev event.TaskBegin)
	// OnProgress is called with the normalized progress of the operation task.
	OnProgress func(p model.Progress)
	// OnTaskEnd is called when the operation task ends, successfully or not.
	OnTaskEnd func(ev event.TaskEnd)
	// OnException is called with the error that made the operation fail.
	OnException func(err error)
}

type materializeFunc func(ctx context.Context) (model.OperationDescriptor, error)

type operation struct {
	opType      string
	materialize materializeFunc
	callbacks   Callbacks
	// release is called once the operation task ends.
	release func() error
}

// Config is the configuration of a batch.
type Config struct {
	// Session runs the batch (required).
	Session sandbox.Session
	// StagingDir is where firmware bytes are staged (default: os temp dir).
	StagingDir string
	// Logger for logging.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Session == nil {
		return fmt.Errorf("session is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "batch.Batch"})

	return nil
}

// Batch is an ordered set of device operations run as one external tool invocation.
// A batch can only be run once.
type Batch struct {
	session    sandbox.Session
	stagingDir string
	logger     log.Logger

	mu       sync.Mutex
	state    State
	ops      []*operation
	collects []*collectRequest
	buildErr error
	scopes   scope.Group
}

// New returns a new empty batch.
func New(cfg Config) (*Batch, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Batch{
		session:    cfg.Session,
		stagingDir: cfg.StagingDir,
		logger:     cfg.Logger,
		state:      StateBuilding,
	}, nil
}

// State returns the current batch state.
func (b *Batch) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Len returns the number of operations on the batch.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

func (b *Batch) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *Batch) add(op *operation) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
	return b
}

func (b *Batch) addBuildErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buildErr = multierror.Append(b.buildErr, err)
}

// Release discards a batch that won't be run, removing its staged firmware.
// Batches that stage content must be run or released. Releasing a batch
// being built aborts it, releasing a run batch is a noop.
func (b *Batch) Release() error {
	b.mu.Lock()
	if b.state == StateBuilding {
		b.state = StateAborted
	}
	b.mu.Unlock()

	if err := b.scopes.Release(); err != nil {
		return fmt.Errorf("could not release batch resources: %w", err)
	}
	return nil
}

// Run runs the batch on the device and returns the result payload of every
// task end in order. An empty batch returns right away without running anything.
func (b *Batch) Run(ctx context.Context, device model.Device) ([]json.RawMessage, error) {
	b.mu.Lock()
	if b.state != StateBuilding {
		b.mu.Unlock()
		return nil, fmt.Errorf("batch can't run (%s): %w", b.state, model.ErrNotValid)
	}
	b.state = StateSubmitted
	ops := b.ops
	collects := b.collects
	buildErr := b.buildErr
	b.mu.Unlock()

	// Staged resources are released on every exit path.
	defer func() {
		if rerr := b.scopes.Release(); rerr != nil {
			b.logger.Warningf("Could not release batch resources: %s", rerr)
		}
	}()

	if len(ops) == 0 {
		b.setState(StateCompleted)
		return []json.RawMessage{}, nil
	}

	if err := device.Validate(); err != nil {
		b.setState(StateFailed)
		return nil, err
	}

	if buildErr != nil {
		b.setState(StateFailed)
		return nil, fmt.Errorf("invalid batch: %w", buildErr)
	}

	descs, err := b.materialize(ctx, ops)
	if err != nil {
		b.setState(StateFailed)
		return nil, err
	}

	reqJSON, err := marshalRequest(model.NewBatchRequest(descs))
	if err != nil {
		b.setState(StateFailed)
		return nil, fmt.Errorf("could not encode batch request: %w", err)
	}

	logger := b.logger.WithValues(log.Kv{"device": device.SerialNumber, "operations": len(ops)})
	logger.Infof("Running batch")

	rs := newRunState(ops, collects, logger)
	b.setState(StateRunning)
	bg, err := b.session.Start(ctx, executeSubcommand, []string{
		"--batch-json", string(reqJSON),
		"--serial-number", device.SerialNumber,
	}, sandbox.ExecOpts{Handler: rs})
	if err != nil {
		err = fmt.Errorf("could not start batch: %w", err)
		rs.forwardInFlight(err)
		b.setState(StateFailed)
		return nil, err
	}

	procErr := bg.Wait()
	rs.releaseAll()

	if taskErr := rs.taskFailures(); taskErr != nil {
		rs.forwardTaskFailures(taskErr)
		b.setState(StateFailed)
		if procErr != nil {
			taskErr = multierror.Append(taskErr, procErr)
		}
		logger.Warningf("Batch failed: %s", taskErr)
		return nil, taskErr
	}

	if procErr != nil {
		rs.forwardInFlight(procErr)
		if errors.Is(procErr, model.ErrAborted) {
			b.setState(StateAborted)
		} else {
			b.setState(StateFailed)
		}
		logger.Warningf("Batch failed: %s", procErr)
		return nil, fmt.Errorf("batch run failed: %w", procErr)
	}

	rs.warnPendingCollects()
	b.setState(StateCompleted)
	logger.Infof("Batch completed")

	return rs.results(), nil
}

// materialize gets all the operation descriptors concurrently, any failure
// fails all of them.
func (b *Batch) materialize(ctx context.Context, ops []*operation) ([]model.OperationDescriptor, error) {
	descs := make([]model.OperationDescriptor, len(ops))

	g, gctx := errgroup.WithContext(ctx)
	for i, op := range ops {
		g.Go(func() error {
			desc, err := op.materialize(gctx)
			if err != nil {
				return fmt.Errorf("could not prepare operation %d (%s): %w", i, op.opType, err)
			}
			if err := desc.Validate(); err != nil {
				return fmt.Errorf("invalid operation %d (%s): %w", i, op.opType, err)
			}
			descs[i] = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return descs, nil
}

package batch

import (
	"encoding/json"

	"github.com/hashicorp/go-multierror"

	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/log"
)

// runState correlates the events of one batch run with its operations. Events
// are handled sequentially in the order the tool emits them.
type runState struct {
	event.NoopHandler

	ops      []*operation
	collects []*collectRequest
	logger   log.Logger

	currentOperationIndex       int
	lastCompletedOperationIndex int
	taskEnds                    []event.TaskEnd
	failures                    []*TaskFailure
	released                    []bool
}

var _ event.Handler = &runState{}

func newRunState(ops []*operation, collects []*collectRequest, logger log.Logger) *runState {
	return &runState{
		ops:                         ops,
		collects:                    collects,
		logger:                      logger,
		currentOperationIndex:       -1,
		lastCompletedOperationIndex: -1,
		released:                    make([]bool, len(ops)),
	}
}

func (r *runState) op(i int) *operation {
	if i < 0 || i >= len(r.ops) {
		return nil
	}
	return r.ops[i]
}

func (r *runState) HandleTaskBegin(ev event.TaskBegin) {
	r.currentOperationIndex++
	op := r.op(r.currentOperationIndex)
	if op == nil {
		r.logger.Debugf("Task %q begin without operation (index %d)", ev.Task.Name, r.currentOperationIndex)
		return
	}
	if op.callbacks.OnTaskBegin != nil {
		op.callbacks.OnTaskBegin(ev)
	}
}

func (r *runState) HandleProgress(ev event.TaskProgress) {
	if ev.Task == nil {
		return
	}
	op := r.op(r.currentOperationIndex)
	if op == nil || op.callbacks.OnProgress == nil {
		return
	}
	op.callbacks.OnProgress(ev.Progress.Normalize())
}

func (r *runState) HandleTaskEnd(ev event.TaskEnd) {
	r.lastCompletedOperationIndex++
	idx := r.lastCompletedOperationIndex
	r.taskEnds = append(r.taskEnds, ev)

	if ev.Failed() {
		r.failures = append(r.failures, newTaskFailure(idx, ev))
	}

	if op := r.op(idx); op != nil {
		r.release(idx)
		if op.callbacks.OnTaskEnd != nil {
			op.callbacks.OnTaskEnd(ev)
		}
	} else {
		r.logger.Debugf("Task %q end without operation (index %d)", ev.Task.Name, idx)
	}

	r.fireCollects()
}

func (r *runState) HandleLog(ev event.Log) {
	r.logger.Debugf("Tool log (%s): %s", ev.Level, ev.Message)
}

// release releases the resources of an operation once.
func (r *runState) release(i int) {
	op := r.op(i)
	if op == nil || r.released[i] {
		return
	}
	r.released[i] = true
	if op.release == nil {
		return
	}
	if err := op.release(); err != nil {
		r.logger.Warningf("Could not release operation %d resources: %s", i, err)
	}
}

func (r *runState) releaseAll() {
	for i := range r.ops {
		r.release(i)
	}
}

// taskFailures returns an error with every failed task, nil if none failed.
func (r *runState) taskFailures() error {
	var merr *multierror.Error
	for _, f := range r.failures {
		merr = multierror.Append(merr, f)
	}
	return merr.ErrorOrNil()
}

// forwardTaskFailures calls the exception callback of every operation that
// owns a failed task.
func (r *runState) forwardTaskFailures(err error) {
	notified := map[int]bool{}
	for _, f := range r.failures {
		op := r.op(f.OperationIndex)
		if op == nil || notified[f.OperationIndex] {
			continue
		}
		notified[f.OperationIndex] = true
		if op.callbacks.OnException != nil {
			op.callbacks.OnException(err)
		}
	}
}

// forwardInFlight calls the exception callback of the operation that was
// running when the batch failed, if any.
func (r *runState) forwardInFlight(err error) {
	if r.currentOperationIndex <= r.lastCompletedOperationIndex {
		return
	}
	op := r.op(r.currentOperationIndex)
	if op == nil || op.callbacks.OnException == nil {
		return
	}
	op.callbacks.OnException(err)
}

// results returns the result payload of every task end in order.
func (r *runState) results() []json.RawMessage {
	res := make([]json.RawMessage, 0, len(r.taskEnds))
	for _, t := range r.taskEnds {
		res = append(res, t.Task.Data)
	}
	return res
}

package batch

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/slok/devsbx/internal/model"
)

// collectRequest groups the results of count consecutive task ends starting at
// the task end of the operation at index after.
type collectRequest struct {
	after int
	count int
	fn    func(results []json.RawMessage)
	fired bool
}

func (c *collectRequest) ready(taskEnds int) bool {
	return !c.fired && taskEnds >= c.after+c.count
}

// Collect registers fn to be called once with the results of the next count
// task ends, starting with the task end of the last added operation.
func (b *Batch) Collect(count int, fn func(results []json.RawMessage)) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case len(b.ops) == 0:
		b.buildErr = multierror.Append(b.buildErr, fmt.Errorf("collect needs a previous operation: %w", model.ErrNotValid))
	case count < 1:
		b.buildErr = multierror.Append(b.buildErr, fmt.Errorf("collect count must be positive, got %d: %w", count, model.ErrNotValid))
	case fn == nil:
		b.buildErr = multierror.Append(b.buildErr, fmt.Errorf("collect callback is required: %w", model.ErrNotValid))
	default:
		b.collects = append(b.collects, &collectRequest{after: len(b.ops) - 1, count: count, fn: fn})
	}

	return b
}

// fireCollects calls the collect requests that have all their task ends.
func (r *runState) fireCollects() {
	for _, c := range r.collects {
		if !c.ready(len(r.taskEnds)) {
			continue
		}
		c.fired = true

		results := make([]json.RawMessage, 0, c.count)
		for _, t := range r.taskEnds[c.after : c.after+c.count] {
			results = append(results, t.Task.Data)
		}
		c.fn(results)
	}
}

func (r *runState) warnPendingCollects() {
	for _, c := range r.collects {
		if !c.fired {
			r.logger.Warningf("Collect of %d results after operation %d didn't receive enough task ends (%d)", c.count, c.after, len(r.taskEnds))
		}
	}
}


package sandbox

import (
	"github.com/slok/devsbx/internal/event"
)

// ResultCollector is an event handler that gathers the results of a subcommand.
type ResultCollector struct {
	event.NoopHandler

	result ExecResult
}

// NewResultCollector returns a new result collector.
func NewResultCollector() *ResultCollector {
	return &ResultCollector{}
}

func (r *ResultCollector) HandleInfo(ev event.Info) {
	r.result.Info = append(r.result.Info, ev.Data)
}

func (r *ResultCollector) HandleTaskEnd(ev event.TaskEnd) {
	r.result.TaskEnds = append(r.result.TaskEnds, ev)
}

// Result returns the gathered result.
func (r *ResultCollector) Result() *ExecResult {
	res := r.result
	return &res
}

// FailedTasks returns the task ends with a failed result.
func (r *ResultCollector) FailedTasks() []event.TaskEnd {
	var failed []event.TaskEnd
	for _, t := range r.result.TaskEnds {
		if t.Failed() {
			failed = append(failed, t)
		}
	}
	return failed
}

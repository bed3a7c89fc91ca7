package sandbox

import (
	"strings"

	"github.com/slok/devsbx/internal/event"
)

// ExecError is the error of a failed subcommand execution. Its message
// is composed from the process error, the failed task messages and the
// standard error output.
type ExecError struct {
	// Err is the process error, nil if the process exited cleanly.
	Err error
	// FailedTasks are the tasks that ended with a failed result.
	FailedTasks []event.TaskEnd
	// Stderr is the raw standard error output.
	Stderr string
}

// NewExecError returns an ExecError if any of the failure sources is set, otherwise nil.
func NewExecError(err error, failed []event.TaskEnd, stderr string) error {
	if err == nil && len(failed) == 0 && strings.TrimSpace(stderr) == "" {
		return nil
	}
	return &ExecError{Err: err, FailedTasks: failed, Stderr: stderr}
}

func (e *ExecError) Error() string {
	var parts []string
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	for _, t := range e.FailedTasks {
		if msg := TaskMessage(t); msg != "" {
			parts = append(parts, msg)
		}
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		parts = append(parts, stderr)
	}

	return strings.ReplaceAll(strings.Join(parts, " "), "Error: ", "")
}

func (e *ExecError) Unwrap() error { return e.Err }

// TaskMessage returns the user facing message of a task end, ending in a period.
// Falls back to the task error description if the task has no message.
func TaskMessage(t event.TaskEnd) string {
	msg := strings.TrimSpace(t.Message)
	if msg == "" && t.Error != nil {
		msg = strings.TrimSpace(t.Error.Description)
	}
	if msg == "" {
		return ""
	}
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}

package batch

import (
	"fmt"
	"strings"

	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/sandbox"
)

// TaskFailure is a batch task that ended with a failed result.
type TaskFailure struct {
	// OperationIndex is the index of the operation that owns the task.
	OperationIndex int
	TaskID         string
	TaskName       string
	Code           int
	Description    string
	Message        string
}

func newTaskFailure(index int, ev event.TaskEnd) *TaskFailure {
	f := &TaskFailure{
		OperationIndex: index,
		TaskID:         ev.Task.ID,
		TaskName:       ev.Task.Name,
		Message:        sandbox.TaskMessage(ev),
	}
	if ev.Error != nil {
		f.Code = ev.Error.Code
		f.Description = ev.Error.Description
	}
	return f
}

func (t *TaskFailure) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "operation %d task %q failed (error code %d)", t.OperationIndex, t.TaskName, t.Code)
	if t.Description != "" {
		fmt.Fprintf(&sb, ": %s", t.Description)
	}
	if t.Message != "" {
		fmt.Fprintf(&sb, ": %s", strings.ReplaceAll(t.Message, "Error: ", ""))
	}
	return sb.String()
}

// Package event has the typed events emitted by the external device tool and
// the dispatch of those events to a handler.
package event

import (
	"encoding/json"

	"github.com/slok/devsbx/internal/model"
)

// Type is the declared kind of a record.
type Type string

const (
	TypeTaskProgress Type = "task_progress"
	TypeTaskBegin    Type = "task_begin"
	TypeTaskEnd      Type = "task_end"
	TypeInfo         Type = "info"
	TypeLog          Type = "log"
	TypeBatchUpdate  Type = "batch_update"
)

// Envelope is a decoded event. The set of implementations is closed to this package.
type Envelope interface {
	Type() Type
}

// Task is the identity of an external tool task.
type Task struct {
	ID          string
	Name        string
	Description string
	// Data is the task result payload, only present on task end events.
	Data json.RawMessage
}

// TaskBegin is emitted when the tool starts a task.
type TaskBegin struct {
	Task Task
}

// TaskProgress is emitted while a task runs. Task is nil for progress not tied to a task.
type TaskProgress struct {
	Task     *Task
	Progress model.Progress
}

// TaskResult is the result of a finished task.
type TaskResult string

const (
	TaskResultSuccess TaskResult = "success"
	TaskResultFail    TaskResult = "fail"
)

// TaskError is the error reported by a failed task.
type TaskError struct {
	Code        int
	Description string
}

// TaskEnd is emitted once when a task finishes.
type TaskEnd struct {
	Task    Task
	Result  TaskResult
	Error   *TaskError
	Message string
}

// Failed returns true if the task failed.
func (t TaskEnd) Failed() bool { return t.Result == TaskResultFail }

// Info is an arbitrary result payload not tied to a task.
type Info struct {
	Data json.RawMessage
}

// Log is a log line of the external tool.
type Log struct {
	Level   string
	Message string
}

// BatchUpdate wraps an event that belongs to a sub batch or sub device.
type BatchUpdate struct {
	ID   string
	Data Envelope
}

func (TaskBegin) Type() Type    { return TypeTaskBegin }
func (TaskProgress) Type() Type { return TypeTaskProgress }
func (TaskEnd) Type() Type      { return TypeTaskEnd }
func (Info) Type() Type         { return TypeInfo }
func (Log) Type() Type          { return TypeLog }
func (BatchUpdate) Type() Type  { return TypeBatchUpdate }

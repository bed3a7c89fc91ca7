package lib

import (
	"github.com/slok/devsbx/internal/app/batchrun"
	"github.com/slok/devsbx/internal/batch"
	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/model"
)

// Errors returned by the client, check them with [errors.Is].
var (
	// ErrNotFound is returned when a resource (batch run, module version...) doesn't exist.
	ErrNotFound = model.ErrNotFound
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = model.ErrAlreadyExists
	// ErrNotValid is returned on invalid input or operations.
	ErrNotValid = model.ErrNotValid
	// ErrAborted is returned when an execution is cancelled.
	ErrAborted = model.ErrAborted
)

// Device is the device targeted by a batch.
type Device = model.Device

// DeviceCore selects the device core of an operation.
type DeviceCore = model.DeviceCore

const (
	DeviceCoreDefault     = model.DeviceCoreDefault
	DeviceCoreApplication = model.DeviceCoreApplication
	DeviceCoreNetwork     = model.DeviceCoreNetwork
	DeviceCoreModem       = model.DeviceCoreModem
)

// Progress is the normalized progress of a device tool task.
type Progress = model.Progress

// Task events received by the batch operation callbacks.
type (
	Task      = event.Task
	TaskBegin = event.TaskBegin
	TaskEnd   = event.TaskEnd
	TaskError = event.TaskError
)

// Batch is a set of device operations run as a single device tool execution.
// Create one with [Client.NewBatch].
type Batch = batch.Batch

// BatchCallbacks are the optional callbacks of a batch operation.
type BatchCallbacks = batch.Callbacks

// TaskFailure is a failed task of a batch run.
type TaskFailure = batch.TaskFailure

// BatchSpec describes a batch run declaratively.
type BatchSpec = model.BatchSpec

// OperationSpec describes one operation of a [BatchSpec].
type OperationSpec = model.OperationSpec

// BatchUpdate is an operation change while a [BatchSpec] runs.
type BatchUpdate = batchrun.Update

// BatchResult is the result of running a [BatchSpec].
type BatchResult = batchrun.Result

// BatchRun is the history record of a batch run.
type BatchRun = model.BatchRun

// BatchRunStatus is the status of a recorded batch run.
type BatchRunStatus = model.BatchRunStatus

const (
	BatchRunStatusRunning   = model.BatchRunStatusRunning
	BatchRunStatusCompleted = model.BatchRunStatusCompleted
	BatchRunStatusFailed    = model.BatchRunStatusFailed
	BatchRunStatusAborted   = model.BatchRunStatusAborted
)

// Operation types supported by the device tool.
const (
	OperationTypeProgram       = model.OperationTypeProgram
	OperationTypeErase         = model.OperationTypeErase
	OperationTypeRecover       = model.OperationTypeRecover
	OperationTypeReset         = model.OperationTypeReset
	OperationTypeReadMemory    = model.OperationTypeReadMemory
	OperationTypeCoreInfo      = model.OperationTypeCoreInfo
	OperationTypeProtectionGet = model.OperationTypeProtectionGet
	OperationTypeFirmwareInfo  = model.OperationTypeFirmwareInfo
)

// ModuleChecks are the preflight check results of a module.
type ModuleChecks = model.ModuleChecks

// CheckResult is the result of a single preflight check.
type CheckResult = model.CheckResult

// CheckStatus is the status of a preflight check.
type CheckStatus = model.CheckStatus

const (
	CheckStatusOK      = model.CheckStatusOK
	CheckStatusWarning = model.CheckStatusWarning
	CheckStatusError   = model.CheckStatusError
)

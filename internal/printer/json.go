package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/devsbx/internal/model"
)

// JSONPrinter prints information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// batchRunOutput represents a batch run.
type batchRunOutput struct {
	ID           string            `json:"id"`
	Module       string            `json:"module"`
	Version      string            `json:"version"`
	DeviceSerial string            `json:"device_serial"`
	Status       string            `json:"status"`
	Error        string            `json:"error,omitempty"`
	Operations   []operationOutput `json:"operations"`
	CreatedAt    time.Time         `json:"created_at"`
	FinishedAt   *time.Time        `json:"finished_at"`
}

// operationOutput represents a batch run operation.
type operationOutput struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Core   string `json:"core,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// moduleChecksOutput represents the checks of a module.
type moduleChecksOutput struct {
	Module  string        `json:"module"`
	Version string        `json:"version,omitempty"`
	Checks  []checkOutput `json:"checks"`
}

type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

func newBatchRunOutput(r model.BatchRun) batchRunOutput {
	out := batchRunOutput{
		ID:           r.ID,
		Module:       r.Module,
		Version:      r.Version,
		DeviceSerial: r.DeviceSerial,
		Status:       string(r.Status),
		Error:        r.Error,
		Operations:   make([]operationOutput, 0, len(r.Operations)),
		CreatedAt:    r.CreatedAt.UTC(),
	}
	for _, op := range r.Operations {
		out.Operations = append(out.Operations, operationOutput{
			Index:  op.Index,
			Type:   op.Type,
			Core:   string(op.Core),
			Status: string(op.Status),
			Error:  op.Error,
		})
	}
	if r.FinishedAt != nil {
		utcTime := r.FinishedAt.UTC()
		out.FinishedAt = &utcTime
	}
	return out
}

// PrintBatchRuns prints batch runs in JSON format.
func (j *JSONPrinter) PrintBatchRuns(runs []model.BatchRun) error {
	items := make([]batchRunOutput, 0, len(runs))
	for _, r := range runs {
		items = append(items, newBatchRunOutput(r))
	}
	return j.encode(items)
}

// PrintBatchRun prints a batch run in JSON format.
func (j *JSONPrinter) PrintBatchRun(run model.BatchRun) error {
	return j.encode(newBatchRunOutput(run))
}

// PrintResults prints the task results as a JSON array, missing results are null.
func (j *JSONPrinter) PrintResults(results []json.RawMessage) error {
	items := make([]json.RawMessage, 0, len(results))
	for _, r := range results {
		if len(r) == 0 {
			r = json.RawMessage("null")
		}
		items = append(items, r)
	}
	return j.encode(items)
}

// PrintChecks prints the module checks in JSON format.
func (j *JSONPrinter) PrintChecks(checks []model.ModuleChecks) error {
	items := make([]moduleChecksOutput, 0, len(checks))
	for _, mc := range checks {
		out := moduleChecksOutput{Module: mc.Module, Version: mc.Version, Checks: make([]checkOutput, 0, len(mc.Results))}
		for _, r := range mc.Results {
			out.Checks = append(out.Checks, checkOutput{ID: r.ID, Status: string(r.Status), Message: r.Message})
		}
		items = append(items, out)
	}
	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

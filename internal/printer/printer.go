package printer

import (
	"encoding/json"

	"github.com/slok/devsbx/internal/model"
)

// Printer knows how to print batch and module information in different formats.
type Printer interface {
	PrintBatchRuns(runs []model.BatchRun) error
	PrintBatchRun(run model.BatchRun) error
	PrintResults(results []json.RawMessage) error
	PrintChecks(checks []model.ModuleChecks) error
	PrintMessage(msg string) error
}

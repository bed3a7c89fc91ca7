package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/devsbx/internal/model"
)

// TablePrinter prints information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintBatchRuns prints batch runs in a table format.
func (t *TablePrinter) PrintBatchRuns(runs []model.BatchRun) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tMODULE\tDEVICE\tSTATUS\tOPERATIONS\tDURATION\tCREATED")

	// Print rows.
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s@%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Module,
			r.Version,
			r.DeviceSerial,
			r.Status,
			operationsSummary(r.Operations),
			RunDuration(r),
			TimeAgo(r.CreatedAt),
		)
	}

	return nil
}

// PrintBatchRun prints the detail of a batch run.
func (t *TablePrinter) PrintBatchRun(run model.BatchRun) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", run.ID)
	fmt.Fprintf(t.writer, "Module:     %s\n", run.Module)
	fmt.Fprintf(t.writer, "Version:    %s\n", run.Version)
	fmt.Fprintf(t.writer, "Device:     %s\n", run.DeviceSerial)
	fmt.Fprintf(t.writer, "Status:     %s\n", run.Status)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(run.CreatedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s (%s)\n", FormatTimestamp(*run.FinishedAt), RunDuration(run))
	}
	if run.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", run.Error)
	}

	if len(run.Operations) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tTYPE\tCORE\tSTATUS\tERROR")
	for _, op := range run.Operations {
		core := string(op.Core)
		if core == "" {
			core = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", op.Index, op.Type, core, op.Status, op.Error)
	}

	return nil
}

// PrintResults prints one task result per line.
func (t *TablePrinter) PrintResults(results []json.RawMessage) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	for i, r := range results {
		data := "-"
		if len(r) > 0 {
			data = string(r)
		}
		fmt.Fprintf(tw, "%d\t%s\n", i, data)
	}

	return nil
}

// PrintChecks prints the module checks with a summary.
func (t *TablePrinter) PrintChecks(checks []model.ModuleChecks) error {
	var all []model.CheckResult
	for _, mc := range checks {
		version := mc.Version
		if version == "" {
			version = "unknown version"
		}
		fmt.Fprintf(t.writer, "\nChecking %s (%s)...\n", mc.Module, version)
		for _, r := range mc.Results {
			fmt.Fprintf(t.writer, "  %s %-20s %s\n", statusIcon(r.Status), r.ID, r.Message)
		}
		all = append(all, mc.Results...)
	}

	fmt.Fprintln(t.writer)
	_, warnings, errors := model.CountByStatus(all)
	switch {
	case errors == 0 && warnings == 0:
		fmt.Fprintln(t.writer, "All checks passed!")
	case errors == 0:
		fmt.Fprintf(t.writer, "%d warning(s)\n", warnings)
	case warnings == 0:
		fmt.Fprintf(t.writer, "%d error(s)\n", errors)
	default:
		fmt.Fprintf(t.writer, "%d error(s), %d warning(s)\n", errors, warnings)
	}

	return nil
}

// PrintMessage prints a simple message.
func (t *TablePrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(t.writer, msg)
	return err
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}

// operationsSummary returns the succeeded operations over the total.
func operationsSummary(ops []model.BatchOperation) string {
	succeeded := 0
	for _, op := range ops {
		if op.Status == model.OperationStatusSucceeded {
			succeeded++
		}
	}
	return fmt.Sprintf("%d/%d", succeeded, len(ops))
}

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devsbx/internal/app/history"
	"github.com/slok/devsbx/internal/model"
)

// NewHistoryCommand returns the history parent command.
func NewHistoryCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("history", "Inspect the recorded batch runs.")
}

type HistoryListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	module       string
	serialNumber string
	status       string
	limit        int
	format       string
}

// NewHistoryListCommand returns the history list command.
func NewHistoryListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *HistoryListCommand {
	c := &HistoryListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List the recorded batch runs, newest first.")
	c.Cmd.Flag("module", "Filter by module.").StringVar(&c.module)
	c.Cmd.Flag("serial-number", "Filter by device serial number.").StringVar(&c.serialNumber)
	c.Cmd.Flag("status", "Filter by status (running, completed, failed, aborted).").StringVar(&c.status)
	c.Cmd.Flag("limit", "Max number of batch runs (0 is unlimited).").Default("20").IntVar(&c.limit)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c HistoryListCommand) Name() string { return c.Cmd.FullCommand() }
func (c HistoryListCommand) Quiet() bool { return true }

func (c HistoryListCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.Repository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	runs, err := svc.List(ctx, history.ListRequest{
		Module:       c.module,
		DeviceSerial: c.serialNumber,
		Status:       model.BatchRunStatus(strings.ToLower(c.status)),
		Limit:        c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list batch runs: %w", err)
	}

	if err := c.rootCmd.Printer(c.format).PrintBatchRuns(runs); err != nil {
		return fmt.Errorf("could not print batch runs: %w", err)
	}

	return nil
}

type HistoryShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	format string
}

// NewHistoryShowCommand returns the history show command.
func NewHistoryShowCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *HistoryShowCommand {
	c := &HistoryShowCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("show", "Show a recorded batch run.")
	c.Cmd.Arg("id", "Batch run ID.").Required().StringVar(&c.id)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c HistoryShowCommand) Name() string { return c.Cmd.FullCommand() }
func (c HistoryShowCommand) Quiet() bool { return true }

func (c HistoryShowCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.Repository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	run, err := svc.Get(ctx, strings.ToUpper(c.id))
	if err != nil {
		return fmt.Errorf("could not get batch run: %w", err)
	}

	if err := c.rootCmd.Printer(c.format).PrintBatchRun(*run); err != nil {
		return fmt.Errorf("could not print batch run: %w", err)
	}

	return nil
}

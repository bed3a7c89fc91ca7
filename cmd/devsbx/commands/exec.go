package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devsbx/internal/app/exec"
	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/printer"
)

type ExecCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	module     string
	subcommand string
	args       []string
	format     string
	progress   bool
}

// NewExecCommand returns the exec command.
func NewExecCommand(rootCmd *RootCommand, app *kingpin.Application) *ExecCommand {
	c := &ExecCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("exec", "Execute a single device tool subcommand.")
	c.Cmd.Arg("module", "Module to run (module or module@version).").Required().StringVar(&c.module)
	c.Cmd.Arg("subcommand", "Module subcommand.").Required().StringVar(&c.subcommand)
	c.Cmd.Arg("args", "Subcommand arguments (use -- before flags).").StringsVar(&c.args)
	c.Cmd.Flag("progress", "Show the task progress.").Default("true").BoolVar(&c.progress)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c ExecCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExecCommand) Run(ctx context.Context) error {
	module, version, err := parseModuleVersion(c.module)
	if err != nil {
		return err
	}

	sessions, err := c.rootCmd.Sessions(ctx, map[string]string{module: version})
	if err != nil {
		return fmt.Errorf("could not create sessions: %w", err)
	}

	svc, err := exec.NewService(exec.ServiceConfig{
		Sessions: sessions,
		Logger:   c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	var handler event.Handler
	if c.progress {
		handler = progressHandler{bar: printer.NewProgressBar(c.rootCmd.Stderr, c.rootCmd.NoColor)}
	}

	res, err := svc.Run(ctx, exec.Request{
		Module:     module,
		Subcommand: c.subcommand,
		Args:       c.args,
		Handler:    handler,
	})
	if err != nil {
		return fmt.Errorf("could not execute %s: %w", c.subcommand, err)
	}

	results := append([]json.RawMessage{}, res.Info...)
	for _, t := range res.TaskEnds {
		results = append(results, t.Task.Data)
	}

	return c.rootCmd.Printer(c.format).PrintResults(results)
}

// progressHandler renders the task progress events.
type progressHandler struct {
	event.NoopHandler
	bar *printer.ProgressBar
}

func (h progressHandler) HandleProgress(ev event.TaskProgress) {
	if ev.Task == nil {
		return
	}
	h.bar.Update(taskLabel(*ev.Task), ev.Progress.Normalize().TotalProgressPercentage)
}

func (h progressHandler) HandleTaskEnd(ev event.TaskEnd) {
	h.bar.Finish(taskLabel(ev.Task), !ev.Failed())
}

func taskLabel(t event.Task) string {
	if t.Description != "" {
		return t.Description
	}
	return t.Name
}

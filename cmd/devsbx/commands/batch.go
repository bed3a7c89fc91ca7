package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/devsbx/internal/app/batchrun"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/printer"
	storageio "github.com/slok/devsbx/internal/storage/io"
)

type BatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file         string
	serialNumber string
	format       string
	showResults  bool
}

// NewBatchCommand returns the batch command.
func NewBatchCommand(rootCmd *RootCommand, app *kingpin.Application) *BatchCommand {
	c := &BatchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("batch", "Run a batch of device operations from a batch file.")
	c.Cmd.Arg("file", "Batch YAML file.").Required().StringVar(&c.file)
	c.Cmd.Flag("serial-number", "Device serial number, overrides the batch file device.").StringVar(&c.serialNumber)
	c.Cmd.Flag("results", "Print the task results instead of the batch run.").BoolVar(&c.showResults)
	addFormatFlag(c.Cmd, &c.format)

	return c
}

func (c BatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c BatchCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Load batch spec.
	path, err := absPath(c.file)
	if err != nil {
		return fmt.Errorf("could not resolve batch file path: %w", err)
	}
	loader, err := storageio.NewBatchYAMLRepository(os.DirFS("/"))
	if err != nil {
		return fmt.Errorf("could not create batch loader: %w", err)
	}
	spec, err := loader.GetBatchSpec(ctx, path[1:])
	if err != nil {
		return fmt.Errorf("could not load batch: %w", err)
	}
	if c.serialNumber != "" {
		spec.Device.SerialNumber = c.serialNumber
	}
	spec.Operations = resolveFirmwarePaths(filepath.Dir(path), spec.Operations)

	// Dependencies.
	sessions, err := c.rootCmd.Sessions(ctx, map[string]string{spec.Module: spec.Version})
	if err != nil {
		return fmt.Errorf("could not create sessions: %w", err)
	}
	repo, err := c.rootCmd.Repository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	stagingDir, err := c.rootCmd.StagingDir()
	if err != nil {
		return err
	}

	svc, err := batchrun.NewService(batchrun.ServiceConfig{
		Sessions:   sessions,
		Repository: repo,
		StagingDir: stagingDir,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Run the batch while rendering its progress.
	var (
		res    *batchrun.Result
		runErr error
	)
	updates := make(chan batchrun.Update)
	var g run.Group

	{
		bar := printer.NewProgressBar(c.rootCmd.Stderr, c.rootCmd.NoColor)
		g.Add(
			func() error {
				for u := range updates {
					renderUpdate(bar, u)
				}
				return nil
			},
			func(_ error) {},
		)
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				defer close(updates)
				res, runErr = svc.Run(ctx, batchrun.Request{
					Spec:     spec,
					OnUpdate: func(u batchrun.Update) { updates <- u },
				})
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	_ = g.Run()

	if res == nil {
		return runErr
	}

	p := c.rootCmd.Printer(c.format)
	if c.showResults && runErr == nil {
		err = p.PrintResults(res.Results)
	} else {
		err = p.PrintBatchRun(res.Run)
	}
	if err != nil {
		return fmt.Errorf("could not print batch run: %w", err)
	}

	return runErr
}

func renderUpdate(bar *printer.ProgressBar, u batchrun.Update) {
	label := fmt.Sprintf("[%d] %s", u.OperationIndex, u.OperationType)
	switch u.Kind {
	case batchrun.UpdateKindBegin:
		bar.Update(label, 0)
	case batchrun.UpdateKindProgress:
		bar.Update(label, u.Progress.TotalProgressPercentage)
	case batchrun.UpdateKindEnd:
		bar.Finish(label, !u.Failed)
	}
}

// resolveFirmwarePaths makes the relative firmware paths relative to the batch file directory.
func resolveFirmwarePaths(dir string, ops []model.OperationSpec) []model.OperationSpec {
	resolved := make([]model.OperationSpec, 0, len(ops))
	for _, op := range ops {
		if op.Firmware != "" && !filepath.IsAbs(op.Firmware) {
			op.Firmware = filepath.Join(dir, op.Firmware)
		}
		resolved = append(resolved, op)
	}
	return resolved
}

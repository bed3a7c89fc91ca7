package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/devsbx/internal/app/batchrun"
	"github.com/slok/devsbx/internal/app/doctor"
	"github.com/slok/devsbx/internal/app/exec"
	"github.com/slok/devsbx/internal/app/history"
	"github.com/slok/devsbx/internal/app/install"
	"github.com/slok/devsbx/internal/batch"
	"github.com/slok/devsbx/internal/conventions"
	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/sandbox/fake"
	"github.com/slok/devsbx/internal/sandbox/process"
	"github.com/slok/devsbx/internal/sandbox/registry"
	"github.com/slok/devsbx/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} uses ~/.devsbx for installed
// modules and history, and resolves module versions from the
// DEVSBX_<MODULE>_VERSION environment variables.
type Config struct {
	// DataDir is the base directory for devsbx data (modules, staging, history).
	// Default: ~/.devsbx.
	DataDir string

	// DBPath is the SQLite history database path.
	// Default: <DataDir>/devsbx.db.
	DBPath string

	// ModuleVersions pins module versions, keyed by module name. They have
	// priority over the environment overrides.
	ModuleVersions map[string]string

	// Launcher is the executable used to install module versions.
	// Default: devtool.
	Launcher string

	// ToolLogLevel is the log level passed to the device tool.
	// Default: error.
	ToolLogLevel string

	// Env is extra environment for the device tool processes.
	Env map[string]string

	// Development keeps the device tool debug environment overrides.
	Development bool

	// Fake uses a simulated device tool that runs every operation
	// successfully. Use it for testing without devices or installed modules.
	Fake bool

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, conventions.DBFile)
	}

	if c.ToolLogLevel != "" {
		if _, err := model.ParseLogLevel(c.ToolLogLevel); err != nil {
			return err
		}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point to run device tool modules programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use, module sessions are created once
// per module and shared.
type Client struct {
	repo       *sqlite.Repository
	sessions   *registry.Registry
	stagingDir string
	logger     log.Logger

	installSvc  *install.Service
	execSvc     *exec.Service
	batchRunSvc *batchrun.Service
	historySvc  *history.Service
	doctorSvc   *doctor.Service
}

// New creates a new SDK client backed by a SQLite history database.
//
// The caller must call [Client.Close] when done to release the database
// connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	stagingDir := conventions.StagingPath(cfg.DataDir)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create staging directory: %w", err)
	}

	sessions, err := registry.New(registry.Config{
		Factory: newSessionFactory(cfg),
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create session registry: %w", err)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	c := &Client{
		repo:       repo,
		sessions:   sessions,
		stagingDir: stagingDir,
		logger:     cfg.Logger,
	}

	// Services can't fail with the dependencies above.
	c.installSvc, _ = install.NewService(install.ServiceConfig{Sessions: sessions, Logger: cfg.Logger})
	c.execSvc, _ = exec.NewService(exec.ServiceConfig{Sessions: sessions, Logger: cfg.Logger})
	c.historySvc, _ = history.NewService(history.ServiceConfig{Repository: repo, Logger: cfg.Logger})
	c.doctorSvc, _ = doctor.NewService(doctor.ServiceConfig{Sessions: sessions, Logger: cfg.Logger})
	c.batchRunSvc, _ = batchrun.NewService(batchrun.ServiceConfig{
		Sessions:   sessions,
		Repository: repo,
		StagingDir: stagingDir,
		Logger:     cfg.Logger,
	})

	return c, nil
}

func newSessionFactory(cfg Config) registry.Factory {
	return func(ctx context.Context, module string) (sandbox.Session, error) {
		if cfg.Fake {
			return fake.NewSession(fake.SessionConfig{
				Module:  module,
				Version: cfg.ModuleVersions[module],
				Logger:  cfg.Logger,
			})
		}

		return process.NewSession(process.SessionConfig{
			Module:      module,
			Version:     cfg.ModuleVersions[module],
			BaseDir:     conventions.SandboxesPath(cfg.DataDir),
			Launcher:    cfg.Launcher,
			LogLevel:    model.LogLevel(cfg.ToolLogLevel),
			Development: cfg.Development,
			Env:         cfg.Env,
			Logger:      cfg.Logger,
		})
	}
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	return c.repo.Close()
}

// InstalledModule is a module version ready to be used.
type InstalledModule struct {
	Module  string
	Version string
}

// Install installs the pinned version of a module if it's not installed yet.
// onProgress receives the install progress percentage and can be nil.
func (c *Client) Install(ctx context.Context, module string, onProgress func(percentage float64)) (*InstalledModule, error) {
	res, err := c.installSvc.Run(ctx, install.Request{Module: module, OnProgress: onProgress})
	if err != nil {
		return nil, err
	}
	return &InstalledModule{Module: res.Module, Version: res.Version}, nil
}

// ExecOpts are the optional settings of [Client.Exec].
type ExecOpts struct {
	// OnProgress receives the normalized progress of the subcommand tasks.
	OnProgress func(task Task, p Progress)
}

// ExecResult is the result of a subcommand execution.
type ExecResult struct {
	// Info has the payloads not tied to a task, in order.
	Info []json.RawMessage
	// TaskEnds has every finished task, in order.
	TaskEnds []TaskEnd
}

// Exec runs a single device tool subcommand of a module and waits for its result.
func (c *Client) Exec(ctx context.Context, module, subcommand string, args []string, opts *ExecOpts) (*ExecResult, error) {
	req := exec.Request{Module: module, Subcommand: subcommand, Args: args}
	if opts != nil && opts.OnProgress != nil {
		req.Handler = progressHandler{fn: opts.OnProgress}
	}

	res, err := c.execSvc.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Info: res.Info, TaskEnds: res.TaskEnds}, nil
}

type progressHandler struct {
	event.NoopHandler
	fn func(task Task, p Progress)
}

func (h progressHandler) HandleProgress(ev event.TaskProgress) {
	if ev.Task == nil {
		return
	}
	h.fn(*ev.Task, ev.Progress.Normalize())
}

// NewBatch returns an empty batch for a module. Batches created this way are
// not recorded in the history, use [Client.RunBatch] for recorded runs.
// A batch that is not run must be released with [Batch.Release] to remove
// the firmware staged by ProgramBytes.
func (c *Client) NewBatch(ctx context.Context, module string) (*Batch, error) {
	session, err := c.sessions.Session(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("could not get module session: %w", err)
	}

	return batch.New(batch.Config{
		Session:    session,
		StagingDir: c.stagingDir,
		Logger:     c.logger,
	})
}

// RunBatch runs a batch spec and records it in the history. onUpdate
// receives the operation updates and can be nil. The result is returned
// with the error when the failed run was recorded.
func (c *Client) RunBatch(ctx context.Context, spec BatchSpec, onUpdate func(u BatchUpdate)) (*BatchResult, error) {
	return c.batchRunSvc.Run(ctx, batchrun.Request{Spec: spec, OnUpdate: onUpdate})
}

// ListBatchRunsOpts are the optional filters of [Client.ListBatchRuns].
type ListBatchRunsOpts struct {
	Module       string
	DeviceSerial string
	Status       BatchRunStatus
	// Limit is the max number of runs (0 is unlimited).
	Limit int
}

// ListBatchRuns returns the recorded batch runs, newest first.
func (c *Client) ListBatchRuns(ctx context.Context, opts *ListBatchRunsOpts) ([]BatchRun, error) {
	req := history.ListRequest{}
	if opts != nil {
		req = history.ListRequest{
			Module:       opts.Module,
			DeviceSerial: opts.DeviceSerial,
			Status:       opts.Status,
			Limit:        opts.Limit,
		}
	}
	return c.historySvc.List(ctx, req)
}

// GetBatchRun returns a recorded batch run by ID.
func (c *Client) GetBatchRun(ctx context.Context, id string) (*BatchRun, error) {
	return c.historySvc.Get(ctx, id)
}

// Doctor runs the preflight checks of the modules.
func (c *Client) Doctor(ctx context.Context, modules ...string) ([]ModuleChecks, error) {
	return c.doctorSvc.Run(ctx, doctor.Request{Modules: modules})
}

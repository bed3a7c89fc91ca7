package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/devsbx/internal/conventions"
	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/printer"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/sandbox/fake"
	"github.com/slok/devsbx/internal/sandbox/process"
	"github.com/slok/devsbx/internal/sandbox/registry"
	storageio "github.com/slok/devsbx/internal/storage/io"
	"github.com/slok/devsbx/internal/storage/sqlite"
	utilsenv "github.com/slok/devsbx/internal/utils/env"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"

	fakeEventDelay = 100 * time.Millisecond
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// QuietCommand is implemented by the commands that only print stored data,
// logging is disabled for them unless debug is enabled.
type QuietCommand interface {
	Quiet() bool
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug        bool
	NoLog        bool
	NoColor      bool
	LoggerType   string
	DataDir      string
	DBPath       string
	ConfigPath   string
	ToolLogLevel string
	Development  bool
	Fake         bool
	EnvSpecs     []string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	levels := make([]string, 0, len(model.LogLevels))
	for _, l := range model.LogLevels {
		levels = append(levels, string(l))
	}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger and output color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory where devsbx stores installed modules, staging files and history.").Default(defaultDataDir).StringVar(&c.DataDir)
	app.Flag("db-path", "Path to the SQLite history database file (default: <data-dir>/devsbx.db).").StringVar(&c.DBPath)
	app.Flag("config", "Path to the app configuration file (default: <data-dir>/config.yaml).").StringVar(&c.ConfigPath)
	app.Flag("tool-log-level", "Log level passed to the device tool.").EnumVar(&c.ToolLogLevel, levels...)
	app.Flag("dev", "Development mode, keeps the device tool debug environment overrides.").BoolVar(&c.Development)
	app.Flag("fake", "Use a simulated device tool instead of the installed modules.").BoolVar(&c.Fake)
	app.Flag("env", "Extra environment for the device tool (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.EnvSpecs)

	return c
}

func (r *RootCommand) dbPath() string {
	if r.DBPath != "" {
		return r.DBPath
	}
	return filepath.Join(r.DataDir, conventions.DBFile)
}

func (r *RootCommand) configPath() string {
	if r.ConfigPath != "" {
		return r.ConfigPath
	}
	return filepath.Join(r.DataDir, conventions.ConfigFile)
}

// AppConfig loads the app configuration, a missing file is an empty configuration.
func (r *RootCommand) AppConfig(ctx context.Context) (model.AppConfig, error) {
	path, err := absPath(r.configPath())
	if err != nil {
		return model.AppConfig{}, fmt.Errorf("could not resolve config path: %w", err)
	}

	cfg, err := storageio.NewConfigYAMLRepository(os.DirFS("/")).GetAppConfig(ctx, path[1:])
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.Logger.Debugf("Config file %s missing, using defaults", path)
			return model.AppConfig{}, nil
		}
		return model.AppConfig{}, fmt.Errorf("could not load config: %w", err)
	}

	return cfg, nil
}

// Sessions returns a registry that creates the module sessions. versions are
// explicit module versions that have priority over the environment and config.
func (r *RootCommand) Sessions(ctx context.Context, versions map[string]string) (*registry.Registry, error) {
	cfg, err := r.AppConfig(ctx)
	if err != nil {
		return nil, err
	}

	extraEnv, err := utilsenv.ParseSpecs(r.EnvSpecs)
	if err != nil {
		return nil, fmt.Errorf("invalid --env value: %w", err)
	}

	logLevel := cfg.LogLevel
	if r.ToolLogLevel != "" {
		logLevel = model.LogLevel(r.ToolLogLevel)
	}

	factory := func(ctx context.Context, module string) (sandbox.Session, error) {
		if r.Fake {
			version := versions[module]
			if version == "" {
				version, _ = cfg.ModuleVersion(module)
			}
			return fake.NewSession(fake.SessionConfig{
				Module:     module,
				Version:    version,
				EventDelay: fakeEventDelay,
				Logger:     r.Logger,
			})
		}

		declared, _ := cfg.ModuleVersion(module)
		return process.NewSession(process.SessionConfig{
			Module:          module,
			Version:         versions[module],
			DeclaredVersion: declared,
			BaseDir:         conventions.SandboxesPath(r.DataDir),
			Launcher:        cfg.Launcher,
			LogLevel:        logLevel,
			Development:     r.Development,
			Env:             extraEnv,
			Logger:          r.Logger,
		})
	}

	return registry.New(registry.Config{Factory: factory, Logger: r.Logger})
}

// Repository returns the batch run history repository.
func (r *RootCommand) Repository(ctx context.Context) (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.dbPath(),
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

// StagingDir returns the directory where batches stage temporary files.
func (r *RootCommand) StagingDir() (string, error) {
	dir := conventions.StagingPath(r.DataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create staging directory: %w", err)
	}
	return dir, nil
}

// Printer returns the printer for an output format.
func (r *RootCommand) Printer(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(r.Stdout)
	}
	return printer.NewTablePrinter(r.Stdout)
}

func addFormatFlag(cmd *kingpin.CmdClause, format *string) {
	cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(format, formatTable, formatJSON)
}

// parseModuleVersion parses a `module[@version]` argument.
func parseModuleVersion(s string) (module, version string, err error) {
	module, version, _ = strings.Cut(s, "@")
	if module == "" {
		return "", "", fmt.Errorf("invalid module %q: %w", s, model.ErrNotValid)
	}
	return module, version, nil
}

func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(path)
}

// Package process implements the sandbox session by running the installed
// module executables as subprocesses that stream JSON events on stdout.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/devsbx/internal/conventions"
	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/stream"
	"github.com/slok/devsbx/internal/utils/env"
)

const (
	// DefaultLauncher is the executable used to install module versions.
	DefaultLauncher = "devtool"
	// HomeEnvVar points the tool and the launcher to the install root.
	HomeEnvVar = "DEVSBX_TOOL_HOME"
	// KeepDebugEnvVar keeps the debug override variables outside development mode.
	KeepDebugEnvVar = "DEVSBX_KEEP_DEBUG_ENV"

	installSubcommand = "install"
	waitDelay         = 5 * time.Second
)

// DebugOverrideEnvVars change the tool behavior for development, they are
// removed from the environment unless running in development mode.
var DebugOverrideEnvVars = []string{
	"DEVSBX_TOOL_DEVICE_LIB_OVERRIDE",
	"DEVSBX_TOOL_JLINK_OVERRIDE",
	"DEVSBX_TOOL_TRACE_FILE",
	"DEVSBX_TOOL_DEV_MODE",
}

// SessionConfig is the configuration of a process session.
type SessionConfig struct {
	// Module is the tool module name (required).
	Module string
	// Version is the explicit module version, has priority over everything else.
	Version string
	// DeclaredVersion is the version declared on the app config for the module.
	DeclaredVersion string
	// BaseDir is where module versions are installed (default: ~/.devsbx/sandboxes).
	BaseDir string
	// Launcher is the installer executable (default: devtool).
	Launcher string
	// LogLevel is the log level passed to the tool (default: error).
	LogLevel model.LogLevel
	// Development keeps the debug override variables on the environment.
	Development bool
	// Env is extra environment for the tool processes.
	Env map[string]string
	// Environ is the base environment (default: os.Environ()).
	Environ []string
	// MaxBufferSize bounds the unframed stdout data (default: stream.DefaultMaxBufferSize).
	MaxBufferSize int
	// Logger for logging.
	Logger log.Logger
}

func (c *SessionConfig) defaults() error {
	if c.Module == "" {
		return fmt.Errorf("module is required: %w", model.ErrNotValid)
	}

	if c.Environ == nil {
		c.Environ = os.Environ()
	}

	if c.BaseDir == "" {
		c.BaseDir = conventions.SandboxesPath(filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir))
	}

	if c.Launcher == "" {
		c.Launcher = DefaultLauncher
	}

	if c.LogLevel == "" {
		c.LogLevel = model.LogLevelError
	}
	if _, err := model.ParseLogLevel(string(c.LogLevel)); err != nil {
		return err
	}

	if c.MaxBufferSize <= 0 {
		c.MaxBufferSize = stream.DefaultMaxBufferSize
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Process", "module": c.Module})

	return nil
}

// Session is a sandbox session that runs the tool executables as subprocesses.
type Session struct {
	module        string
	version       string
	installRoot   string
	executable    string
	launcher      string
	environ       []string
	maxBufferSize int
	logger        log.Logger

	mu       sync.Mutex
	logLevel model.LogLevel
}

var (
	_ sandbox.Session   = &Session{}
	_ sandbox.Installer = &Session{}
)

// NewSession returns a new session, the module version is resolved but not installed.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	version, err := ResolveVersion(cfg.Module, cfg.Version, cfg.DeclaredVersion, envLookup(cfg.Environ))
	if err != nil {
		return nil, err
	}

	installRoot := conventions.InstallRoot(cfg.BaseDir, cfg.Module, version)

	return &Session{
		module:        cfg.Module,
		version:       version,
		installRoot:   installRoot,
		executable:    conventions.ExecutablePath(installRoot, cfg.Module),
		launcher:      cfg.Launcher,
		environ:       BuildEnvironment(cfg.Environ, installRoot, cfg.Env, cfg.Development),
		maxBufferSize: cfg.MaxBufferSize,
		logger:        cfg.Logger.WithValues(log.Kv{"version": version}),
		logLevel:      cfg.LogLevel,
	}, nil
}

func (s *Session) Module() string  { return s.module }
func (s *Session) Version() string { return s.version }

// InstallRoot returns the directory where the session module version is installed.
func (s *Session) InstallRoot() string { return s.installRoot }

// SetLogLevel changes the log level passed to the next subcommands.
func (s *Session) SetLogLevel(level model.LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLevel = level
}

func (s *Session) currentLogLevel() model.LogLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logLevel
}

// ResolveVersion returns the version to use for a module: the explicit version,
// then the DEVSBX_<MODULE>_VERSION environment override and last the declared version.
func ResolveVersion(module, explicit, declared string, lookupEnv func(string) (string, bool)) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if lookupEnv != nil {
		if v, ok := lookupEnv(VersionEnvVar(module)); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}

	if declared != "" {
		return declared, nil
	}

	return "", fmt.Errorf("no version for module %q, set it explicitly, with %s or on the config: %w", module, VersionEnvVar(module), model.ErrNotValid)
}

// VersionEnvVar returns the environment variable that overrides a module version.
func VersionEnvVar(module string) string {
	m := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(module))
	return fmt.Sprintf("DEVSBX_%s_VERSION", m)
}

// BuildEnvironment returns the tool process environment.
func BuildEnvironment(base []string, installRoot string, extra map[string]string, development bool) []string {
	baseEnv := env.FromList(base)
	_, keepDebug := baseEnv[KeepDebugEnvVar]

	path := filepath.Join(installRoot, conventions.BinDir)
	if p := baseEnv["PATH"]; p != "" {
		path += string(os.PathListSeparator) + p
	}

	e := env.MergeMaps(baseEnv, map[string]string{
		HomeEnvVar: installRoot,
		"PATH":     path,
	})
	e = env.MergeMaps(e, extra)

	if !development && !keepDebug {
		env.Remove(e, DebugOverrideEnvVars...)
	}

	return env.ToList(e)
}

func envLookup(environ []string) func(string) (string, bool) {
	e := env.FromList(environ)
	return func(k string) (string, bool) {
		v, ok := e[k]
		return v, ok
	}
}

// Exec runs a subcommand and waits for it.
func (s *Session) Exec(ctx context.Context, subcommand string, args []string, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	logger := s.logger.WithValues(log.Kv{"subcommand": subcommand})

	cmd := s.toolCommand(ctx, subcommand, args)
	p, err := s.startProcess(cmd)
	if err != nil {
		return nil, err
	}

	collector := sandbox.NewResultCollector()
	err = s.waitProcess(ctx, p, logger, collector, opts.Handler)
	if err != nil {
		return nil, err
	}

	return collector.Result(), nil
}

// Start runs a subcommand in the background.
func (s *Session) Start(ctx context.Context, subcommand string, args []string, opts sandbox.ExecOpts) (sandbox.Background, error) {
	logger := s.logger.WithValues(log.Kv{"subcommand": subcommand})

	ctx, cancel := context.WithCancel(ctx)
	cmd := s.toolCommand(ctx, subcommand, args)
	p, err := s.startProcess(cmd)
	if err != nil {
		cancel()
		return nil, err
	}

	task := sandbox.NewBackgroundTask(cancel)
	go func() {
		defer cancel()
		task.Close(s.waitProcess(ctx, p, logger, sandbox.NewResultCollector(), opts.Handler))
	}()

	return task, nil
}

func (s *Session) toolCommand(ctx context.Context, subcommand string, args []string) *exec.Cmd {
	cmdArgs := make([]string, 0, len(args)+5)
	cmdArgs = append(cmdArgs, subcommand)
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, "--json", "--log-output=stdout", "--log-level", string(s.currentLogLevel()))

	return s.command(ctx, s.executable, cmdArgs...)
}

func (s *Session) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = s.environ
	cmd.WaitDelay = waitDelay
	return cmd
}

type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

func (s *Session) startProcess(cmd *exec.Cmd) (*process, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("could not get stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	s.logger.Debugf("Running %s", strings.Join(cmd.Args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start %s: %w", cmd.Path, err)
	}

	return &process{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// waitProcess reads the process events until the stream ends, then waits the
// process and composes the execution error.
func (s *Session) waitProcess(ctx context.Context, p *process, logger log.Logger, collector *sandbox.ResultCollector, handler event.Handler) error {
	handlers := event.Handlers{collector, logForwarder{logger: logger}}
	if handler != nil {
		handlers = append(handlers, handler)
	}

	// Unblock the reader on cancellation, children of the process could keep the pipe open.
	stopClose := context.AfterFunc(ctx, func() { _ = p.stdout.Close() })
	defer stopClose()

	scanErr := stream.Scan(ctx, p.stdout, stream.NewFramer(s.maxBufferSize), func(record json.RawMessage) error {
		ev, err := event.Decode(record)
		if err != nil {
			logger.Warningf("Ignoring record: %s", err)
			return nil
		}
		event.Dispatch(ev, handlers)
		return nil
	})
	if scanErr != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	waitErr := p.cmd.Wait()

	var procErr error
	switch {
	case ctx.Err() != nil:
		procErr = fmt.Errorf("%w: %w", model.ErrAborted, ctx.Err())
	case scanErr != nil:
		procErr = fmt.Errorf("could not read events: %w", scanErr)
	default:
		procErr = waitErr
	}

	err := sandbox.NewExecError(procErr, collector.FailedTasks(), p.stderr.String())
	if err != nil {
		logger.Debugf("Subcommand failed: %s", err)
	}
	return err
}

// logForwarder forwards the tool log records to the logger.
type logForwarder struct {
	event.NoopHandler
	logger log.Logger
}

var _ event.Handler = logForwarder{}

func (l logForwarder) HandleLog(ev event.Log) {
	switch model.LogLevel(strings.ToLower(ev.Level)) {
	case model.LogLevelError:
		l.logger.Errorf("%s", ev.Message)
	case model.LogLevelWarn, "warning":
		l.logger.Warningf("%s", ev.Message)
	case model.LogLevelInfo:
		l.logger.Infof("%s", ev.Message)
	default:
		l.logger.Debugf("%s", ev.Message)
	}
}

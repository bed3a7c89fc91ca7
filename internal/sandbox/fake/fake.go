package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
)

// Script is the scripted behavior of a subcommand.
type Script struct {
	// Events are dispatched in order.
	Events []event.Envelope
	// Err is the process error returned after the events.
	Err error
	// Stderr is the standard error output of the process.
	Stderr string
	// Block keeps the subcommand running after the events until it's stopped.
	Block bool
}

// ScriptFunc returns the script for a subcommand call.
type ScriptFunc func(subcommand string, args []string) Script

// Call is a recorded subcommand call.
type Call struct {
	Subcommand string
	Args       []string
}

// SessionConfig is the configuration for the fake session.
type SessionConfig struct {
	Module  string
	Version string
	// Scripts are the scripts per subcommand, they have priority over ScriptFunc.
	Scripts map[string]Script
	// ScriptFunc returns the scripts of subcommands without a static script (default: DefaultScript).
	ScriptFunc ScriptFunc
	// EventDelay is waited between events, simulates a real device.
	EventDelay time.Duration
	Logger     log.Logger
}

func (c *SessionConfig) defaults() error {
	if c.Module == "" {
		c.Module = "fake"
	}
	if c.Version == "" {
		c.Version = "0.0.0-fake"
	}
	if c.ScriptFunc == nil {
		c.ScriptFunc = DefaultScript
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Fake"})
	return nil
}

// Session is a fake implementation of the sandbox.Session interface.
// It replays scripted events without running any process.
type Session struct {
	module     string
	version    string
	scripts    map[string]Script
	scriptFunc ScriptFunc
	eventDelay time.Duration
	logger     log.Logger

	mu    sync.Mutex
	calls []Call
}

var (
	_ sandbox.Session   = &Session{}
	_ sandbox.Installer = &Session{}
)

// NewSession creates a new fake session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Session{
		module:     cfg.Module,
		version:    cfg.Version,
		scripts:    cfg.Scripts,
		scriptFunc: cfg.ScriptFunc,
		eventDelay: cfg.EventDelay,
		logger:     cfg.Logger,
	}, nil
}

func (s *Session) Module() string  { return s.module }
func (s *Session) Version() string { return s.version }

// Calls returns the recorded subcommand calls.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// EnsureInstalled reports a complete install, there is nothing to install.
func (s *Session) EnsureInstalled(ctx context.Context, onProgress sandbox.ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(0)
		onProgress(100)
	}
	return nil
}

// Check always passes.
func (s *Session) Check(ctx context.Context) []model.CheckResult {
	return []model.CheckResult{
		{ID: model.CheckIDExecutable, Message: fmt.Sprintf("Fake module %s installed", s.module), Status: model.CheckStatusOK},
		{ID: model.CheckIDVersion, Message: fmt.Sprintf("Version %s", s.version), Status: model.CheckStatusOK},
	}
}

// Exec replays the subcommand script.
func (s *Session) Exec(ctx context.Context, subcommand string, args []string, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	collector := sandbox.NewResultCollector()
	if err := s.play(ctx, subcommand, args, collector, opts.Handler); err != nil {
		return nil, err
	}
	return collector.Result(), nil
}

// Start replays the subcommand script in the background.
func (s *Session) Start(ctx context.Context, subcommand string, args []string, opts sandbox.ExecOpts) (sandbox.Background, error) {
	ctx, cancel := context.WithCancel(ctx)
	task := sandbox.NewBackgroundTask(cancel)

	go func() {
		defer cancel()
		task.Close(s.play(ctx, subcommand, args, sandbox.NewResultCollector(), opts.Handler))
	}()

	return task, nil
}

func (s *Session) play(ctx context.Context, subcommand string, args []string, collector *sandbox.ResultCollector, handler event.Handler) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Subcommand: subcommand, Args: append([]string(nil), args...)})
	s.mu.Unlock()

	script, ok := s.scripts[subcommand]
	if !ok {
		script = s.scriptFunc(subcommand, args)
	}
	s.logger.Debugf("Playing %q with %d events", subcommand, len(script.Events))

	handlers := event.Handlers{collector}
	if handler != nil {
		handlers = append(handlers, handler)
	}

	aborted := func() error {
		return sandbox.NewExecError(fmt.Errorf("%w: %w", model.ErrAborted, ctx.Err()), collector.FailedTasks(), "")
	}

	for _, ev := range script.Events {
		if s.eventDelay > 0 {
			select {
			case <-ctx.Done():
				return aborted()
			case <-time.After(s.eventDelay):
			}
		}
		if ctx.Err() != nil {
			return aborted()
		}
		event.Dispatch(ev, handlers)
	}

	if script.Block {
		<-ctx.Done()
		return aborted()
	}

	return sandbox.NewExecError(script.Err, collector.FailedTasks(), script.Stderr)
}

// DefaultScript simulates the device tool: batch executions run every
// operation successfully and program descriptors are generated from the firmware path.
func DefaultScript(subcommand string, args []string) Script {
	switch subcommand {
	case "x-generate-batch-operation":
		firmware := flagValue(args, "--firmware")
		data, _ := json.Marshal(map[string]any{
			"type":     model.OperationTypeProgram,
			"firmware": map[string]any{"file": firmware},
		})
		return Script{Events: []event.Envelope{event.Info{Data: data}}}

	case "x-execute-batch":
		var req struct {
			Operations []struct {
				OperationID string         `json:"operationId"`
				Operation   map[string]any `json:"operation"`
			} `json:"operations"`
		}
		if err := json.Unmarshal([]byte(flagValue(args, "--batch-json")), &req); err != nil {
			return Script{Err: fmt.Errorf("invalid batch json: %w", err)}
		}

		var events []event.Envelope
		for _, op := range req.Operations {
			opType, _ := op.Operation["type"].(string)
			task := event.Task{ID: op.OperationID, Name: opType, Description: fmt.Sprintf("Running %s", opType)}
			events = append(events, event.TaskBegin{Task: task})
			for _, pct := range []float64{0, 50, 100} {
				t := task
				events = append(events, event.TaskProgress{
					Task:     &t,
					Progress: model.Progress{ProgressPercentage: pct, Step: 1, AmountOfSteps: 1, Description: task.Description},
				})
			}
			end := task
			end.Data, _ = json.Marshal(map[string]any{"operationId": op.OperationID, "type": opType})
			events = append(events, event.TaskEnd{Task: end, Result: event.TaskResultSuccess})
		}
		return Script{Events: events}
	}

	return Script{}
}

func flagValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

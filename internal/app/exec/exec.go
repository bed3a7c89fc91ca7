package exec

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
)

// reservedFlags are set by the session on every subcommand.
var reservedFlags = []string{"--json", "--log-output", "--log-level"}

// ServiceConfig is the configuration for the exec service.
type ServiceConfig struct {
	Sessions sandbox.Provider
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Sessions == nil {
		return fmt.Errorf("sessions provider is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Exec"})
	return nil
}

// Service handles single subcommand executions on modules.
type Service struct {
	sessions sandbox.Provider
	logger   log.Logger
}

// NewService creates a new exec service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for executing a subcommand.
type Request struct {
	Module     string
	Subcommand string
	Args       []string
	// Handler receives the events while the subcommand runs (optional).
	Handler event.Handler
}

// Run executes a subcommand on the module and waits for its result.
func (s *Service) Run(ctx context.Context, req Request) (*sandbox.ExecResult, error) {
	// 1. Validate request.
	if req.Module == "" {
		return nil, fmt.Errorf("module is required: %w", model.ErrNotValid)
	}
	if req.Subcommand == "" || strings.HasPrefix(req.Subcommand, "-") {
		return nil, fmt.Errorf("invalid subcommand %q: %w", req.Subcommand, model.ErrNotValid)
	}
	for _, arg := range req.Args {
		for _, f := range reservedFlags {
			if arg == f || strings.HasPrefix(arg, f+"=") {
				return nil, fmt.Errorf("flag %s is managed by devsbx: %w", f, model.ErrNotValid)
			}
		}
	}

	// 2. Get the module session.
	session, err := s.sessions.Session(ctx, req.Module)
	if err != nil {
		return nil, fmt.Errorf("could not get module session: %w", err)
	}

	// 3. Execute.
	result, err := session.Exec(ctx, req.Subcommand, req.Args, sandbox.ExecOpts{Handler: req.Handler})
	if err != nil {
		return nil, fmt.Errorf("could not execute %s: %w", req.Subcommand, err)
	}

	s.logger.Debugf("Executed %s on %s (%s): %d info, %d task results", req.Subcommand, session.Module(), session.Version(), len(result.Info), len(result.TaskEnds))

	return result, nil
}

package install

import (
	"context"
	"fmt"

	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
)

// ServiceConfig is the configuration for the install service.
type ServiceConfig struct {
	// Sessions returns installed sessions (required).
	Sessions sandbox.ProgressProvider
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Sessions == nil {
		return fmt.Errorf("sessions provider is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Install"})
	return nil
}

// Service installs the pinned versions of modules.
type Service struct {
	sessions sandbox.ProgressProvider
	logger   log.Logger
}

// NewService creates a new install service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for installing a module.
type Request struct {
	Module string
	// OnProgress receives the install progress (optional).
	OnProgress sandbox.ProgressFunc
}

// Result is the installed module.
type Result struct {
	Module  string
	Version string
}

// Run ensures the module version is installed.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Module == "" {
		return nil, fmt.Errorf("module is required: %w", model.ErrNotValid)
	}

	s.logger.Debugf("Ensuring module %q is installed", req.Module)

	// The provider installs the module once, concurrent installs share it.
	session, err := s.sessions.SessionWithProgress(ctx, req.Module, req.OnProgress)
	if err != nil {
		return nil, fmt.Errorf("could not install module: %w", err)
	}

	logger := s.logger.WithValues(log.Kv{"module": session.Module(), "version": session.Version()})
	logger.Infof("Module ready")

	return &Result{Module: session.Module(), Version: session.Version()}, nil
}

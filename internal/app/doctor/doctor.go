package doctor

import (
	"context"
	"fmt"

	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
)

// CheckIDSession is the check reported when a module session can't be created.
const CheckIDSession = "module_session"

// ServiceConfig is the configuration for the doctor service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Doctor"})
	return nil
}

// Service runs the preflight checks of module sessions.
type Service struct {
	sessions sandbox.Provider
	logger   log.Logger
}

// NewService creates a new doctor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the modules to check.
type Request struct {
	Modules []string
}

// Run checks every requested module in order. A module whose session can't be
// created reports it as a failed check instead of failing the whole run.
func (s *Service) Run(ctx context.Context, req Request) ([]model.ModuleChecks, error) {
	if len(req.Modules) == 0 {
		return nil, fmt.Errorf("at least one module is required: %w", model.ErrNotValid)
	}

	checks := make([]model.ModuleChecks, 0, len(req.Modules))
	for _, module := range req.Modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		session, err := s.sessions.Session(ctx, module)
		if err != nil {
			s.logger.Warningf("Could not get %s session: %s", module, err)
			checks = append(checks, model.ModuleChecks{
				Module: module,
				Results: []model.CheckResult{{
					ID:      CheckIDSession,
					Message: fmt.Sprintf("Could not prepare module session: %s", err),
					Status:  model.CheckStatusError,
				}},
			})
			continue
		}

		checks = append(checks, model.ModuleChecks{
			Module:  session.Module(),
			Version: session.Version(),
			Results: session.Check(ctx),
		})
	}

	return checks, nil
}

// HasErrors returns true if any module check failed.
func HasErrors(checks []model.ModuleChecks) bool {
	for _, c := range checks {
		if model.HasErrors(c.Results) {
			return true
		}
	}
	return false
}

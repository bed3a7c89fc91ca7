// Package registry memoizes installed sandbox sessions per module so concurrent
// users of the same module share a single session and a single install.
package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/slok/devsbx/internal/log"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
)

// Factory creates a ready to use session for a module.
type Factory func(ctx context.Context, module string) (sandbox.Session, error)

// Config is the configuration of the registry.
type Config struct {
	// Factory creates the sessions (required).
	Factory Factory
	// Logger for logging.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Factory == nil {
		return fmt.Errorf("factory is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Registry"})

	return nil
}

// Registry returns memoized, installed sessions per module.
type Registry struct {
	factory Factory
	logger  log.Logger
	group   singleflight.Group

	mu       sync.RWMutex
	sessions map[string]sandbox.Session
	creating map[string]*creation
}

var (
	_ sandbox.Provider         = &Registry{}
	_ sandbox.ProgressProvider = &Registry{}
)

// creation fans out the install progress of an in flight session creation
// to every caller waiting on it.
type creation struct {
	mu        sync.Mutex
	listeners []sandbox.ProgressFunc
}

func (c *creation) listen(fn sandbox.ProgressFunc) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *creation) report(pct float64) {
	c.mu.Lock()
	ls := append([]sandbox.ProgressFunc(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range ls {
		fn(pct)
	}
}

// New returns a new registry.
func New(cfg Config) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		factory:  cfg.Factory,
		logger:   cfg.Logger,
		sessions: map[string]sandbox.Session{},
		creating: map[string]*creation{},
	}, nil
}

// Session returns the installed session of a module, see [Registry.SessionWithProgress].
func (r *Registry) Session(ctx context.Context, module string) (sandbox.Session, error) {
	return r.SessionWithProgress(ctx, module, nil)
}

// SessionWithProgress returns the session of a module, creating and installing
// it on first use. Concurrent first requests share the same creation and
// install, and all of them receive its progress. The shared creation is not
// cancelled when a waiting caller's context is, that caller stops waiting.
// Failed creations are not memoized.
func (r *Registry) SessionWithProgress(ctx context.Context, module string, onProgress sandbox.ProgressFunc) (sandbox.Session, error) {
	if module == "" {
		return nil, fmt.Errorf("module is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	if s, ok := r.sessions[module]; ok {
		r.mu.Unlock()
		return s, nil
	}
	c, ok := r.creating[module]
	if !ok {
		c = &creation{}
		r.creating[module] = c
	}
	c.listen(onProgress)
	r.mu.Unlock()

	createCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(module, func() (any, error) {
		if s, ok := r.get(module); ok {
			return s, nil
		}

		s, err := r.create(createCtx, module, c)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.creating[module] == c {
			delete(r.creating, module)
		}
		if err != nil {
			return nil, err
		}
		r.sessions[module] = s
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %q session: %w: %w", module, model.ErrAborted, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("could not create %q session: %w", module, res.Err)
		}
		if res.Shared {
			r.logger.Debugf("Session creation for module %q shared", module)
		}
		return res.Val.(sandbox.Session), nil
	}
}

func (r *Registry) create(ctx context.Context, module string, c *creation) (sandbox.Session, error) {
	r.logger.Debugf("Creating session for module %q", module)
	s, err := r.factory(ctx, module)
	if err != nil {
		return nil, err
	}

	installer, ok := s.(sandbox.Installer)
	if !ok {
		return s, nil
	}

	logger := r.logger.WithValues(log.Kv{"module": s.Module(), "version": s.Version()})
	logger.Debugf("Ensuring module is installed")
	if err := installer.EnsureInstalled(ctx, c.report); err != nil {
		return nil, fmt.Errorf("could not install module: %w", err)
	}

	return s, nil
}

// Forget removes a memoized session, the next request creates a new one.
func (r *Registry) Forget(module string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, module)
}

func (r *Registry) get(module string) (sandbox.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[module]
	return s, ok
}

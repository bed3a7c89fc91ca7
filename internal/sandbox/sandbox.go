// Package sandbox defines the session used to run subcommands of an installed
// external device tool module.
package sandbox

import (
	"context"
	"encoding/json"

	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/model"
)

// ExecOpts are the options of a subcommand execution.
type ExecOpts struct {
	// Handler receives every event emitted by the subcommand (optional).
	Handler event.Handler
}

// ExecResult is the gathered result of a subcommand execution.
type ExecResult struct {
	// Info has the payload of every info event in order.
	Info []json.RawMessage
	// TaskEnds has every task end event in order.
	TaskEnds []event.TaskEnd
}

//go:generate mockery --case underscore --output sandboxmock --outpkg sandboxmock --name Session
//go:generate mockery --case underscore --output sandboxmock --outpkg sandboxmock --name Background
//go:generate mockery --case underscore --output sandboxmock --outpkg sandboxmock --name Installer
//go:generate mockery --case underscore --output sandboxmock --outpkg sandboxmock --name Provider
//go:generate mockery --case underscore --output sandboxmock --outpkg sandboxmock --name ProgressProvider

// Session runs subcommands of one installed module version.
type Session interface {
	// Module returns the module name.
	Module() string
	// Version returns the pinned module version.
	Version() string

	// Check performs preflight checks and returns the results.
	Check(ctx context.Context) []model.CheckResult

	// Exec runs a subcommand and waits until it finishes.
	Exec(ctx context.Context, subcommand string, args []string, opts ExecOpts) (*ExecResult, error)

	// Start runs a subcommand in the background. Events are dispatched to the
	// options handler while it runs.
	Start(ctx context.Context, subcommand string, args []string, opts ExecOpts) (Background, error)
}

// Background is a subcommand running in the background.
type Background interface {
	// Stop cancels the subcommand killing the process.
	Stop()
	// OnClosed registers a handler called once when the subcommand ends, with an
	// error if it didn't end cleanly. Handlers registered after the end are called
	// right away.
	OnClosed(fn func(err error))
	// Wait blocks until the subcommand ends and returns the same error the close handlers receive.
	Wait() error
}

// ProgressFunc receives a progress percentage (0-100).
type ProgressFunc func(percentage float64)

// Installer installs the module version of a session.
type Installer interface {
	// EnsureInstalled installs the module version if it's not installed already.
	EnsureInstalled(ctx context.Context, onProgress ProgressFunc) error
}

// Provider returns the installed session of a module.
type Provider interface {
	Session(ctx context.Context, module string) (Session, error)
}

// ProgressProvider is a Provider that reports the install progress of the
// session when it has to be installed.
type ProgressProvider interface {
	Provider
	SessionWithProgress(ctx context.Context, module string, onProgress ProgressFunc) (Session, error)
}

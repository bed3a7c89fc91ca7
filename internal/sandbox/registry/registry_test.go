package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/sandbox/fake"
	"github.com/slok/devsbx/internal/sandbox/registry"
)

func TestRegistrySession(t *testing.T) {
	tests := map[string]struct {
		factoryErr error
		module     string
		expCalls   int32
		expErr     error
	}{
		"Concurrent first requests should create the session once.": {
			module:   "device",
			expCalls: 1,
		},

		"A failing factory should fail every request.": {
			module:     "device",
			factoryErr: errors.New("install failed"),
			expCalls:   1,
		},

		"A missing module should fail without calling the factory.": {
			module:   "",
			expCalls: 0,
			expErr:   model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			var calls atomic.Int32
			release := make(chan struct{})
			reg, err := registry.New(registry.Config{
				Factory: func(ctx context.Context, module string) (sandbox.Session, error) {
					calls.Add(1)
					<-release
					if test.factoryErr != nil {
						return nil, test.factoryErr
					}
					return fake.NewSession(fake.SessionConfig{Module: module})
				},
			})
			require.NoError(t, err)

			var wg sync.WaitGroup
			sessions := make([]sandbox.Session, 5)
			errs := make([]error, 5)
			for i := range sessions {
				wg.Add(1)
				go func() {
					defer wg.Done()
					sessions[i], errs[i] = reg.Session(context.TODO(), test.module)
				}()
			}
			// Let every request join the in flight creation.
			time.Sleep(50 * time.Millisecond)
			close(release)
			wg.Wait()

			assert.Equal(test.expCalls, calls.Load())
			for i := range sessions {
				switch {
				case test.expErr != nil:
					assert.ErrorIs(errs[i], test.expErr)
				case test.factoryErr != nil:
					assert.ErrorIs(errs[i], test.factoryErr)
				default:
					require.NoError(t, errs[i])
					assert.Same(sessions[0], sessions[i])
				}
			}
		})
	}
}

func TestRegistryForget(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	reg, err := registry.New(registry.Config{
		Factory: func(ctx context.Context, module string) (sandbox.Session, error) {
			calls.Add(1)
			return fake.NewSession(fake.SessionConfig{Module: module})
		},
	})
	require.NoError(t, err)

	s1, err := reg.Session(context.TODO(), "device")
	require.NoError(t, err)
	s2, err := reg.Session(context.TODO(), "device")
	require.NoError(t, err)
	assert.Same(s1, s2)

	reg.Forget("device")
	s3, err := reg.Session(context.TODO(), "device")
	require.NoError(t, err)
	assert.NotSame(s1, s3)
	assert.Equal(int32(2), calls.Load())
}

// installSession counts the installs and blocks them until released.
type installSession struct {
	*fake.Session
	installs   atomic.Int32
	release    chan struct{}
	installErr error
}

func (s *installSession) EnsureInstalled(ctx context.Context, onProgress sandbox.ProgressFunc) error {
	s.installs.Add(1)
	onProgress(0)
	<-s.release
	if s.installErr != nil {
		return s.installErr
	}
	onProgress(100)
	return nil
}

func newInstallSession(t *testing.T, installErr error) *installSession {
	fs, err := fake.NewSession(fake.SessionConfig{Module: "device"})
	require.NoError(t, err)
	return &installSession{Session: fs, release: make(chan struct{}), installErr: installErr}
}

func TestRegistrySessionInstall(t *testing.T) {
	tests := map[string]struct {
		installErr  error
		expInstalls int32
		expProgress []float64
		expErr      bool
	}{
		"Concurrent first requests should install the module once and receive its progress.": {
			expInstalls: 1,
			expProgress: []float64{0, 100},
		},

		"A failed install should fail every waiting request.": {
			installErr:  errors.New("launcher failed"),
			expInstalls: 1,
			expProgress: []float64{0},
			expErr:      true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			is := newInstallSession(t, test.installErr)
			reg, err := registry.New(registry.Config{
				Factory: func(ctx context.Context, module string) (sandbox.Session, error) { return is, nil },
			})
			require.NoError(t, err)

			var wg sync.WaitGroup
			progress := make([][]float64, 3)
			errs := make([]error, 3)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = reg.SessionWithProgress(context.TODO(), "device", func(p float64) {
						progress[i] = append(progress[i], p)
					})
				}()
			}
			// Let every request join the in flight install.
			time.Sleep(50 * time.Millisecond)
			close(is.release)
			wg.Wait()

			assert.Equal(test.expInstalls, is.installs.Load())
			for i := range errs {
				if test.expErr {
					assert.ErrorIs(errs[i], test.installErr)
				} else {
					assert.NoError(errs[i])
				}
				assert.Equal(test.expProgress, progress[i])
			}
		})
	}
}

func TestRegistrySessionFailedInstallIsRetried(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	failing := newInstallSession(t, errors.New("launcher failed"))
	close(failing.release)
	working := newInstallSession(t, nil)
	close(working.release)

	reg, err := registry.New(registry.Config{
		Factory: func(ctx context.Context, module string) (sandbox.Session, error) {
			if calls.Add(1) == 1 {
				return failing, nil
			}
			return working, nil
		},
	})
	require.NoError(t, err)

	_, err = reg.Session(context.TODO(), "device")
	assert.Error(err)

	s, err := reg.Session(context.TODO(), "device")
	require.NoError(t, err)
	assert.Same(working, s)
	assert.Equal(int32(2), calls.Load())
	assert.Equal(int32(1), working.installs.Load())
}

func TestRegistrySessionCancelledWaiter(t *testing.T) {
	assert := assert.New(t)

	is := newInstallSession(t, nil)
	reg, err := registry.New(registry.Config{
		Factory: func(ctx context.Context, module string) (sandbox.Session, error) { return is, nil },
	})
	require.NoError(t, err)

	// The first caller starts the install and gives up waiting.
	ctx, cancel := context.WithCancel(context.Background())
	cancelledErr := make(chan error, 1)
	go func() {
		_, err := reg.Session(ctx, "device")
		cancelledErr <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(<-cancelledErr, model.ErrAborted)

	// The install keeps running for the rest of the waiters.
	sessionErr := make(chan error, 1)
	go func() {
		_, err := reg.Session(context.Background(), "device")
		sessionErr <- err
	}()
	time.Sleep(50 * time.Millisecond)
	close(is.release)

	assert.NoError(<-sessionErr)
	assert.Equal(int32(1), is.installs.Load())
}

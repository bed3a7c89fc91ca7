package install_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/internal/app/install"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/sandbox/fake"
	"github.com/slok/devsbx/internal/sandbox/registry"
	"github.com/slok/devsbx/internal/sandbox/sandboxmock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    install.ServiceConfig
		expErr bool
	}{
		"Valid config should create the service.": {
			cfg: install.ServiceConfig{Sessions: &sandboxmock.MockProgressProvider{}},
		},
		"Missing sessions provider should fail.": {
			cfg:    install.ServiceConfig{},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := install.NewService(test.cfg)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		req         install.Request
		mock        func(p *sandboxmock.MockProgressProvider, s *sandboxmock.MockSession)
		expResult   *install.Result
		expProgress []float64
		expErr      error
	}{
		"Missing module should fail.": {
			req:    install.Request{},
			mock:   func(p *sandboxmock.MockProgressProvider, s *sandboxmock.MockSession) {},
			expErr: model.ErrNotValid,
		},

		"A failed install should fail.": {
			req: install.Request{Module: "nrfutil-device"},
			mock: func(p *sandboxmock.MockProgressProvider, s *sandboxmock.MockSession) {
				p.On("SessionWithProgress", mock.Anything, "nrfutil-device", mock.Anything).Once().Return(nil, model.ErrAborted)
			},
			expErr: model.ErrAborted,
		},

		"Installing a module should report the progress and the installed version.": {
			req: install.Request{Module: "nrfutil-device"},
			mock: func(p *sandboxmock.MockProgressProvider, s *sandboxmock.MockSession) {
				p.On("SessionWithProgress", mock.Anything, "nrfutil-device", mock.Anything).Once().Return(
					func(ctx context.Context, module string, fn sandbox.ProgressFunc) (sandbox.Session, error) {
						fn(0)
						fn(100)
						return s, nil
					})
				s.On("Module").Return("nrfutil-device")
				s.On("Version").Return("2.1.1")
			},
			expResult:   &install.Result{Module: "nrfutil-device", Version: "2.1.1"},
			expProgress: []float64{0, 100},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mp := sandboxmock.NewMockProgressProvider(t)
			ms := sandboxmock.NewMockSession(t)
			test.mock(mp, ms)

			svc, err := install.NewService(install.ServiceConfig{Sessions: mp})
			require.NoError(err)

			var progress []float64
			test.req.OnProgress = func(p float64) { progress = append(progress, p) }
			res, err := svc.Run(context.TODO(), test.req)

			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "unexpected error: %v", err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expResult, res)
			assert.Equal(test.expProgress, progress)
		})
	}
}

// countingSession counts the installs and blocks them until released.
type countingSession struct {
	*fake.Session
	installs atomic.Int32
	release  chan struct{}
}

func (c *countingSession) EnsureInstalled(ctx context.Context, onProgress sandbox.ProgressFunc) error {
	c.installs.Add(1)
	<-c.release
	return c.Session.EnsureInstalled(ctx, onProgress)
}

func TestServiceRunConcurrentInstallsShareTheInstall(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fs, err := fake.NewSession(fake.SessionConfig{Module: "nrfutil-device", Version: "2.1.1"})
	require.NoError(err)
	cs := &countingSession{Session: fs, release: make(chan struct{})}

	reg, err := registry.New(registry.Config{
		Factory: func(ctx context.Context, module string) (sandbox.Session, error) { return cs, nil },
	})
	require.NoError(err)
	svc, err := install.NewService(install.ServiceConfig{Sessions: reg})
	require.NoError(err)

	var wg sync.WaitGroup
	progress := make([][]float64, 2)
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Run(context.TODO(), install.Request{
				Module:     "nrfutil-device",
				OnProgress: func(p float64) { progress[i] = append(progress[i], p) },
			})
		}()
	}
	// Let both installs join the in flight one.
	time.Sleep(50 * time.Millisecond)
	close(cs.release)
	wg.Wait()

	for i := range errs {
		assert.NoError(errs[i])
		assert.Equal([]float64{0, 100}, progress[i])
	}
	assert.Equal(int32(1), cs.installs.Load())

	// Installed sessions are not installed again.
	_, err = svc.Run(context.TODO(), install.Request{Module: "nrfutil-device"})
	require.NoError(err)
	assert.Equal(int32(1), cs.installs.Load())
}

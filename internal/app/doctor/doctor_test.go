package doctor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/internal/app/doctor"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox/sandboxmock"
)

func TestServiceRun(t *testing.T) {
	okChecks := []model.CheckResult{
		{ID: model.CheckIDExecutable, Message: "installed", Status: model.CheckStatusOK},
		{ID: model.CheckIDVersion, Message: "2.1.1", Status: model.CheckStatusOK},
	}

	tests := map[string]struct {
		req       doctor.Request
		mock      func(p *sandboxmock.MockProvider, s *sandboxmock.MockSession)
		expChecks []model.ModuleChecks
		expErrors bool
		expErr    error
	}{
		"Without modules it should fail.": {
			req:    doctor.Request{},
			mock:   func(p *sandboxmock.MockProvider, s *sandboxmock.MockSession) {},
			expErr: model.ErrNotValid,
		},

		"Every module should report its session checks.": {
			req: doctor.Request{Modules: []string{"nrfutil-device"}},
			mock: func(p *sandboxmock.MockProvider, s *sandboxmock.MockSession) {
				p.On("Session", mock.Anything, "nrfutil-device").Once().Return(s, nil)
				s.On("Module").Return("nrfutil-device")
				s.On("Version").Return("2.1.1")
				s.On("Check", mock.Anything).Once().Return(okChecks)
			},
			expChecks: []model.ModuleChecks{
				{Module: "nrfutil-device", Version: "2.1.1", Results: okChecks},
			},
		},

		"A module without session should report a failed check and keep checking.": {
			req: doctor.Request{Modules: []string{"missing", "nrfutil-device"}},
			mock: func(p *sandboxmock.MockProvider, s *sandboxmock.MockSession) {
				p.On("Session", mock.Anything, "missing").Once().Return(nil, errors.New("no version"))
				p.On("Session", mock.Anything, "nrfutil-device").Once().Return(s, nil)
				s.On("Module").Return("nrfutil-device")
				s.On("Version").Return("2.1.1")
				s.On("Check", mock.Anything).Once().Return(okChecks)
			},
			expChecks: []model.ModuleChecks{
				{Module: "missing", Results: []model.CheckResult{{
					ID:      doctor.CheckIDSession,
					Message: "Could not prepare module session: no version",
					Status:  model.CheckStatusError,
				}}},
				{Module: "nrfutil-device", Version: "2.1.1", Results: okChecks},
			},
			expErrors: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mp := sandboxmock.NewMockProvider(t)
			ms := sandboxmock.NewMockSession(t)
			test.mock(mp, ms)

			svc, err := doctor.NewService(doctor.ServiceConfig{Sessions: mp})
			require.NoError(err)

			checks, err := svc.Run(context.TODO(), test.req)

			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "unexpected error: %v", err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expChecks, checks)
			assert.Equal(test.expErrors, doctor.HasErrors(checks))
		})
	}
}

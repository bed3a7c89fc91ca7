package fake_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/sandbox/fake"
)

func TestSessionExec(t *testing.T) {
	tests := map[string]struct {
		scripts    map[string]fake.Script
		subcommand string
		args       []string
		expResult  func(t *testing.T, res *sandbox.ExecResult)
		expErr     string
	}{
		"A scripted subcommand should replay its events.": {
			scripts: map[string]fake.Script{
				"core-info": {Events: []event.Envelope{
					event.TaskBegin{Task: event.Task{ID: "0"}},
					event.TaskEnd{Task: event.Task{ID: "0", Data: json.RawMessage(`{"codeSize":1024}`)}, Result: event.TaskResultSuccess},
				}},
			},
			subcommand: "core-info",
			expResult: func(t *testing.T, res *sandbox.ExecResult) {
				require.Len(t, res.TaskEnds, 1)
				assert.JSONEq(t, `{"codeSize":1024}`, string(res.TaskEnds[0].Task.Data))
			},
		},

		"A failed scripted task should fail the execution.": {
			scripts: map[string]fake.Script{
				"erase": {Events: []event.Envelope{
					event.TaskEnd{Task: event.Task{ID: "0"}, Result: event.TaskResultFail, Message: "Error: Device not found"},
				}},
			},
			subcommand: "erase",
			expErr:     "Device not found.",
		},

		"The default script should generate program descriptors from the firmware.": {
			subcommand: "x-generate-batch-operation",
			args:       []string{"program", "--firmware", "/tmp/fw.hex"},
			expResult: func(t *testing.T, res *sandbox.ExecResult) {
				require.Len(t, res.Info, 1)
				assert.JSONEq(t, `{"type":"program","firmware":{"file":"/tmp/fw.hex"}}`, string(res.Info[0]))
			},
		},

		"The default script should run every batch operation.": {
			subcommand: "x-execute-batch",
			args: []string{
				"--batch-json", `{"operations":[{"operationId":"0","operation":{"type":"erase"}},{"operationId":"1","operation":{"type":"reset"}}]}`,
				"--serial-number", "123",
			},
			expResult: func(t *testing.T, res *sandbox.ExecResult) {
				require.Len(t, res.TaskEnds, 2)
				assert.Equal(t, "0", res.TaskEnds[0].Task.ID)
				assert.Equal(t, "reset", res.TaskEnds[1].Task.Name)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := fake.NewSession(fake.SessionConfig{Scripts: test.scripts})
			require.NoError(t, err)

			res, err := s.Exec(context.TODO(), test.subcommand, test.args, sandbox.ExecOpts{})

			if test.expErr != "" {
				require.Error(t, err)
				assert.Equal(t, test.expErr, err.Error())
				return
			}
			require.NoError(t, err)
			test.expResult(t, res)
			assert.Equal(t, []fake.Call{{Subcommand: test.subcommand, Args: test.args}}, s.Calls())
		})
	}
}

func TestSessionStartBlockedShouldAbortOnStop(t *testing.T) {
	assert := assert.New(t)

	s, err := fake.NewSession(fake.SessionConfig{
		Scripts: map[string]fake.Script{"x-execute-batch": {Block: true}},
	})
	require.NoError(t, err)

	bg, err := s.Start(context.TODO(), "x-execute-batch", nil, sandbox.ExecOpts{})
	require.NoError(t, err)

	closed := make(chan error, 1)
	bg.OnClosed(func(err error) { closed <- err })
	bg.Stop()

	select {
	case err := <-closed:
		assert.True(errors.Is(err, model.ErrAborted))
	case <-time.After(5 * time.Second):
		t.Fatal("fake session didn't stop")
	}
}

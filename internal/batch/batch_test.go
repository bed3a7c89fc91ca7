package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/internal/batch"
	"github.com/slok/devsbx/internal/event"
	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/sandbox/fake"
)

var testDevice = model.Device{SerialNumber: "000683123456"}

func task(id string) event.Task {
	return event.Task{ID: id, Name: "task-" + id}
}

func begin(id string) event.Envelope { return event.TaskBegin{Task: task(id)} }

func progress(id string, pct float64) event.Envelope {
	t := task(id)
	return event.TaskProgress{Task: &t, Progress: model.Progress{ProgressPercentage: pct, Step: 2, AmountOfSteps: 4}}
}

func end(id string) event.Envelope {
	t := task(id)
	t.Data = json.RawMessage(`{"id":"` + id + `"}`)
	return event.TaskEnd{Task: t, Result: event.TaskResultSuccess}
}

func failEnd(id string) event.Envelope {
	return event.TaskEnd{
		Task:    task(id),
		Result:  event.TaskResultFail,
		Error:   &event.TaskError{Code: 33, Description: "device is protected"},
		Message: "Error: Failed to erase",
	}
}

// recorder records the callbacks of every operation.
type recorder struct {
	calls map[int][]string
	excs  map[int][]error
}

func newRecorder() *recorder {
	return &recorder{calls: map[int][]string{}, excs: map[int][]error{}}
}

func (r *recorder) callbacks(i int) batch.Callbacks {
	return batch.Callbacks{
		OnTaskBegin: func(ev event.TaskBegin) { r.calls[i] = append(r.calls[i], "begin:"+ev.Task.ID) },
		OnProgress: func(p model.Progress) {
			r.calls[i] = append(r.calls[i], "progress:"+jsonNumber(p.TotalProgressPercentage))
		},
		OnTaskEnd:   func(ev event.TaskEnd) { r.calls[i] = append(r.calls[i], "end:"+ev.Task.ID) },
		OnException: func(err error) { r.excs[i] = append(r.excs[i], err) },
	}
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func newBatch(t *testing.T, scripts map[string]fake.Script) (*batch.Batch, *fake.Session) {
	t.Helper()
	s, err := fake.NewSession(fake.SessionConfig{Module: "device", Scripts: scripts})
	require.NoError(t, err)
	b, err := batch.New(batch.Config{Session: s, StagingDir: t.TempDir()})
	require.NoError(t, err)
	return b, s
}

func subcommands(s *fake.Session) []string {
	var subs []string
	for _, c := range s.Calls() {
		subs = append(subs, c.Subcommand)
	}
	return subs
}

func TestBatchRunCorrelation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b, s := newBatch(t, map[string]fake.Script{
		"x-execute-batch": {Events: []event.Envelope{
			begin("0"), end("0"),
			begin("1"), progress("1", 50), end("1"),
			begin("2"), end("2"),
		}},
	})
	rec := newRecorder()
	b.Erase(model.DeviceCoreApplication, rec.callbacks(0)).
		Reset(model.DeviceCoreDefault, rec.callbacks(1)).
		FirmwareInfo(model.DeviceCoreNetwork, rec.callbacks(2))

	results, err := b.Run(context.TODO(), testDevice)
	require.NoError(err)

	assert.Equal(map[int][]string{
		0: {"begin:0", "end:0"},
		1: {"begin:1", "progress:37.5", "end:1"},
		2: {"begin:2", "end:2"},
	}, rec.calls)
	assert.Empty(rec.excs)
	require.Len(results, 3)
	assert.JSONEq(`{"id":"1"}`, string(results[1]))
	assert.Equal(batch.StateCompleted, b.State())

	calls := s.Calls()
	require.Len(calls, 1)
	assert.Equal("x-execute-batch", calls[0].Subcommand)
	require.Len(calls[0].Args, 4)
	assert.Equal("--batch-json", calls[0].Args[0])
	assert.JSONEq(`{"operations":[
		{"operationId":"0","core":"Application","operation":{"type":"erase"}},
		{"operationId":"1","operation":{"type":"reset"}},
		{"operationId":"2","core":"Network","operation":{"type":"fw-info"}}
	]}`, calls[0].Args[1])
	assert.Equal([]string{"--serial-number", "000683123456"}, calls[0].Args[2:])
}

func TestBatchCollect(t *testing.T) {
	tests := map[string]struct {
		events     []event.Envelope
		expResults [][]string
	}{
		"Collect should receive the task ends starting at the registration operation.": {
			events:     []event.Envelope{begin("0"), end("0"), begin("1"), end("1"), begin("2"), end("2"), begin("3"), end("3")},
			expResults: [][]string{{`{"id":"1"}`, `{"id":"2"}`}},
		},

		"Collect should not be called without enough task ends.": {
			events:     []event.Envelope{begin("0"), end("0"), begin("1"), end("1")},
			expResults: nil,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			b, _ := newBatch(t, map[string]fake.Script{"x-execute-batch": {Events: test.events}})

			var got [][]string
			b.Erase("", batch.Callbacks{}).
				Erase("", batch.Callbacks{}).
				Collect(2, func(results []json.RawMessage) {
					var rs []string
					for _, r := range results {
						rs = append(rs, string(r))
					}
					got = append(got, rs)
				}).
				Erase("", batch.Callbacks{}).
				Erase("", batch.Callbacks{})

			_, err := b.Run(context.TODO(), testDevice)
			require.NoError(t, err)
			assert.Equal(test.expResults, got)
		})
	}
}

func TestBatchRunAggregateFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b, _ := newBatch(t, map[string]fake.Script{
		"x-execute-batch": {
			Events: []event.Envelope{
				begin("0"), end("0"),
				begin("1"), failEnd("1"),
				begin("2"), end("2"),
			},
			Err:    errors.New("exit status 1"),
			Stderr: "Error: batch finished with failures",
		},
	})
	rec := newRecorder()
	b.Recover("", rec.callbacks(0)).
		Erase("", rec.callbacks(1)).
		Reset("", rec.callbacks(2))

	_, err := b.Run(context.TODO(), testDevice)
	require.Error(err)

	var failure *batch.TaskFailure
	require.True(errors.As(err, &failure))
	assert.Equal(1, failure.OperationIndex)
	assert.Equal(33, failure.Code)
	assert.Contains(err.Error(), "error code 33")
	assert.Contains(err.Error(), "device is protected")
	assert.Contains(err.Error(), "Failed to erase.")

	// The process error is kept along the task failures.
	var execErr *sandbox.ExecError
	require.True(errors.As(err, &execErr))
	assert.Contains(err.Error(), "exit status 1")
	assert.Contains(err.Error(), "batch finished with failures")

	assert.Len(rec.excs[1], 1)
	assert.Empty(rec.excs[0])
	assert.Empty(rec.excs[2])
	assert.Equal(batch.StateFailed, b.State())
}

func TestBatchRunPreconditions(t *testing.T) {
	tests := map[string]struct {
		build  func(b *batch.Batch)
		device model.Device
		expErr error
	}{
		"An empty batch should return an empty result without running anything.": {
			build:  func(b *batch.Batch) {},
			device: model.Device{},
		},

		"A missing device serial should fail before running anything.": {
			build: func(b *batch.Batch) {
				b.Program("/tmp/fw.hex", "", batch.Callbacks{}).Erase("", batch.Callbacks{})
			},
			device: model.Device{Name: "no serial"},
			expErr: model.ErrNotValid,
		},

		"A collect without operations should fail before running anything.": {
			build: func(b *batch.Batch) {
				b.Collect(1, func([]json.RawMessage) {}).Erase("", batch.Callbacks{})
			},
			device: testDevice,
			expErr: model.ErrNotValid,
		},

		"A collect with an invalid count should fail before running anything.": {
			build: func(b *batch.Batch) {
				b.Erase("", batch.Callbacks{}).Collect(0, func([]json.RawMessage) {})
			},
			device: testDevice,
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			b, s := newBatch(t, nil)
			test.build(b)

			results, err := b.Run(context.TODO(), test.device)

			assert.Empty(s.Calls())
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				assert.Equal(batch.StateFailed, b.State())
				return
			}
			assert.NoError(err)
			assert.NotNil(results)
			assert.Empty(results)
			assert.Equal(batch.StateCompleted, b.State())
		})
	}
}

func TestBatchRunMaterialization(t *testing.T) {
	tests := map[string]struct {
		scripts        map[string]fake.Script
		build          func(b *batch.Batch)
		expSubcommands []string
		expOperations  string
		expErr         bool
	}{
		"Program should embed the descriptor generated by the tool.": {
			scripts: map[string]fake.Script{
				"x-generate-batch-operation": {Events: []event.Envelope{
					event.Info{Data: json.RawMessage(`{"type":"program","firmware":{"file":"/fw/app.hex"},"chip_erase_mode":"ERASE_ALL"}`)},
				}},
				"x-execute-batch": {Events: []event.Envelope{begin("0"), end("0")}},
			},
			build: func(b *batch.Batch) {
				b.Program("/fw/app.hex", model.DeviceCoreApplication, batch.Callbacks{})
			},
			expSubcommands: []string{"x-generate-batch-operation", "x-execute-batch"},
			expOperations:  `{"operations":[{"operationId":"0","core":"Application","operation":{"type":"program","firmware":{"file":"/fw/app.hex"},"chip_erase_mode":"ERASE_ALL"}}]}`,
		},

		"A failed descriptor generation should fail the batch before running it.": {
			scripts: map[string]fake.Script{
				"x-generate-batch-operation": {Err: errors.New("exit status 1"), Stderr: "Error: invalid firmware"},
			},
			build: func(b *batch.Batch) {
				b.Erase("", batch.Callbacks{}).Program("/fw/app.hex", "", batch.Callbacks{})
			},
			expSubcommands: []string{"x-generate-batch-operation"},
			expErr:         true,
		},

		"Raw operations should embed their payload.": {
			scripts: map[string]fake.Script{
				"x-execute-batch": {Events: []event.Envelope{begin("0"), end("0"), begin("1"), end("1")}},
			},
			build: func(b *batch.Batch) {
				b.Raw("custom", map[string]any{"mode": "fast"}, model.DeviceCoreModem, batch.Callbacks{}).
					ReadMemory(0x1000, 16, "", batch.Callbacks{})
			},
			expSubcommands: []string{"x-execute-batch"},
			expOperations: `{"operations":[
				{"operationId":"0","core":"Modem","operation":{"type":"custom","mode":"fast"}},
				{"operationId":"1","operation":{"type":"read","address":4096,"bytes":16}}
			]}`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			b, s := newBatch(t, test.scripts)
			test.build(b)

			_, err := b.Run(context.TODO(), testDevice)

			assert.Equal(test.expSubcommands, subcommands(s))
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(t, err)
			calls := s.Calls()
			assert.JSONEq(test.expOperations, calls[len(calls)-1].Args[1])
		})
	}
}

func TestBatchProgramBytesCleanup(t *testing.T) {
	tests := map[string]struct {
		scripts map[string]fake.Script
		extra   func(b *batch.Batch)
		expErr  bool
	}{
		"A successful operation should remove the staged firmware.": {
			scripts: map[string]fake.Script{
				"x-execute-batch": {Events: []event.Envelope{begin("0"), end("0")}},
			},
		},

		"A failed operation should remove the staged firmware.": {
			scripts: map[string]fake.Script{
				"x-execute-batch": {Events: []event.Envelope{begin("0"), failEnd("0")}, Err: errors.New("exit status 1")},
			},
			expErr: true,
		},

		"A failure while preparing the batch should remove the staged firmware.": {
			extra: func(b *batch.Batch) {
				b.Program("", "", batch.Callbacks{})
			},
			expErr: true,
		},

		"A process failure before the task ends should remove the staged firmware.": {
			scripts: map[string]fake.Script{
				"x-execute-batch": {Events: []event.Envelope{begin("0")}, Err: errors.New("signal: killed")},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			s, err := fake.NewSession(fake.SessionConfig{Module: "device", Scripts: test.scripts})
			require.NoError(t, err)
			stagingDir := t.TempDir()
			b, err := batch.New(batch.Config{Session: s, StagingDir: stagingDir})
			require.NoError(t, err)

			var stagedExistsOnEnd *bool
			var excs []error
			b.ProgramBytes([]byte(":00000001FF\n"), "app.hex", "", batch.Callbacks{
				OnTaskEnd: func(ev event.TaskEnd) {
					entries, _ := os.ReadDir(stagingDir)
					exists := len(entries) > 0
					stagedExistsOnEnd = &exists
				},
				OnException: func(err error) { excs = append(excs, err) },
			})
			if test.extra != nil {
				test.extra(b)
			}

			// Staged eagerly.
			entries, err := os.ReadDir(stagingDir)
			require.NoError(t, err)
			assert.Len(entries, 1)

			_, err = b.Run(context.TODO(), testDevice)
			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}

			if stagedExistsOnEnd != nil {
				assert.False(*stagedExistsOnEnd, "staged firmware should be removed when the operation ends")
			}
			entries, err = os.ReadDir(stagingDir)
			require.NoError(t, err)
			assert.Empty(entries)
		})
	}
}

func TestBatchReleaseWithoutRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s, err := fake.NewSession(fake.SessionConfig{Module: "device"})
	require.NoError(err)
	stagingDir := t.TempDir()
	b, err := batch.New(batch.Config{Session: s, StagingDir: stagingDir})
	require.NoError(err)

	b.ProgramBytes([]byte(":00000001FF\n"), "app.hex", "", batch.Callbacks{}).
		ProgramBytes([]byte(":00000001FF\n"), "net.hex", model.DeviceCoreNetwork, batch.Callbacks{})
	entries, err := os.ReadDir(stagingDir)
	require.NoError(err)
	assert.Len(entries, 2)

	require.NoError(b.Release())
	entries, err = os.ReadDir(stagingDir)
	require.NoError(err)
	assert.Empty(entries)
	assert.Equal(batch.StateAborted, b.State())

	// Released batches can't run and can be released again.
	_, err = b.Run(context.TODO(), testDevice)
	assert.ErrorIs(err, model.ErrNotValid)
	assert.Empty(s.Calls())
	assert.NoError(b.Release())
}

func TestBatchReleaseAfterRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b, _ := newBatch(t, map[string]fake.Script{
		"x-execute-batch": {Events: []event.Envelope{begin("0"), end("0")}},
	})
	b.Erase("", batch.Callbacks{})

	_, err := b.Run(context.TODO(), testDevice)
	require.NoError(err)
	assert.NoError(b.Release())
	assert.Equal(batch.StateCompleted, b.State())
}

func TestBatchRunAbort(t *testing.T) {
	assert := assert.New(t)

	b, _ := newBatch(t, map[string]fake.Script{
		"x-execute-batch": {Events: []event.Envelope{begin("0"), end("0"), begin("1")}, Block: true},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newRecorder()
	cb1 := rec.callbacks(1)
	onBegin := cb1.OnTaskBegin
	cb1.OnTaskBegin = func(ev event.TaskBegin) {
		onBegin(ev)
		cancel()
	}
	b.Erase("", rec.callbacks(0)).Program("/fw/app.hex", "", cb1).Reset("", rec.callbacks(2))

	_, err := b.Run(ctx, testDevice)
	assert.ErrorIs(err, model.ErrAborted)
	assert.Equal(batch.StateAborted, b.State())

	assert.Empty(rec.excs[0])
	if assert.Len(rec.excs[1], 1) {
		assert.ErrorIs(rec.excs[1][0], model.ErrAborted)
	}
	assert.Empty(rec.excs[2])
}

func TestBatchRunOnlyOnce(t *testing.T) {
	b, _ := newBatch(t, nil)

	_, err := b.Run(context.TODO(), testDevice)
	require.NoError(t, err)

	_, err = b.Run(context.TODO(), testDevice)
	assert.ErrorIs(t, err, model.ErrNotValid)
}

func TestBatchRunFanOutTasks(t *testing.T) {
	assert := assert.New(t)

	// One logical operation expanded by the tool in two tasks.
	b, _ := newBatch(t, map[string]fake.Script{
		"x-execute-batch": {Events: []event.Envelope{begin("0"), end("0"), begin("1"), end("1")}},
	})
	rec := newRecorder()
	var collected int
	b.Raw("multi", nil, "", rec.callbacks(0)).Collect(2, func(results []json.RawMessage) { collected = len(results) })

	results, err := b.Run(context.TODO(), testDevice)
	require.NoError(t, err)
	assert.Len(results, 2)
	assert.Equal(2, collected)
	assert.Equal(map[int][]string{0: {"begin:0", "end:0"}}, rec.calls)
}

package lib_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devsbx/pkg/lib"
)

// newTestClient creates a client with the fake device tool and a temp data dir for test isolation.
func newTestClient(t *testing.T) *lib.Client {
	t.Helper()

	client, err := lib.New(context.Background(), lib.Config{
		DataDir:        t.TempDir(),
		ModuleVersions: map[string]string{"nrf-device": "1.2.3"},
		Fake:           true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestNewInvalidToolLogLevel(t *testing.T) {
	_, err := lib.New(context.Background(), lib.Config{
		DataDir:      t.TempDir(),
		ToolLogLevel: "verbose",
		Fake:         true,
	})
	assert.ErrorIs(t, err, lib.ErrNotValid)
}

func TestInstall(t *testing.T) {
	assert := assert.New(t)
	client := newTestClient(t)

	var progress []float64
	mod, err := client.Install(context.Background(), "nrf-device", func(p float64) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(&lib.InstalledModule{Module: "nrf-device", Version: "1.2.3"}, mod)
	assert.Equal([]float64{0, 100}, progress)
}

func TestExec(t *testing.T) {
	tests := map[string]struct {
		subcommand string
		args       []string
		expIs      error
	}{
		"Running a subcommand should work.": {
			subcommand: "core-info",
		},

		"Running a subcommand without name should fail.": {
			subcommand: "",
			expIs:      lib.ErrNotValid,
		},

		"Running a subcommand with a reserved flag should fail.": {
			subcommand: "core-info",
			args:       []string{"--json"},
			expIs:      lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			client := newTestClient(t)

			res, err := client.Exec(context.Background(), "nrf-device", test.subcommand, test.args, nil)

			if test.expIs != nil {
				assert.ErrorIs(err, test.expIs)
				return
			}
			require.NoError(t, err)
			assert.NotNil(res)
		})
	}
}

func TestNewBatchRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	client := newTestClient(t)
	ctx := context.Background()

	b, err := client.NewBatch(ctx, "nrf-device")
	require.NoError(err)

	var mu sync.Mutex
	var ends []string
	onEnd := lib.BatchCallbacks{OnTaskEnd: func(ev lib.TaskEnd) {
		mu.Lock()
		defer mu.Unlock()
		ends = append(ends, ev.Task.Name)
	}}

	var collected []json.RawMessage
	b.Erase(lib.DeviceCoreApplication, onEnd).
		ProgramBytes([]byte(":00000001FF\n"), "app.hex", lib.DeviceCoreApplication, onEnd).
		Collect(2, func(results []json.RawMessage) { collected = results }).
		Reset(lib.DeviceCoreApplication, onEnd)

	results, err := b.Run(ctx, lib.Device{SerialNumber: "1050012345"})
	require.NoError(err)

	require.Len(results, 3)
	assert.JSONEq(`{"operationId":"0","type":"erase"}`, string(results[0]))
	assert.JSONEq(`{"operationId":"2","type":"reset"}`, string(results[2]))
	assert.Len(collected, 2)
	assert.Equal([]string{"erase", "program", "reset"}, ends)

	// A batch can only run once.
	_, err = b.Run(ctx, lib.Device{SerialNumber: "1050012345"})
	assert.ErrorIs(err, lib.ErrNotValid)
}

func TestRunBatchHistory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	client := newTestClient(t)
	ctx := context.Background()

	fw := filepath.Join(t.TempDir(), "app.hex")
	require.NoError(os.WriteFile(fw, []byte(":00000001FF\n"), 0o600))

	var kinds []string
	res, err := client.RunBatch(ctx, lib.BatchSpec{
		Module: "nrf-device",
		Device: lib.Device{SerialNumber: "1050012345"},
		Operations: []lib.OperationSpec{
			{Type: "erase"},
			{Type: "program", Firmware: fw},
		},
	}, func(u lib.BatchUpdate) {
		if u.OperationIndex == 0 {
			kinds = append(kinds, string(u.Kind))
		}
	})
	require.NoError(err)
	assert.Equal(lib.BatchRunStatusCompleted, res.Run.Status)
	assert.Len(res.Results, 2)
	assert.NotEmpty(kinds)

	// Other devices shouldn't be listed.
	_, err = client.RunBatch(ctx, lib.BatchSpec{
		Module:     "nrf-device",
		Device:     lib.Device{SerialNumber: "1050099999"},
		Operations: []lib.OperationSpec{{Type: "reset"}},
	}, nil)
	require.NoError(err)

	runs, err := client.ListBatchRuns(ctx, &lib.ListBatchRunsOpts{DeviceSerial: "1050012345"})
	require.NoError(err)
	require.Len(runs, 1)
	assert.Equal(res.Run.ID, runs[0].ID)

	got, err := client.GetBatchRun(ctx, res.Run.ID)
	require.NoError(err)
	assert.Equal("1.2.3", got.Version)
	assert.Len(got.Operations, 2)

	all, err := client.ListBatchRuns(ctx, nil)
	require.NoError(err)
	assert.Len(all, 2)
}

func TestRunBatchInvalid(t *testing.T) {
	tests := map[string]struct {
		spec lib.BatchSpec
	}{
		"A batch without device should fail.": {
			spec: lib.BatchSpec{Module: "nrf-device", Operations: []lib.OperationSpec{{Type: "erase"}}},
		},

		"A batch with a different pinned version should fail.": {
			spec: lib.BatchSpec{
				Module:     "nrf-device",
				Version:    "2.0.0",
				Device:     lib.Device{SerialNumber: "1050012345"},
				Operations: []lib.OperationSpec{{Type: "erase"}},
			},
		},

		"A program operation without firmware should fail.": {
			spec: lib.BatchSpec{
				Module:     "nrf-device",
				Device:     lib.Device{SerialNumber: "1050012345"},
				Operations: []lib.OperationSpec{{Type: "program"}},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			client := newTestClient(t)

			_, err := client.RunBatch(context.Background(), test.spec, nil)
			assert.ErrorIs(err, lib.ErrNotValid)

			runs, err := client.ListBatchRuns(context.Background(), nil)
			require.NoError(t, err)
			assert.Empty(runs)
		})
	}
}

func TestGetBatchRunMissing(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetBatchRun(context.Background(), "01J0000000000000000000000")
	assert.True(t, errors.Is(err, lib.ErrNotFound))
}

func TestDoctor(t *testing.T) {
	assert := assert.New(t)
	client := newTestClient(t)

	checks, err := client.Doctor(context.Background(), "nrf-device", "nrf-modem")
	require.NoError(t, err)

	require.Len(t, checks, 2)
	assert.Equal("nrf-device", checks[0].Module)
	assert.Equal("1.2.3", checks[0].Version)
	assert.Equal("nrf-modem", checks[1].Module)
	for _, mc := range checks {
		for _, r := range mc.Results {
			assert.Equal(lib.CheckStatusOK, r.Status)
		}
	}
}

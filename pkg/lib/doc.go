// Package lib provides a Go SDK to run device tool modules programmatically.
//
// This package allows applications to install module versions, run single
// subcommands and run batches of device operations without shelling out to
// the devsbx CLI binary. It is useful for production line scripts, automation
// and building tools on top of devsbx.
//
// # Quick Start
//
// Create a client, build a batch and run it on a device:
//
//	client, err := lib.New(ctx, lib.Config{
//	    ModuleVersions: map[string]string{"nrf-device": "1.2.3"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	b, err := client.NewBatch(ctx, "nrf-device")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Release()
//
//	b.Recover(lib.DeviceCoreApplication, lib.BatchCallbacks{}).
//	    Program("/path/to/app.hex", lib.DeviceCoreApplication, lib.BatchCallbacks{
//	        OnProgress: func(p lib.Progress) { fmt.Println(p.TotalProgressPercentage) },
//	    }).
//	    Reset(lib.DeviceCoreApplication, lib.BatchCallbacks{})
//
//	results, err := b.Run(ctx, lib.Device{SerialNumber: "1050012345"})
//
// # Recorded runs
//
// [Client.RunBatch] runs a declarative [BatchSpec] and records the outcome in
// the history database, use [Client.ListBatchRuns] and [Client.GetBatchRun]
// to query it later:
//
//	res, err := client.RunBatch(ctx, lib.BatchSpec{
//	    Module: "nrf-device",
//	    Device: lib.Device{SerialNumber: "1050012345"},
//	    Operations: []lib.OperationSpec{
//	        {Type: "erase"},
//	        {Type: "program", Firmware: "/path/to/app.hex"},
//	    },
//	}, nil)
//
// # Health Checks
//
// Run preflight checks to verify the module installations:
//
//	checks, _ := client.Doctor(ctx, "nrf-device")
//	for _, mc := range checks {
//	    for _, r := range mc.Results {
//	        fmt.Printf("%s: %s (%s)\n", r.ID, r.Message, r.Status)
//	    }
//	}
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Resource does not exist.
//   - [ErrAlreadyExists]: Resource with the same ID already exists.
//   - [ErrNotValid]: Invalid input or operation (e.g. running a batch twice).
//   - [ErrAborted]: The execution was cancelled.
//
// # Testing
//
// Use the fake device tool and a temporary database path to write tests
// without devices:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    DataDir: t.TempDir(),
//	    Fake:    true,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The underlying
// storage uses SQLite with WAL mode. A [Batch] is built and run by a single caller.
package lib

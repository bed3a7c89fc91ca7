package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slok/devsbx/internal/model"
	"github.com/slok/devsbx/internal/sandbox"
	"github.com/slok/devsbx/internal/scope"
)

const (
	generateSubcommand      = "x-generate-batch-operation"
	defaultStagedFirmwareFn = "firmware.hex"
)

// staticOp returns an operation whose descriptor is known upfront.
func staticOp(opType string, core model.DeviceCore, payload map[string]any, cb Callbacks) *operation {
	return &operation{
		opType:    opType,
		callbacks: cb,
		materialize: func(ctx context.Context) (model.OperationDescriptor, error) {
			return model.OperationDescriptor{Type: opType, Core: core, Payload: payload}, nil
		},
	}
}

// Erase erases the device core.
func (b *Batch) Erase(core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(staticOp(model.OperationTypeErase, core, nil, cb))
}

// Recover recovers a protected device core, erasing it.
func (b *Batch) Recover(core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(staticOp(model.OperationTypeRecover, core, nil, cb))
}

// Reset resets the device core.
func (b *Batch) Reset(core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(staticOp(model.OperationTypeReset, core, nil, cb))
}

// ReadMemory reads length bytes of the core memory starting at address.
func (b *Batch) ReadMemory(address, length uint64, core model.DeviceCore, cb Callbacks) *Batch {
	payload := map[string]any{"address": address, "bytes": length}
	return b.add(staticOp(model.OperationTypeReadMemory, core, payload, cb))
}

// CoreInfo queries the core information (memory layout...).
func (b *Batch) CoreInfo(core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(staticOp(model.OperationTypeCoreInfo, core, nil, cb))
}

// ProtectionGet queries the core protection status.
func (b *Batch) ProtectionGet(core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(staticOp(model.OperationTypeProtectionGet, core, nil, cb))
}

// FirmwareInfo queries the firmware running on the core.
func (b *Batch) FirmwareInfo(core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(staticOp(model.OperationTypeFirmwareInfo, core, nil, cb))
}

// Raw adds a vendor specific operation with an arbitrary type and payload.
func (b *Batch) Raw(opType string, payload map[string]any, core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(staticOp(opType, core, payload, cb))
}

// Program programs the firmware file on the core. The tool generates the
// operation descriptor from the firmware when the batch runs.
func (b *Batch) Program(firmwarePath string, core model.DeviceCore, cb Callbacks) *Batch {
	return b.add(b.programOp(firmwarePath, core, cb))
}

// ProgramBytes programs the firmware content on the core. The content is staged
// in a temporary file that is removed once the operation ends or the batch run finishes.
// filename sets the staged file name, the tool uses its extension to know the
// firmware format (default: firmware.hex).
func (b *Batch) ProgramBytes(firmware []byte, filename string, core model.DeviceCore, cb Callbacks) *Batch {
	if filename == "" {
		filename = defaultStagedFirmwareFn
	}

	f, err := scope.TempFile(b.stagingDir, filename, firmware)
	if err != nil {
		b.addBuildErr(fmt.Errorf("could not stage firmware: %w", err))
		return b.add(staticOp(model.OperationTypeProgram, core, nil, cb))
	}
	b.scopes.Add(f)

	op := b.programOp(f.Path, core, cb)
	op.release = f.Release
	return b.add(op)
}

func (b *Batch) programOp(firmwarePath string, core model.DeviceCore, cb Callbacks) *operation {
	return &operation{
		opType:    model.OperationTypeProgram,
		callbacks: cb,
		materialize: func(ctx context.Context) (model.OperationDescriptor, error) {
			if firmwarePath == "" {
				return model.OperationDescriptor{}, fmt.Errorf("firmware is required: %w", model.ErrNotValid)
			}
			return generateDescriptor(ctx, b.session, model.OperationTypeProgram, core, "--firmware", firmwarePath)
		},
	}
}

// generateDescriptor asks the tool to generate an operation descriptor, it's
// returned as the first info payload.
func generateDescriptor(ctx context.Context, session sandbox.Session, opType string, core model.DeviceCore, args ...string) (model.OperationDescriptor, error) {
	res, err := session.Exec(ctx, generateSubcommand, append([]string{opType}, args...), sandbox.ExecOpts{})
	if err != nil {
		return model.OperationDescriptor{}, fmt.Errorf("could not generate %s operation: %w", opType, err)
	}
	if len(res.Info) == 0 {
		return model.OperationDescriptor{}, fmt.Errorf("%s operation not generated: %w", opType, model.ErrNotFound)
	}

	payload := map[string]any{}
	if err := json.Unmarshal(res.Info[0], &payload); err != nil {
		return model.OperationDescriptor{}, fmt.Errorf("invalid generated %s operation: %w", opType, err)
	}

	if t, ok := payload["type"].(string); ok && t != "" {
		opType = t
	}
	delete(payload, "type")

	return model.OperationDescriptor{Type: opType, Core: core, Payload: payload}, nil
}

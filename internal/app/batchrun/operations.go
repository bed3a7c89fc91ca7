package batchrun

import (
	"fmt"
	"math"

	"github.com/slok/devsbx/internal/batch"
	"github.com/slok/devsbx/internal/model"
)

// addOperation adds the operation spec to the batch.
func addOperation(b *batch.Batch, op model.OperationSpec, cb batch.Callbacks) error {
	switch op.Type {
	case "":
		return fmt.Errorf("operation type is required: %w", model.ErrNotValid)

	case model.OperationTypeProgram:
		if op.Firmware == "" {
			return fmt.Errorf("program operation needs a firmware: %w", model.ErrNotValid)
		}
		b.Program(op.Firmware, op.Core, cb)

	case model.OperationTypeReadMemory:
		address, err := uintField(op.Payload, "address")
		if err != nil {
			return err
		}
		length, err := uintField(op.Payload, "bytes")
		if err != nil {
			return err
		}
		b.ReadMemory(address, length, op.Core, cb)

	// Custom payloads on known operations are sent as they are.
	case model.OperationTypeErase, model.OperationTypeRecover, model.OperationTypeReset,
		model.OperationTypeCoreInfo, model.OperationTypeProtectionGet, model.OperationTypeFirmwareInfo:
		if len(op.Payload) > 0 {
			b.Raw(op.Type, op.Payload, op.Core, cb)
			break
		}
		staticOps[op.Type](b, op.Core, cb)

	default:
		b.Raw(op.Type, op.Payload, op.Core, cb)
	}

	return nil
}

var staticOps = map[string]func(b *batch.Batch, core model.DeviceCore, cb batch.Callbacks) *batch.Batch{
	model.OperationTypeErase:         (*batch.Batch).Erase,
	model.OperationTypeRecover:       (*batch.Batch).Recover,
	model.OperationTypeReset:         (*batch.Batch).Reset,
	model.OperationTypeCoreInfo:      (*batch.Batch).CoreInfo,
	model.OperationTypeProtectionGet: (*batch.Batch).ProtectionGet,
	model.OperationTypeFirmwareInfo:  (*batch.Batch).FirmwareInfo,
}

func uintField(payload map[string]any, key string) (uint64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("payload %q is required: %w", key, model.ErrNotValid)
	}

	switch n := v.(type) {
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case uint64:
		return n, nil
	case float64:
		if n >= 0 && n == math.Trunc(n) {
			return uint64(n), nil
		}
	}

	return 0, fmt.Errorf("payload %q must be a positive integer, got %v: %w", key, v, model.ErrNotValid)
}

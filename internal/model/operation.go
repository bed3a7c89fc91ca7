package model

import (
	"fmt"
	"strconv"
)

// Operation types understood by the external device tool.
const (
	OperationTypeProgram       = "program"
	OperationTypeErase         = "erase"
	OperationTypeRecover       = "recover"
	OperationTypeReset         = "reset"
	OperationTypeReadMemory    = "read"
	OperationTypeCoreInfo      = "core-info"
	OperationTypeProtectionGet = "protection-get"
	OperationTypeFirmwareInfo  = "fw-info"
)

// OperationDescriptor is the wire level representation of one requested
// device action inside a batch. It must not be mutated once submitted.
type OperationDescriptor struct {
	// Type is the operation kind (e.g. "erase").
	Type string
	// Core is the optional target core.
	Core DeviceCore
	// OperationID is the batch position, set when the batch request is built.
	OperationID string
	// Payload holds the operation specific fields.
	Payload map[string]any
}

// Validate checks the descriptor is usable.
func (o OperationDescriptor) Validate() error {
	if o.Type == "" {
		return fmt.Errorf("operation type is required: %w", ErrNotValid)
	}
	if _, ok := o.Payload["type"]; ok {
		return fmt.Errorf("operation payload can't override the type field: %w", ErrNotValid)
	}
	return nil
}

// BatchRequest is an ordered set of operation descriptors submitted as a
// single external tool invocation.
type BatchRequest struct {
	Operations []OperationDescriptor
}

// NewBatchRequest returns a batch request where every descriptor is tagged with
// its zero based position. The received descriptors are not modified.
func NewBatchRequest(ops []OperationDescriptor) BatchRequest {
	tagged := make([]OperationDescriptor, 0, len(ops))
	for i, op := range ops {
		payload := make(map[string]any, len(op.Payload))
		for k, v := range op.Payload {
			payload[k] = v
		}
		op.Payload = payload
		op.OperationID = strconv.Itoa(i)
		tagged = append(tagged, op)
	}

	return BatchRequest{Operations: tagged}
}

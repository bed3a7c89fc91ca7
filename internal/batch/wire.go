package batch

import (
	"encoding/json"

	"github.com/slok/devsbx/internal/model"
)

type batchRequestJSON struct {
	Operations []operationJSON `json:"operations"`
}

type operationJSON struct {
	OperationID string         `json:"operationId"`
	Core        string         `json:"core,omitempty"`
	Operation   map[string]any `json:"operation"`
}

// marshalRequest encodes a batch request in the tool format, the operation
// type is inlined with the operation payload.
func marshalRequest(req model.BatchRequest) ([]byte, error) {
	r := batchRequestJSON{Operations: make([]operationJSON, 0, len(req.Operations))}
	for _, op := range req.Operations {
		operation := make(map[string]any, len(op.Payload)+1)
		for k, v := range op.Payload {
			operation[k] = v
		}
		operation["type"] = op.Type

		r.Operations = append(r.Operations, operationJSON{
			OperationID: op.OperationID,
			Core:        string(op.Core),
			Operation:   operation,
		})
	}

	return json.Marshal(r)
}

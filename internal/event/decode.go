package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/devsbx/internal/model"
)

// ErrUnknownType is returned when a record has a type this package doesn't know.
var ErrUnknownType = errors.New("unknown event type")

// Maximum batch update nesting, the tool never nests more than a couple of levels.
const maxNesting = 16

type envelopeJSON struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type taskJSON struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

type progressJSON struct {
	ProgressPercentage float64 `json:"progressPercentage"`
	Step               int     `json:"step"`
	AmountOfSteps      int     `json:"amountOfSteps"`
	Description        string  `json:"description"`
}

type taskBeginJSON struct {
	Task taskJSON `json:"task"`
}

type taskProgressJSON struct {
	Task     *taskJSON    `json:"task"`
	Progress progressJSON `json:"progress"`
}

type taskErrorJSON struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type taskEndJSON struct {
	Task    taskJSON       `json:"task"`
	Result  TaskResult     `json:"result"`
	Error   *taskErrorJSON `json:"error"`
	Message string         `json:"message"`
}

type logJSON struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type batchUpdateJSON struct {
	ID   json.RawMessage `json:"id"`
	Data json.RawMessage `json:"data"`
}

func (t taskJSON) toModel() Task {
	return Task{
		ID:          rawID(t.ID),
		Name:        t.Name,
		Description: t.Description,
		Data:        t.Data,
	}
}

// rawID accepts string and numeric identifiers.
func rawID(raw json.RawMessage) string {
	s := string(raw)
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

// Decode decodes a single record into its typed event.
func Decode(raw json.RawMessage) (Envelope, error) {
	return decode(raw, 0)
}

func decode(raw json.RawMessage, depth int) (Envelope, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("batch update nested more than %d levels: %w", maxNesting, model.ErrNotValid)
	}

	var env envelopeJSON
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("could not decode event envelope: %w", err)
	}

	switch env.Type {
	case TypeTaskBegin:
		var d taskBeginJSON
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return TaskBegin{Task: d.Task.toModel()}, nil

	case TypeTaskProgress:
		var d taskProgressJSON
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		ev := TaskProgress{
			Progress: model.Progress{
				ProgressPercentage: d.Progress.ProgressPercentage,
				Step:               d.Progress.Step,
				AmountOfSteps:      d.Progress.AmountOfSteps,
				Description:        d.Progress.Description,
			},
		}
		if d.Task != nil {
			task := d.Task.toModel()
			ev.Task = &task
		}
		return ev, nil

	case TypeTaskEnd:
		var d taskEndJSON
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		ev := TaskEnd{
			Task:    d.Task.toModel(),
			Result:  d.Result,
			Message: d.Message,
		}
		if d.Error != nil {
			ev.Error = &TaskError{Code: d.Error.Code, Description: d.Error.Description}
		}
		return ev, nil

	case TypeInfo:
		return Info{Data: env.Data}, nil

	case TypeLog:
		var d logJSON
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return Log{Level: d.Level, Message: d.Message}, nil

	case TypeBatchUpdate:
		var d batchUpdateJSON
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		inner, err := decode(d.Data, depth+1)
		if err != nil {
			return nil, fmt.Errorf("could not decode batch update %s: %w", rawID(d.ID), err)
		}
		return BatchUpdate{ID: rawID(d.ID), Data: inner}, nil
	}

	return nil, fmt.Errorf("%q: %w", env.Type, ErrUnknownType)
}

func unmarshalData(env envelopeJSON, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s event without data: %w", env.Type, model.ErrNotValid)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("could not decode %s event data: %w", env.Type, err)
	}
	return nil
}

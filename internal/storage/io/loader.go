package io

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/slok/devsbx/internal/model"
)

// ConfigYAMLRepository loads the app configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetAppConfig loads the app configuration from a YAML file. A missing file
// returns a model.ErrNotFound error.
func (r *ConfigYAMLRepository) GetAppConfig(ctx context.Context, path string) (model.AppConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.AppConfig{}, fmt.Errorf("config file %s: %w", path, model.ErrNotFound)
		}
		return model.AppConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.AppConfig{}, ctx.Err()
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.AppConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return model.AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.toModel(), nil
}

// AppConfig represents the YAML structure of the app configuration.
type AppConfig struct {
	Launcher string            `yaml:"launcher"`
	LogLevel string            `yaml:"log_level"`
	Modules  map[string]string `yaml:"modules"`
}

func (c AppConfig) validate() error {
	if c.LogLevel != "" {
		if _, err := model.ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	for module, version := range c.Modules {
		if module == "" {
			return fmt.Errorf("module name can't be empty")
		}
		if version == "" {
			return fmt.Errorf("module %q version is required", module)
		}
	}
	return nil
}

func (c AppConfig) toModel() model.AppConfig {
	level, _ := model.ParseLogLevel(c.LogLevel)
	return model.AppConfig{
		Launcher: c.Launcher,
		LogLevel: level,
		Modules:  c.Modules,
	}
}

//go:embed schemas/batch.schema.json
var schemaFiles embed.FS

const batchSchemaURL = "https://devsbx.dev/schemas/batch.schema.json"

// BatchYAMLRepository loads batch specs from YAML files validated with a JSON schema.
type BatchYAMLRepository struct {
	fs     fs.FS
	schema *jsonschema.Schema
}

// NewBatchYAMLRepository creates a new YAML batch repository.
func NewBatchYAMLRepository(filesystem fs.FS) (*BatchYAMLRepository, error) {
	payload, err := schemaFiles.ReadFile("schemas/batch.schema.json")
	if err != nil {
		return nil, fmt.Errorf("could not read batch schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(batchSchemaURL, bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("could not add batch schema: %w", err)
	}
	schema, err := compiler.Compile(batchSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("could not compile batch schema: %w", err)
	}

	return &BatchYAMLRepository{fs: filesystem, schema: schema}, nil
}

// GetBatchSpec loads a batch spec from a YAML file.
func (r *BatchYAMLRepository) GetBatchSpec(ctx context.Context, path string) (model.BatchSpec, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.BatchSpec{}, fmt.Errorf("reading batch file: %w", err)
	}

	if ctx.Err() != nil {
		return model.BatchSpec{}, ctx.Err()
	}

	// Validate the generic document first, the schema works on JSON values.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.BatchSpec{}, fmt.Errorf("parsing YAML: %w", err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return model.BatchSpec{}, fmt.Errorf("could not convert YAML to JSON: %w", err)
	}
	var value any
	if err := json.Unmarshal(jsonData, &value); err != nil {
		return model.BatchSpec{}, fmt.Errorf("could not decode JSON: %w", err)
	}
	if err := r.schema.Validate(value); err != nil {
		return model.BatchSpec{}, fmt.Errorf("invalid batch file: %w: %w", model.ErrNotValid, err)
	}

	var spec BatchSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return model.BatchSpec{}, fmt.Errorf("parsing YAML: %w", err)
	}

	return spec.toModel()
}

// BatchSpec represents the YAML structure of a batch file.
type BatchSpec struct {
	Module     string          `yaml:"module"`
	Version    string          `yaml:"version"`
	Device     DeviceSpec      `yaml:"device"`
	Operations []OperationSpec `yaml:"operations"`
}

// DeviceSpec represents the YAML structure of the target device.
type DeviceSpec struct {
	SerialNumber string `yaml:"serial_number"`
	Name         string `yaml:"name"`
}

// OperationSpec represents the YAML structure of a batch operation.
type OperationSpec struct {
	Type     string         `yaml:"type"`
	Core     string         `yaml:"core"`
	Firmware string         `yaml:"firmware"`
	Payload  map[string]any `yaml:"payload"`
	Collect  int            `yaml:"collect"`
}

func (b BatchSpec) toModel() (model.BatchSpec, error) {
	spec := model.BatchSpec{
		Module:  b.Module,
		Version: b.Version,
		Device: model.Device{
			SerialNumber: b.Device.SerialNumber,
			Name:         b.Device.Name,
		},
	}

	for i, op := range b.Operations {
		core, err := model.ParseDeviceCore(op.Core)
		if err != nil {
			return model.BatchSpec{}, fmt.Errorf("operation %d: %w", i, err)
		}
		spec.Operations = append(spec.Operations, model.OperationSpec{
			Type:     op.Type,
			Core:     core,
			Firmware: op.Firmware,
			Payload:  op.Payload,
			Collect:  op.Collect,
		})
	}

	return spec, nil
}

package model

import (
	"fmt"
	"strings"
)

// LogLevel is the log level passed to the external tool.
type LogLevel string

const (
	LogLevelOff   LogLevel = "off"
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
	LogLevelTrace LogLevel = "trace"
)

// LogLevels are all the supported log levels.
var LogLevels = []LogLevel{LogLevelOff, LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelDebug, LogLevelTrace}

// ParseLogLevel parses a log level.
func ParseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range LogLevels {
		if l == valid {
			return l, nil
		}
	}
	return "", fmt.Errorf("invalid log level %q: %w", s, ErrNotValid)
}

// AppConfig is the application configuration loaded from the config file.
type AppConfig struct {
	// Launcher is the executable used to install modules.
	Launcher string
	// LogLevel is the default external tool log level.
	LogLevel LogLevel
	// Modules are the declared module versions, keyed by module name.
	Modules map[string]string
}

// ModuleVersion returns the declared version for a module.
func (c AppConfig) ModuleVersion(module string) (string, bool) {
	v, ok := c.Modules[module]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// BatchSpec describes a batch of device operations loaded from a file.
type BatchSpec struct {
	Module     string
	Version    string
	Device     Device
	Operations []OperationSpec
}

// OperationSpec describes one operation of a batch spec.
type OperationSpec struct {
	Type     string
	Core     DeviceCore
	Firmware string
	Payload  map[string]any
	// Collect groups this many task results starting at this operation (0 disables it).
	Collect int
}

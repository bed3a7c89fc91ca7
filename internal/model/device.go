package model

import (
	"fmt"
	"strings"
)

// DeviceCore identifies a core of a multi-core device.
type DeviceCore string

const (
	// DeviceCoreDefault lets the external tool pick the device default core.
	DeviceCoreDefault DeviceCore = ""
	// DeviceCoreApplication is the application core.
	DeviceCoreApplication DeviceCore = "Application"
	// DeviceCoreNetwork is the network core.
	DeviceCoreNetwork DeviceCore = "Network"
	// DeviceCoreModem is the modem core.
	DeviceCoreModem DeviceCore = "Modem"
)

// ParseDeviceCore parses a core name case insensitively.
func ParseDeviceCore(s string) (DeviceCore, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DeviceCoreDefault, nil
	case "application", "app":
		return DeviceCoreApplication, nil
	case "network", "net":
		return DeviceCoreNetwork, nil
	case "modem":
		return DeviceCoreModem, nil
	default:
		return "", fmt.Errorf("unknown device core %q: %w", s, ErrNotValid)
	}
}

// Device identifies the target device of an operation.
type Device struct {
	// SerialNumber is the stable hardware identifier used to address the device.
	SerialNumber string
	// Name is an optional human friendly name.
	Name string
}

// Validate checks the device can be addressed.
func (d Device) Validate() error {
	if strings.TrimSpace(d.SerialNumber) == "" {
		return fmt.Errorf("device serial number is required: %w", ErrNotValid)
	}
	return nil
}

// String returns the name of the device or its serial number.
func (d Device) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s (%s)", d.Name, d.SerialNumber)
	}
	return d.SerialNumber
}

package device

import (
	"errors"
	"fmt"
)

// DeviceResolutionError reports that no device could be determined for an
// operation: an unknown id, an out-of-range index or a missing default.
type DeviceResolutionError struct {
	// ID is the requested device id, empty when the default was requested.
	ID     string
	Reason string
}

func (e *DeviceResolutionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("device resolution: %s", e.Reason)
	}
	return fmt.Sprintf("device resolution %q: %s", e.ID, e.Reason)
}

// HardwareInputError wraps a failed injection call.
type HardwareInputError struct {
	Op     string
	Device string
	Err    error
}

func (e *HardwareInputError) Error() string {
	return fmt.Sprintf("input %s on %s: %v", e.Op, e.Device, e.Err)
}

func (e *HardwareInputError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err is, or wraps, a
// *DeviceResolutionError.
func IsResolutionError(err error) bool {
	var re *DeviceResolutionError
	return errors.As(err, &re)
}

// IsHardwareError reports whether err is, or wraps, a *HardwareInputError.
func IsHardwareError(err error) bool {
	var he *HardwareInputError
	return errors.As(err, &he)
}

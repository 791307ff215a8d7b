package device

import "fmt"

// Static is an in-memory Registry over a fixed list of devices.
type Static struct {
	devices   []Device
	defaultID string
}

// NewStatic returns a registry over devices. The first device is the
// default; an empty registry has no default.
func NewStatic(devices ...Device) *Static {
	s := &Static{devices: make([]Device, len(devices))}
	for i, d := range devices {
		d.Index = i
		s.devices[i] = d
	}
	if len(devices) > 0 {
		s.defaultID = s.devices[0].ID
	}
	return s
}

// NewScreens builds n screens named screen0..screen<n-1>, each width x
// height pixels.
func NewScreens(n, width, height int) *Static {
	devices := make([]Device, n)
	for i := range devices {
		devices[i] = Device{
			ID:     ScreenID(i),
			Bounds: Rect{Width: width, Height: height},
		}
	}
	return NewStatic(devices...)
}

// ScreenID is the canonical id for the screen at index i.
func ScreenID(i int) string {
	return fmt.Sprintf("screen%d", i)
}

// SetDefault changes the default device. It fails for unknown ids.
func (s *Static) SetDefault(id string) error {
	if _, err := s.Device(id); err != nil {
		return err
	}
	s.defaultID = id
	return nil
}

// Device implements Registry.
func (s *Static) Device(id string) (Device, error) {
	for _, d := range s.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, &DeviceResolutionError{ID: id, Reason: "unknown device"}
}

// Default implements Registry.
func (s *Static) Default() (Device, error) {
	if s.defaultID == "" {
		return Device{}, &DeviceResolutionError{Reason: "no default device"}
	}
	return s.Device(s.defaultID)
}

// Devices implements Registry.
func (s *Static) Devices() []Device {
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out
}

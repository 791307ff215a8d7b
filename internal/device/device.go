// Package device describes the input targets an action sequence can act
// on, and the two collaborators the executor consumes: a Registry that
// resolves devices and an Input that injects pointer and key events.
package device

import (
	"context"
	"fmt"
	"time"
)

// Rect is a pixel rectangle in a device's coordinate space.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Device is a logical input target, typically one screen.
type Device struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Bounds Rect   `json:"bounds"`
}

// Center returns the default pointer location for the device.
func (d Device) Center() (int, int) {
	return d.Bounds.Center()
}

func (d Device) String() string {
	return fmt.Sprintf("%s[%dx%d]", d.ID, d.Bounds.Width, d.Bounds.Height)
}

// Region is a sub-rectangle of a device. Steps whose origin is a region
// have their coordinates offset by the region's top-left corner.
type Region struct {
	Device Device `json:"device"`
	Rect   Rect   `json:"rect"`
}

// Registry resolves symbolic device identifiers.
type Registry interface {
	// Device returns the device with the given id or a
	// *DeviceResolutionError.
	Device(id string) (Device, error)

	// Default returns the device used when nothing else applies.
	Default() (Device, error)

	// Devices lists every known device in index order.
	Devices() []Device
}

// Input performs single physical operations against a resolved device.
// Implementations report failures as *HardwareInputError. Calls are not
// retried by callers.
type Input interface {
	// MoveMouse moves the pointer to (x, y) in device coordinates. The
	// duration is a glide hint; zero means jump.
	MoveMouse(ctx context.Context, d Device, duration time.Duration, x, y int) error
	MouseDown(ctx context.Context, d Device) error
	MouseUp(ctx context.Context, d Device) error
	KeyDown(ctx context.Context, d Device, key rune) error
	KeyUp(ctx context.Context, d Device, key rune) error

	// PointerPosition reports where the pointer currently is on d.
	PointerPosition(ctx context.Context, d Device) (int, int, error)
}

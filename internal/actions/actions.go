// Package actions defines action sequences, the per-device step lists
// that the executor advances one step per tick, and decodes them from
// their wire form.
package actions

import (
	"fmt"
	"time"

	"github.com/v0xg/lockstep/internal/device"
)

// Kind tags a step variant. The values match the wire "type" field.
type Kind string

const (
	KindPointerMove Kind = "pointerMove"
	KindPointerDown Kind = "pointerDown"
	KindPointerUp   Kind = "pointerUp"
	KindPause       Kind = "pause"
	KindKeyDown     Kind = "keyDown"
	KindKeyUp       Kind = "keyUp"
)

// Step is one operation of a sequence. The set of implementations is
// closed: PointerMove, PointerDown, PointerUp, Pause, KeyDown, KeyUp and
// Unknown.
type Step interface {
	Kind() Kind
	isStep()
}

// PointerMove moves the pointer to (X, Y) relative to the carried origin
// offset. Duration is a glide hint for the input backend.
type PointerMove struct {
	Duration time.Duration
	X, Y     int
}

type PointerDown struct{}

type PointerUp struct{}

// Pause occupies a tick without touching any device.
type Pause struct {
	Duration time.Duration
}

type KeyDown struct {
	Key rune
}

type KeyUp struct {
	Key rune
}

// Unknown preserves a step whose type tag is not supported. Executors
// skip it.
type Unknown struct {
	Type string
	Raw  map[string]any
}

func (PointerMove) Kind() Kind { return KindPointerMove }
func (PointerDown) Kind() Kind { return KindPointerDown }
func (PointerUp) Kind() Kind   { return KindPointerUp }
func (Pause) Kind() Kind       { return KindPause }
func (KeyDown) Kind() Kind     { return KindKeyDown }
func (KeyUp) Kind() Kind       { return KindKeyUp }
func (u Unknown) Kind() Kind   { return Kind(u.Type) }

func (PointerMove) isStep() {}
func (PointerDown) isStep() {}
func (PointerUp) isStep()   {}
func (Pause) isStep()       {}
func (KeyDown) isStep()     {}
func (KeyUp) isStep()       {}
func (Unknown) isStep()     {}

// NeedsDevice reports whether executing s touches a device. Pauses and
// unknown steps do not, so they never trigger device resolution.
func NeedsDevice(s Step) bool {
	switch s.(type) {
	case Pause, Unknown:
		return false
	default:
		return true
	}
}

// Origin names the device a step targets, optionally narrowed to a
// region whose top-left corner offsets the step's coordinates.
type Origin struct {
	DeviceID string
	Region   *device.Rect
}

// Offset returns the coordinate offset contributed by the origin.
func (o Origin) Offset() (int, int) {
	if o.Region == nil {
		return 0, 0
	}
	return o.Region.X, o.Region.Y
}

func (o Origin) String() string {
	if o.Region == nil {
		return o.DeviceID
	}
	r := o.Region
	return fmt.Sprintf("%s@%d,%d,%d,%d", o.DeviceID, r.X, r.Y, r.Width, r.Height)
}

// Action is a step with its optional explicit origin.
type Action struct {
	Step   Step
	Origin *Origin
}

// SourceType is the kind of input source a sequence stands for.
type SourceType string

const (
	SourcePointer SourceType = "pointer"
	SourceKey     SourceType = "key"
	SourceNone    SourceType = "none"
)

// Sequence is one input source's ordered step list. Origin, when set,
// applies to the first action unless that action declares its own.
type Sequence struct {
	ID      string
	Source  SourceType
	Origin  *Origin
	Actions []Action
}

// Len returns the number of steps in the sequence.
func (s Sequence) Len() int {
	return len(s.Actions)
}

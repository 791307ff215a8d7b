package device

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Op names a primitive input operation.
type Op string

const (
	OpMove    Op = "move"
	OpDown    Op = "down"
	OpUp      Op = "up"
	OpKeyDown Op = "keyDown"
	OpKeyUp   Op = "keyUp"
)

// Call is one primitive invocation observed by a Recorder.
type Call struct {
	Op       Op
	Device   string
	X, Y     int
	Duration time.Duration
	Key      rune
	At       time.Time
}

// Recorder is an Input that performs no real injection. It records every
// call and tracks a pointer position per device, which makes it the
// dry-run backend and the test double for the executor.
type Recorder struct {
	// Hook, when set, runs before a call is recorded. A non-nil return
	// fails the call with a *HardwareInputError and the call is not
	// recorded.
	Hook func(Call) error

	logger *slog.Logger

	mu       sync.Mutex
	calls    []Call
	pointers map[string][2]int
}

// NewRecorder returns an empty recorder. A nil logger falls back to
// slog.Default().
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		logger:   logger,
		pointers: make(map[string][2]int),
	}
}

// Calls returns a snapshot of the recorded calls in arrival order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsOn returns the recorded calls that targeted device id.
func (r *Recorder) CallsOn(id string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Device == id {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls and pointer positions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.pointers = make(map[string][2]int)
	r.mu.Unlock()
}

func (r *Recorder) record(c Call) error {
	c.At = time.Now()
	if r.Hook != nil {
		if err := r.Hook(c); err != nil {
			return &HardwareInputError{Op: string(c.Op), Device: c.Device, Err: err}
		}
	}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	if c.Op == OpMove {
		r.pointers[c.Device] = [2]int{c.X, c.Y}
	}
	r.mu.Unlock()
	r.logger.Debug("input",
		"op", c.Op,
		"device", c.Device,
		"x", c.X,
		"y", c.Y,
		"key", string(c.Key),
	)
	return nil
}

// MoveMouse implements Input.
func (r *Recorder) MoveMouse(_ context.Context, d Device, duration time.Duration, x, y int) error {
	return r.record(Call{Op: OpMove, Device: d.ID, X: x, Y: y, Duration: duration})
}

// MouseDown implements Input.
func (r *Recorder) MouseDown(_ context.Context, d Device) error {
	return r.record(Call{Op: OpDown, Device: d.ID})
}

// MouseUp implements Input.
func (r *Recorder) MouseUp(_ context.Context, d Device) error {
	return r.record(Call{Op: OpUp, Device: d.ID})
}

// KeyDown implements Input.
func (r *Recorder) KeyDown(_ context.Context, d Device, key rune) error {
	return r.record(Call{Op: OpKeyDown, Device: d.ID, Key: key})
}

// KeyUp implements Input.
func (r *Recorder) KeyUp(_ context.Context, d Device, key rune) error {
	return r.record(Call{Op: OpKeyUp, Device: d.ID, Key: key})
}

// PointerPosition implements Input. A device that never saw a move
// reports its center.
func (r *Recorder) PointerPosition(_ context.Context, d Device) (int, int, error) {
	r.mu.Lock()
	p, ok := r.pointers[d.ID]
	r.mu.Unlock()
	if !ok {
		x, y := d.Center()
		return x, y, nil
	}
	return p[0], p[1], nil
}

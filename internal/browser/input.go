package browser

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/lockstep/internal/device"
)

var errUnknownKey = errors.New("key has no keyboard mapping")

// path returns the pointer positions for a move from "from" to "to". The
// last point is always "to".
func path(from, to proto.Point, duration time.Duration) []proto.Point {
	frames := int(duration / frameInterval)
	if frames < 1 {
		return []proto.Point{to}
	}
	points := make([]proto.Point, 0, frames)
	for i := 1; i <= frames; i++ {
		t := easeInOutQuad(float64(i) / float64(frames))
		points = append(points, proto.Point{
			X: math.Round(from.X + t*(to.X-from.X)),
			Y: math.Round(from.Y + t*(to.Y-from.Y)),
		})
	}
	return points
}

// easeInOutQuad provides smooth acceleration/deceleration
func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - (-2*t+2)*(-2*t+2)/2
}

// keyOp sends one key transition. rod panics for runes outside its key
// table, so that is turned into an error here.
func keyOp(op string, d device.Device, key rune, send func(input.Key) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &device.HardwareInputError{
				Op:     op,
				Device: d.ID,
				Err:    fmt.Errorf("%w: %q", errUnknownKey, key),
			}
		}
	}()
	if err := send(input.Key(key)); err != nil {
		return &device.HardwareInputError{Op: op, Device: d.ID, Err: err}
	}
	return nil
}

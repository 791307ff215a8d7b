package actions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/v0xg/lockstep/internal/device"
)

type wireSequence struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Origin  *wireOrigin       `json:"origin"`
	Actions []json.RawMessage `json:"actions"`
}

type wireAction struct {
	Type     string      `json:"type"`
	Duration *float64    `json:"duration"`
	X        *float64    `json:"x"`
	Y        *float64    `json:"y"`
	Value    *string     `json:"value"`
	Origin   *wireOrigin `json:"origin"`
}

// wireOrigin accepts either a device id string or an object
// {"device": id, "x", "y", "width", "height"}. The W3C keywords
// "viewport" and "pointer" carry no device and decode to nil.
type wireOrigin struct {
	origin *Origin
}

func (w *wireOrigin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "", "viewport", "pointer":
			w.origin = nil
		default:
			w.origin = &Origin{DeviceID: s}
		}
		return nil
	}

	var obj struct {
		Device  json.RawMessage `json:"device"`
		Element string          `json:"element"`
		X       *int            `json:"x"`
		Y       *int            `json:"y"`
		Width   *int            `json:"width"`
		Height  *int            `json:"height"`

		// Rect is set when the origin is a region returned by a child
		// element lookup.
		Rect *device.Rect `json:"rect"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("origin must be a device id or an object")
	}
	id, err := originDeviceID(obj.Device)
	if err != nil {
		return err
	}
	if id == "" {
		id = obj.Element
	}
	if id == "" {
		return errors.New("origin object needs a device")
	}
	if obj.Rect != nil {
		if obj.Rect.Width < 0 || obj.Rect.Height < 0 {
			return errors.New("origin region has negative size")
		}
		r := *obj.Rect
		w.origin = &Origin{DeviceID: id, Region: &r}
		return nil
	}
	o := &Origin{DeviceID: id}
	if obj.X != nil || obj.Y != nil || obj.Width != nil || obj.Height != nil {
		r := device.Rect{X: deref(obj.X), Y: deref(obj.Y), Width: deref(obj.Width), Height: deref(obj.Height)}
		if r.Width < 0 || r.Height < 0 {
			return errors.New("origin region has negative size")
		}
		o.Region = &r
	}
	w.origin = o
	return nil
}

// originDeviceID reads the device of an origin object, given either as
// an id or as a device object {"id": ...}.
func originDeviceID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var d struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", errors.New("origin device must be an id or a device object")
	}
	return d.ID, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Decode parses an Actions batch. The payload is either an object
// {"actions": [...]} or the bare sequence array. Unknown step types are
// kept as Unknown steps; missing or malformed required fields produce a
// *ProtocolError.
func Decode(data []byte) ([]Sequence, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, protocolErr("", "empty batch")
	}

	var raw []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, protocolErr("", "invalid batch: %v", err)
		}
	} else {
		var batch struct {
			Actions *[]json.RawMessage `json:"actions"`
		}
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, protocolErr("", "invalid batch: %v", err)
		}
		if batch.Actions == nil {
			return nil, protocolErr("actions", "missing required field")
		}
		raw = *batch.Actions
	}

	seqs := make([]Sequence, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		path := fmt.Sprintf("actions[%d]", i)
		seq, err := decodeSequence(path, r)
		if err != nil {
			return nil, err
		}
		if seen[seq.ID] {
			return nil, protocolErr(path+".id", "duplicate sequence id %q", seq.ID)
		}
		seen[seq.ID] = true
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

func decodeSequence(path string, raw json.RawMessage) (Sequence, error) {
	var w wireSequence
	if err := json.Unmarshal(raw, &w); err != nil {
		return Sequence{}, protocolErr(path, "%v", err)
	}

	src := SourceType(w.Type)
	switch src {
	case SourcePointer, SourceKey, SourceNone:
	case "":
		return Sequence{}, protocolErr(path+".type", "missing required field")
	default:
		return Sequence{}, protocolErr(path+".type", "unknown source type %q", w.Type)
	}
	if w.ID == "" {
		return Sequence{}, protocolErr(path+".id", "missing required field")
	}

	seq := Sequence{
		ID:      w.ID,
		Source:  src,
		Actions: make([]Action, 0, len(w.Actions)),
	}
	if w.Origin != nil {
		seq.Origin = w.Origin.origin
	}
	for i, r := range w.Actions {
		a, err := decodeAction(fmt.Sprintf("%s.actions[%d]", path, i), r)
		if err != nil {
			return Sequence{}, err
		}
		seq.Actions = append(seq.Actions, a)
	}
	return seq, nil
}

func decodeAction(path string, raw json.RawMessage) (Action, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return Action{}, protocolErr(path, "%v", err)
	}
	if tag.Type == "" {
		return Action{}, protocolErr(path+".type", "missing required field")
	}

	switch Kind(tag.Type) {
	case KindPointerMove, KindPointerDown, KindPointerUp, KindPause, KindKeyDown, KindKeyUp:
	default:
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return Action{}, protocolErr(path, "%v", err)
		}
		return Action{Step: Unknown{Type: tag.Type, Raw: m}}, nil
	}

	var w wireAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return Action{}, protocolErr(path, "%v", err)
	}

	var (
		step Step
		err  error
	)
	switch Kind(w.Type) {
	case KindPointerMove:
		step, err = decodePointerMove(path, w)
	case KindPointerDown:
		step = PointerDown{}
	case KindPointerUp:
		step = PointerUp{}
	case KindPause:
		var d time.Duration
		d, err = decodeDuration(path, w.Duration)
		step = Pause{Duration: d}
	case KindKeyDown:
		var k rune
		k, err = decodeKey(path, w.Value)
		step = KeyDown{Key: k}
	case KindKeyUp:
		var k rune
		k, err = decodeKey(path, w.Value)
		step = KeyUp{Key: k}
	}
	if err != nil {
		return Action{}, err
	}

	a := Action{Step: step}
	if w.Origin != nil {
		a.Origin = w.Origin.origin
	}
	return a, nil
}

func decodePointerMove(path string, w wireAction) (Step, error) {
	d, err := decodeDuration(path, w.Duration)
	if err != nil {
		return nil, err
	}
	if w.X == nil {
		return nil, protocolErr(path+".x", "missing required field")
	}
	if w.Y == nil {
		return nil, protocolErr(path+".y", "missing required field")
	}
	x, err := decodeCoordinate(path+".x", *w.X)
	if err != nil {
		return nil, err
	}
	y, err := decodeCoordinate(path+".y", *w.Y)
	if err != nil {
		return nil, err
	}
	return PointerMove{Duration: d, X: x, Y: y}, nil
}

// decodeCoordinate rounds v to a pixel and keeps it within int32.
func decodeCoordinate(path string, v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, protocolErr(path, "must be a finite number")
	}
	r := math.Round(v)
	if r < math.MinInt32 || r > math.MaxInt32 {
		return 0, protocolErr(path, "coordinate %v out of range", v)
	}
	return int(r), nil
}

// maxDurationMillis is the longest duration a step may declare.
const maxDurationMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// decodeDuration reads a millisecond count.
func decodeDuration(path string, ms *float64) (time.Duration, error) {
	if ms == nil {
		return 0, protocolErr(path+".duration", "missing required field")
	}
	if *ms < 0 || math.IsNaN(*ms) || math.IsInf(*ms, 0) {
		return 0, protocolErr(path+".duration", "must be a non-negative number of milliseconds")
	}
	if *ms > maxDurationMillis {
		return 0, protocolErr(path+".duration", "%v milliseconds is out of range", *ms)
	}
	return time.Duration(*ms * float64(time.Millisecond)), nil
}

// decodeKey requires exactly one character after NFC normalization, so a
// base letter plus combining accent counts as one key.
func decodeKey(path string, value *string) (rune, error) {
	if value == nil {
		return 0, protocolErr(path+".value", "missing required field")
	}
	v := norm.NFC.String(*value)
	if utf8.RuneCountInString(v) != 1 {
		return 0, protocolErr(path+".value", "must be a single character, got %q", *value)
	}
	r, _ := utf8.DecodeRuneInString(v)
	return r, nil
}

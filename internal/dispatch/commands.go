package dispatch

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/device"
)

// Capabilities is the value returned by newSession.
type Capabilities struct {
	PlatformName string          `json:"platformName"`
	Devices      []device.Device `json:"devices"`
}

func (d *Dispatcher) newSession(_ context.Context, _ map[string]any) (Response, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Response{}, err
	}
	d.mu.Lock()
	d.sessionID = id.String()
	d.mu.Unlock()

	d.logger.Info("session started", "session", id.String())
	return Response{
		SessionID: id.String(),
		Value: Capabilities{
			PlatformName: "lockstep",
			Devices:      d.registry.Devices(),
		},
	}, nil
}

// sendKeys types every character of every value on the default device,
// pressing and releasing each one.
func (d *Dispatcher) sendKeys(ctx context.Context, params map[string]any) (Response, error) {
	var p struct {
		Value []string `json:"value"`
	}
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	if p.Value == nil {
		return Response{}, &actions.ProtocolError{Path: "value", Reason: "missing required field"}
	}
	dev, err := d.registry.Default()
	if err != nil {
		return Response{}, err
	}
	for _, s := range p.Value {
		for _, r := range s {
			if err := d.input.KeyDown(ctx, dev, r); err != nil {
				return Response{}, hardware("keyDown", dev, err)
			}
			if err := d.input.KeyUp(ctx, dev, r); err != nil {
				return Response{}, hardware("keyUp", dev, err)
			}
		}
	}
	return Response{}, nil
}

type elementParams struct {
	Element *string `json:"element"`
}

func (d *Dispatcher) mouseDown(ctx context.Context, params map[string]any) (Response, error) {
	dev, err := d.elementDevice(params)
	if err != nil {
		return Response{}, err
	}
	if err := d.input.MouseDown(ctx, dev); err != nil {
		return Response{}, hardware("mouseDown", dev, err)
	}
	return Response{}, nil
}

func (d *Dispatcher) mouseUp(ctx context.Context, params map[string]any) (Response, error) {
	dev, err := d.elementDevice(params)
	if err != nil {
		return Response{}, err
	}
	if err := d.input.MouseUp(ctx, dev); err != nil {
		return Response{}, hardware("mouseUp", dev, err)
	}
	return Response{}, nil
}

// elementDevice resolves the "element" parameter, or the default device
// when it is absent.
func (d *Dispatcher) elementDevice(params map[string]any) (device.Device, error) {
	var p elementParams
	if err := decodeParams(params, &p); err != nil {
		return device.Device{}, err
	}
	if p.Element == nil {
		return d.registry.Default()
	}
	return d.registry.Device(*p.Element)
}

// mouseMoveTo supports three forms:
//
//	element + offsets   absolute position in the element's device
//	element             center of the element's device
//	offsets             relative to the pointer on the default device
func (d *Dispatcher) mouseMoveTo(ctx context.Context, params map[string]any) (Response, error) {
	var p struct {
		Element *string  `json:"element"`
		XOffset *float64 `json:"xoffset"`
		YOffset *float64 `json:"yoffset"`
	}
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	hasOffset := p.XOffset != nil || p.YOffset != nil
	if hasOffset && (p.XOffset == nil || p.YOffset == nil) {
		return Response{}, &actions.ProtocolError{Path: "params", Reason: "xoffset and yoffset must be given together"}
	}

	var (
		dev  device.Device
		x, y int
		err  error
	)
	switch {
	case p.Element != nil:
		dev, err = d.registry.Device(*p.Element)
		if err != nil {
			return Response{}, err
		}
		if hasOffset {
			x, y = round(*p.XOffset), round(*p.YOffset)
		} else {
			x, y = dev.Center()
		}
	case hasOffset:
		dev, err = d.registry.Default()
		if err != nil {
			return Response{}, err
		}
		cx, cy, err := d.input.PointerPosition(ctx, dev)
		if err != nil {
			return Response{}, hardware("pointerPosition", dev, err)
		}
		x, y = cx+round(*p.XOffset), cy+round(*p.YOffset)
	default:
		return Response{}, &actions.ProtocolError{Path: "params", Reason: "mouseMoveTo needs an element or offsets"}
	}

	if err := d.input.MoveMouse(ctx, dev, 0, x, y); err != nil {
		return Response{}, hardware("mouseMoveTo", dev, err)
	}
	return Response{}, nil
}

func (d *Dispatcher) findElements(_ context.Context, _ map[string]any) (Response, error) {
	return Response{Value: d.registry.Devices()}, nil
}

type lookupParams struct {
	ID    string `json:"id"`
	Using string `json:"using"`
	Value string `json:"value"`
}

func (d *Dispatcher) findElement(_ context.Context, params map[string]any) (Response, error) {
	var p lookupParams
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	if p.Value == "" {
		return Response{}, &actions.ProtocolError{Path: "value", Reason: "missing required field"}
	}
	dev, err := device.FindScreen(d.registry, p.Value)
	if err != nil {
		return Response{}, err
	}
	return Response{Value: dev}, nil
}

func (d *Dispatcher) findChildElement(_ context.Context, params map[string]any) (Response, error) {
	var p lookupParams
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	if p.ID == "" {
		return Response{}, &actions.ProtocolError{Path: "id", Reason: "missing required field"}
	}
	if p.Using != "" && !strings.EqualFold(p.Using, "xpath") {
		return Response{}, &actions.ProtocolError{Path: "using", Reason: "only xpath lookups are supported"}
	}
	dev, err := d.registry.Device(p.ID)
	if err != nil {
		return Response{}, err
	}
	region, err := device.FindRegion(dev, p.Value)
	if err != nil {
		return Response{}, err
	}
	return Response{Value: region}, nil
}

// runActions decodes an Actions batch and runs it to completion.
func (d *Dispatcher) runActions(ctx context.Context, params map[string]any) (Response, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return Response{}, &actions.ProtocolError{Path: "actions", Reason: err.Error()}
	}
	seqs, err := actions.Decode(data)
	if err != nil {
		return Response{}, err
	}
	report, err := d.coordinator.RunBatch(ctx, seqs)

	d.mu.Lock()
	d.lastReport = report
	d.mu.Unlock()

	if err != nil {
		return Response{}, err
	}
	return Response{}, nil
}

func hardware(op string, dev device.Device, err error) error {
	if device.IsHardwareError(err) {
		return err
	}
	return &device.HardwareInputError{Op: op, Device: dev.ID, Err: err}
}

func round(f float64) int {
	return int(math.Round(f))
}

// Package browser drives Chromium pages through go-rod. Every open page
// is one device: pointer and key primitives are dispatched to that page's
// mouse and keyboard.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/lockstep/internal/device"
)

// frameInterval is the spacing of intermediate pointer positions when a
// move has a duration.
const frameInterval = 16 * time.Millisecond

// Options configures the browser backend
type Options struct {
	// Bin is the Chromium executable; empty looks one up.
	Bin        string
	Headless   bool
	Width      int
	Height     int
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
	// URLs are opened one page each; each page becomes a screen.
	URLs   []string
	Logger *slog.Logger
}

// Browser is a device.Registry and device.Input backed by Chromium pages.
type Browser struct {
	browser *rod.Browser
	pages   []*rod.Page
	devices *device.Static
	logger  *slog.Logger
}

var (
	_ device.Registry = (*Browser)(nil)
	_ device.Input    = (*Browser)(nil)
)

// Launch starts Chromium and opens one page per URL.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.URLs) == 0 {
		opts.URLs = []string{"about:blank"}
	}

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	l := launcher.New().Context(ctx).Bin(bin).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	rb := rod.New().Context(ctx).ControlURL(u)
	if err := rb.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	b := &Browser{browser: rb, logger: opts.Logger}
	devices := make([]device.Device, 0, len(opts.URLs))
	for i, url := range opts.URLs {
		page, err := rb.Page(proto.TargetCreateTarget{URL: url})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open page %s: %w", url, err)
		}
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Width,
			Height:            opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("set viewport on %s: %w", url, err)
		}
		if err := page.WaitLoad(); err != nil {
			b.Close()
			return nil, fmt.Errorf("load %s: %w", url, err)
		}
		b.pages = append(b.pages, page)
		devices = append(devices, device.Device{
			ID:     device.ScreenID(i),
			Bounds: device.Rect{Width: opts.Width, Height: opts.Height},
		})
		b.logger.Debug("page ready", "device", device.ScreenID(i), "url", url)
	}
	b.devices = device.NewStatic(devices...)
	return b, nil
}

// Close cleans up browser resources
func (b *Browser) Close() {
	for _, p := range b.pages {
		_ = p.Close()
	}
	if b.browser != nil {
		_ = b.browser.Close()
	}
}

// Device implements device.Registry.
func (b *Browser) Device(id string) (device.Device, error) {
	return b.devices.Device(id)
}

// Default implements device.Registry. The first page is the default.
func (b *Browser) Default() (device.Device, error) {
	return b.devices.Default()
}

// Devices implements device.Registry.
func (b *Browser) Devices() []device.Device {
	return b.devices.Devices()
}

func (b *Browser) page(d device.Device) (*rod.Page, error) {
	if d.Index < 0 || d.Index >= len(b.pages) {
		return nil, &device.DeviceResolutionError{ID: d.ID, Reason: "no page for device"}
	}
	return b.pages[d.Index], nil
}

// MoveMouse glides the pointer to (x, y) along an eased path lasting
// roughly duration. A zero duration jumps.
func (b *Browser) MoveMouse(ctx context.Context, d device.Device, duration time.Duration, x, y int) error {
	page, err := b.page(d)
	if err != nil {
		return err
	}
	from := page.Mouse.Position()
	for _, p := range path(from, proto.Point{X: float64(x), Y: float64(y)}, duration) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := page.Mouse.MoveTo(p); err != nil {
			return &device.HardwareInputError{Op: "move", Device: d.ID, Err: err}
		}
		if duration > 0 {
			time.Sleep(frameInterval)
		}
	}
	return nil
}

// MouseDown implements device.Input with the left button.
func (b *Browser) MouseDown(_ context.Context, d device.Device) error {
	page, err := b.page(d)
	if err != nil {
		return err
	}
	if err := page.Mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return &device.HardwareInputError{Op: "down", Device: d.ID, Err: err}
	}
	return nil
}

// MouseUp implements device.Input with the left button.
func (b *Browser) MouseUp(_ context.Context, d device.Device) error {
	page, err := b.page(d)
	if err != nil {
		return err
	}
	if err := page.Mouse.Up(proto.InputMouseButtonLeft, 1); err != nil {
		return &device.HardwareInputError{Op: "up", Device: d.ID, Err: err}
	}
	return nil
}

// KeyDown implements device.Input.
func (b *Browser) KeyDown(_ context.Context, d device.Device, key rune) error {
	page, err := b.page(d)
	if err != nil {
		return err
	}
	return keyOp("keyDown", d, key, page.Keyboard.Press)
}

// KeyUp implements device.Input.
func (b *Browser) KeyUp(_ context.Context, d device.Device, key rune) error {
	page, err := b.page(d)
	if err != nil {
		return err
	}
	return keyOp("keyUp", d, key, page.Keyboard.Release)
}

// PointerPosition implements device.Input.
func (b *Browser) PointerPosition(_ context.Context, d device.Device) (int, int, error) {
	page, err := b.page(d)
	if err != nil {
		return 0, 0, err
	}
	p := page.Mouse.Position()
	return int(p.X), int(p.Y), nil
}

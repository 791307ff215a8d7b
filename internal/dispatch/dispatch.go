// Package dispatch translates single commands into device operations. Most
// commands map to one input primitive; "actions" hands a whole batch to
// the executor.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/device"
	"github.com/v0xg/lockstep/internal/executor"
)

// Command names understood by the dispatcher.
const (
	CmdNewSession              = "newSession"
	CmdSendKeysToActiveElement = "sendKeysToActiveElement"
	CmdMouseDown               = "mouseDown"
	CmdMouseUp                 = "mouseUp"
	CmdMouseMoveTo             = "mouseMoveTo"
	CmdFindElements            = "findElements"
	CmdFindElement             = "findElement"
	CmdFindChildElement        = "findChildElement"
	CmdActions                 = "actions"
)

// Command is one incoming request.
type Command struct {
	Name   string         `json:"name" yaml:"name"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Response is the result of a command. Input commands return an empty
// response; lookups set Value.
type Response struct {
	SessionID string `json:"sessionId,omitempty"`
	Value     any    `json:"value,omitempty"`
}

// UnsupportedCommandError is returned for unknown command names when the
// dispatcher runs in strict mode.
type UnsupportedCommandError struct {
	Name string
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("unsupported command %q", e.Name)
}

// IsUnsupportedCommand reports whether err is, or wraps, an
// *UnsupportedCommandError.
func IsUnsupportedCommand(err error) bool {
	var ue *UnsupportedCommandError
	return errors.As(err, &ue)
}

// Options configures a Dispatcher.
type Options struct {
	// Strict rejects unknown commands instead of ignoring them.
	Strict bool
	Logger *slog.Logger
}

type handler func(ctx context.Context, params map[string]any) (Response, error)

// Dispatcher executes commands against one registry and input backend.
type Dispatcher struct {
	registry    device.Registry
	input       device.Input
	coordinator *executor.Coordinator
	opts        Options
	logger      *slog.Logger
	handlers    map[string]handler

	mu        sync.Mutex
	sessionID string
	// lastReport is the report of the most recent actions batch.
	lastReport *executor.Report
}

// New creates a Dispatcher. Batches run on coordinator.
func New(registry device.Registry, input device.Input, coordinator *executor.Coordinator, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Dispatcher{
		registry:    registry,
		input:       input,
		coordinator: coordinator,
		opts:        opts,
		logger:      opts.Logger,
	}
	d.handlers = map[string]handler{
		CmdNewSession:              d.newSession,
		CmdSendKeysToActiveElement: d.sendKeys,
		CmdMouseDown:               d.mouseDown,
		CmdMouseUp:                 d.mouseUp,
		CmdMouseMoveTo:             d.mouseMoveTo,
		CmdFindElements:            d.findElements,
		CmdFindElement:             d.findElement,
		CmdFindChildElement:        d.findChildElement,
		CmdActions:                 d.runActions,
	}
	return d
}

// Execute runs one command and blocks until it is done. An actions
// command returns once the whole batch has executed.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (Response, error) {
	d.logger.Debug("command", "name", cmd.Name)
	h, ok := d.handlers[cmd.Name]
	if !ok {
		if d.opts.Strict {
			return Response{}, &UnsupportedCommandError{Name: cmd.Name}
		}
		d.logger.Debug("ignoring unsupported command", "name", cmd.Name)
		return Response{}, nil
	}
	resp, err := h(ctx, cmd.Params)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return resp, nil
}

// Run executes cmds in order and stops at the first error.
func (d *Dispatcher) Run(ctx context.Context, cmds []Command) ([]Response, error) {
	out := make([]Response, 0, len(cmds))
	for i, cmd := range cmds {
		resp, err := d.Execute(ctx, cmd)
		if err != nil {
			return out, fmt.Errorf("command %d: %w", i, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// SessionID returns the id issued by the last newSession command.
func (d *Dispatcher) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// LastReport returns the report of the most recent actions batch, nil if
// none ran.
func (d *Dispatcher) LastReport() *executor.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReport
}

// decodeParams copies a loosely typed parameter map into a struct.
func decodeParams(params map[string]any, v any) error {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return &actions.ProtocolError{Path: "params", Reason: err.Error()}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &actions.ProtocolError{Path: "params", Reason: err.Error()}
	}
	return nil
}

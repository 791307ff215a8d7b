package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/device"
)

// tick is the proceed signal: the tick number and the barrier the
// sequence must arrive at once its step is done.
type tick struct {
	n    int
	done *barrier
	// extra is how far the tick's bound was stretched for declared
	// durations. The wait for the following tick is stretched as much.
	extra time.Duration
}

// sequenceState is owned by the sequence goroutine.
type sequenceState struct {
	cursor int
	// extra is the stretch of the last tick this sequence took part in.
	extra time.Duration
	// device is the device resolved so far; it carries across steps.
	device           *device.Device
	offsetX, offsetY int
}

// sequenceExecutor advances one sequence, one step per proceed signal.
type sequenceExecutor struct {
	seq      actions.Sequence
	registry device.Registry
	input    device.Input
	opts     Options
	logger   *slog.Logger

	// cancelBatch aborts the whole batch when this executor gives up.
	cancelBatch context.CancelCauseFunc

	proceed   chan tick
	completed atomic.Bool

	state sequenceState

	mu     sync.Mutex
	report SequenceReport
}

func newSequenceExecutor(seq actions.Sequence, registry device.Registry, input device.Input, opts Options, logger *slog.Logger, cancelBatch context.CancelCauseFunc) *sequenceExecutor {
	e := &sequenceExecutor{
		seq:         seq,
		registry:    registry,
		input:       input,
		opts:        opts,
		logger:      logger.With("sequence", seq.ID),
		cancelBatch: cancelBatch,
		// One slot: the coordinator sends at most one tick before the
		// executor arrives at that tick's barrier.
		proceed: make(chan tick, 1),
		report: SequenceReport{
			ID:       seq.ID,
			Length:   seq.Len(),
			ErrIndex: -1,
		},
	}
	if seq.Len() == 0 {
		e.finish()
	}
	return e
}

// run is the sequence goroutine. It signals readiness, then executes one
// step per tick until the steps run out or a wait is aborted.
func (e *sequenceExecutor) run(ctx context.Context, ready *barrier) {
	ready.arrive()
	for !e.completed.Load() {
		t, err := e.await(ctx)
		if err != nil {
			e.abort(err)
			if IsTimeout(err) {
				e.cancelBatch(err)
			}
			return
		}
		e.step(ctx, t)
	}
}

// declared returns the duration the next step asks for: a glide or an
// honored pause. The coordinator calls it between ticks.
func (e *sequenceExecutor) declared() time.Duration {
	e.mu.Lock()
	next := e.report.Steps
	e.mu.Unlock()
	if next >= len(e.seq.Actions) {
		return 0
	}
	switch s := e.seq.Actions[next].Step.(type) {
	case actions.PointerMove:
		return s.Duration
	case actions.Pause:
		if e.opts.HonorPause {
			return s.Duration
		}
	}
	return 0
}

func (e *sequenceExecutor) await(ctx context.Context) (tick, error) {
	var expired <-chan time.Time
	after := e.opts.ProceedTimeout
	if after > 0 {
		after = addBound(after, e.state.extra)
		timer := time.NewTimer(after)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case t := <-e.proceed:
		return t, nil
	case <-ctx.Done():
		return tick{}, ctx.Err()
	case <-expired:
		return tick{}, &TimeoutError{
			Phase:    PhaseProceed,
			Sequence: e.seq.ID,
			After:    after,
		}
	}
}

// step executes the action under the cursor. The deferred block always
// runs, so the tick's barrier sees exactly one arrival from this sequence
// even when the input backend panics.
func (e *sequenceExecutor) step(ctx context.Context, t tick) {
	index := e.state.cursor
	a := e.seq.Actions[index]
	e.state.extra = t.extra
	ev := StepEvent{
		Sequence: e.seq.ID,
		Tick:     t.n,
		Index:    index,
		Kind:     a.Step.Kind(),
		Start:    time.Now(),
	}
	if e.opts.Hooks.StepStarted != nil {
		e.opts.Hooks.StepStarted(ev)
	}

	var (
		dev string
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = &device.HardwareInputError{
				Op:     string(ev.Kind),
				Device: dev,
				Err:    fmt.Errorf("panic: %v", r),
			}
		}
		e.state.cursor++
		e.record(index, a.Step, dev, err)

		ev.Device = dev
		ev.End = time.Now()
		ev.Err = err
		if e.opts.Hooks.StepFinished != nil {
			e.opts.Hooks.StepFinished(ev)
		}
		t.done.arrive()
	}()

	dev, err = e.execute(ctx, index, a)
}

// execute resolves the target device when the step needs one and invokes
// the matching primitive. It returns the id of the device used.
func (e *sequenceExecutor) execute(ctx context.Context, index int, a actions.Action) (string, error) {
	if err := e.applyOrigin(index, a); err != nil {
		return "", err
	}

	if !actions.NeedsDevice(a.Step) {
		switch s := a.Step.(type) {
		case actions.Pause:
			if e.opts.HonorPause && s.Duration > 0 {
				return "", sleep(ctx, s.Duration)
			}
			return "", nil
		case actions.Unknown:
			return "", &actions.UnsupportedActionError{Sequence: e.seq.ID, Index: index, Type: s.Type}
		}
	}

	d, err := e.target()
	if err != nil {
		return "", err
	}

	switch s := a.Step.(type) {
	case actions.PointerMove:
		err = e.input.MoveMouse(ctx, d, s.Duration, e.state.offsetX+s.X, e.state.offsetY+s.Y)
	case actions.PointerDown:
		err = e.input.MouseDown(ctx, d)
	case actions.PointerUp:
		err = e.input.MouseUp(ctx, d)
	case actions.KeyDown:
		err = e.input.KeyDown(ctx, d, s.Key)
	case actions.KeyUp:
		err = e.input.KeyUp(ctx, d, s.Key)
	default:
		err = &actions.UnsupportedActionError{Sequence: e.seq.ID, Index: index, Type: string(a.Step.Kind())}
	}
	if err != nil && !device.IsHardwareError(err) && !actions.IsUnsupportedAction(err) {
		err = &device.HardwareInputError{Op: string(a.Step.Kind()), Device: d.ID, Err: err}
	}
	return d.ID, err
}

// applyOrigin updates the carried device and offset when the action, or
// the sequence for its first action, names an origin.
func (e *sequenceExecutor) applyOrigin(index int, a actions.Action) error {
	o := a.Origin
	if o == nil && index == 0 {
		o = e.seq.Origin
	}
	if o == nil {
		return nil
	}
	d, err := e.registry.Device(o.DeviceID)
	if err != nil {
		return asResolutionError(o.DeviceID, err)
	}
	e.state.device = &d
	e.state.offsetX, e.state.offsetY = o.Offset()
	return nil
}

// target returns the carried device, falling back to the registry
// default. A default found here is carried from then on.
func (e *sequenceExecutor) target() (device.Device, error) {
	if e.state.device != nil {
		return *e.state.device, nil
	}
	d, err := e.registry.Default()
	if err != nil {
		return device.Device{}, asResolutionError("", err)
	}
	e.state.device = &d
	return d, nil
}

func asResolutionError(id string, err error) error {
	if device.IsResolutionError(err) {
		return err
	}
	return &device.DeviceResolutionError{ID: id, Reason: err.Error()}
}

// record classifies the outcome of a step. Resolution failures end the
// sequence; input failures and unsupported steps do not.
func (e *sequenceExecutor) record(index int, step actions.Step, dev string, err error) {
	log := e.logger.With("index", index, "kind", step.Kind(), "device", dev)

	e.mu.Lock()
	e.report.Steps++
	switch {
	case err == nil:
		log.Debug("step done")
	case actions.IsUnsupportedAction(err):
		e.report.Skipped++
		log.Debug("step skipped", "error", err)
	case device.IsResolutionError(err):
		e.report.Err = err
		e.report.ErrIndex = index
		log.Error("device resolution failed, stopping sequence", "error", err)
	default:
		e.report.Failures = append(e.report.Failures, StepFailure{Index: index, Err: err})
		log.Warn("step failed", "error", err)
	}
	stop := e.report.Err != nil || e.state.cursor >= e.seq.Len()
	e.mu.Unlock()

	if stop {
		e.finish()
	}
}

func (e *sequenceExecutor) abort(err error) {
	e.mu.Lock()
	if e.report.Err == nil {
		e.report.Err = err
		e.report.ErrIndex = e.state.cursor
	}
	e.mu.Unlock()
	if IsTimeout(err) {
		e.logger.Warn("sequence aborted", "error", err)
	} else {
		e.logger.Debug("sequence aborted", "error", err)
	}
	e.finish()
}

func (e *sequenceExecutor) finish() {
	e.mu.Lock()
	e.report.Completed = true
	e.mu.Unlock()
	e.completed.Store(true)
}

func (e *sequenceExecutor) snapshot() SequenceReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.report
	r.Failures = append([]StepFailure(nil), e.report.Failures...)
	return r
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

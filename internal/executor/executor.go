package executor

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/v0xg/lockstep/internal/actions"
	"github.com/v0xg/lockstep/internal/device"
)

// Coordinator runs action batches against one registry and input backend.
// A Coordinator holds no per-batch state, so concurrent RunBatch calls do
// not share barriers or signals.
type Coordinator struct {
	registry device.Registry
	input    device.Input
	opts     Options
}

// New creates a Coordinator. It fails when the wait bounds are
// inconsistent.
func New(registry device.Registry, input device.Input, opts Options) (*Coordinator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		registry: registry,
		input:    input,
		opts:     opts.withDefaults(),
	}, nil
}

// RunBatch executes seqs in tick lockstep and returns once every sequence
// is completed.
//
// Step failures do not fail the batch. The returned error is a
// *TimeoutError or a context error when a wait was aborted, in which case
// the report is partial, or a *BatchError when no sequence could resolve
// a device for its first step.
func (c *Coordinator) RunBatch(ctx context.Context, seqs []actions.Sequence) (*Report, error) {
	batchID := newBatchID()
	logger := c.opts.Logger.With("batch", batchID)
	report := &Report{BatchID: batchID}

	// Cancelled with the abort cause, so an executor that gives up
	// waiting stops the coordinator too.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	executors := make([]*sequenceExecutor, len(seqs))
	for i, seq := range seqs {
		executors[i] = newSequenceExecutor(seq, c.registry, c.input, c.opts, logger, cancel)
	}

	logger.Info("batch started", "sequences", len(seqs))
	start := time.Now()

	var wg sync.WaitGroup
	ready := newBarrier(len(executors))
	for _, e := range executors {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.run(ctx, ready)
		}()
	}

	// finish collects the per-sequence reports. After an abort it does not
	// wait for executors stuck inside an input call; they exit on their
	// own once the call returns.
	finish := func(err error) (*Report, error) {
		if err != nil {
			cancel(err)
		} else {
			wg.Wait()
		}
		report.Sequences = make([]SequenceReport, len(executors))
		for i, e := range executors {
			report.Sequences[i] = e.snapshot()
		}
		return report, err
	}

	if err := ready.wait(ctx, c.opts.StartupTimeout); err != nil {
		err = waitError(ctx, err, &TimeoutError{
			Phase:   PhaseStartup,
			Pending: pendingIDs(executors, func(e *sequenceExecutor) bool { return true }),
			After:   c.opts.StartupTimeout,
		})
		logger.Error("batch aborted during startup", "error", err)
		return finish(err)
	}

	for {
		active := activeExecutors(executors)
		if len(active) == 0 {
			break
		}
		report.Ticks++
		n := report.Ticks

		bound, extra := c.tickBound(active)
		done := newBarrier(len(active))
		for _, e := range active {
			e.proceed <- tick{n: n, done: done, extra: extra}
		}

		if err := done.wait(ctx, bound); err != nil {
			err = waitError(ctx, err, &TimeoutError{
				Phase: PhaseTick,
				Tick:  n,
				Pending: pendingIDs(active, func(e *sequenceExecutor) bool {
					return e.snapshot().Steps < n
				}),
				After: bound,
			})
			logger.Error("batch aborted", "tick", n, "error", err)
			return finish(err)
		}
		logger.Debug("tick done", "tick", n, "active", len(active))
	}

	report, _ = finish(nil)

	failed := report.Failed()
	logger.Info("batch finished",
		"ticks", report.Ticks,
		"sequences", len(report.Sequences),
		"failed", len(failed),
		"elapsed", time.Since(start),
	)
	if err := batchError(report); err != nil {
		logger.Error("batch failed", "error", err)
		return report, err
	}
	return report, nil
}

// tickBound returns the wait bound of the next tick and the part of it
// that comes from declared step durations.
func (c *Coordinator) tickBound(active []*sequenceExecutor) (time.Duration, time.Duration) {
	var extra time.Duration
	for _, e := range active {
		extra = max(extra, e.declared())
	}
	if c.opts.StepTimeout <= 0 {
		return c.opts.StepTimeout, extra
	}
	return addBound(c.opts.StepTimeout, extra), extra
}

// addBound extends a positive bound by d, saturating on overflow.
func addBound(bound, d time.Duration) time.Duration {
	if d > math.MaxInt64-bound {
		return math.MaxInt64
	}
	return bound + d
}

func activeExecutors(executors []*sequenceExecutor) []*sequenceExecutor {
	var active []*sequenceExecutor
	for _, e := range executors {
		if !e.completed.Load() {
			active = append(active, e)
		}
	}
	return active
}

func pendingIDs(executors []*sequenceExecutor, pending func(*sequenceExecutor) bool) []string {
	var ids []string
	for _, e := range executors {
		if pending(e) {
			ids = append(ids, e.seq.ID)
		}
	}
	return ids
}

// waitError maps a barrier failure to the error that caused it: the
// barrier's own timeout, an executor's timeout, or the caller's context.
func waitError(ctx context.Context, err error, timeout *TimeoutError) error {
	if errors.Is(err, errBarrierExpired) {
		return timeout
	}
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}

// batchError returns a *BatchError when every non-empty sequence failed
// device resolution on its first step.
func batchError(r *Report) error {
	var failures []SequenceFailure
	nonEmpty := 0
	for _, s := range r.Sequences {
		if s.Length == 0 {
			continue
		}
		nonEmpty++
		if s.ErrIndex == 0 && device.IsResolutionError(s.Err) {
			failures = append(failures, SequenceFailure{Sequence: s.ID, Err: s.Err})
		}
	}
	if nonEmpty == 0 || len(failures) < nonEmpty {
		return nil
	}
	return &BatchError{Failures: failures}
}

func newBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

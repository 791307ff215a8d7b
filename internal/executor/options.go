package executor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/v0xg/lockstep/internal/actions"
)

// Default wait bounds.
const (
	DefaultStartupTimeout = 5 * time.Second
	DefaultStepTimeout    = 30 * time.Second
	DefaultProceedTimeout = 60 * time.Second
)

// Options configures execution behavior
type Options struct {
	// StartupTimeout bounds the wait for every sequence goroutine to
	// become ready. Zero selects DefaultStartupTimeout; negative disables
	// the bound.
	StartupTimeout time.Duration

	// StepTimeout bounds one tick: the wait for every active sequence to
	// finish its step. The bound of a tick is extended by the longest
	// duration its steps declare. Negative waits without bound.
	StepTimeout time.Duration

	// ProceedTimeout bounds how long an idle sequence waits for its next
	// proceed signal before giving up. It must exceed StepTimeout, since
	// the wait covers the slowest sibling's step. It is disabled when
	// StepTimeout is negative.
	ProceedTimeout time.Duration

	// HonorPause makes pause steps sleep for their duration. When false a
	// pause only occupies its tick.
	HonorPause bool

	Logger *slog.Logger
	Hooks  Hooks
}

// Hooks observe step execution. They are called from sequence goroutines
// and must be safe for concurrent use.
type Hooks struct {
	StepStarted  func(StepEvent)
	StepFinished func(StepEvent)
}

// StepEvent describes one step execution.
type StepEvent struct {
	Sequence string
	Tick     int
	Index    int
	Kind     actions.Kind
	// Device is the resolved device id, empty for steps that need none.
	Device string
	Start  time.Time
	// End and Err are only set for StepFinished.
	End time.Time
	Err error
}

func (o Options) withDefaults() Options {
	o.StartupTimeout = orDefault(o.StartupTimeout, DefaultStartupTimeout)
	o.StepTimeout = orDefault(o.StepTimeout, DefaultStepTimeout)
	o.ProceedTimeout = orDefault(o.ProceedTimeout, DefaultProceedTimeout)
	if o.StepTimeout < 0 {
		o.ProceedTimeout = -1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Validate checks the wait bounds after defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.StepTimeout > 0 && o.ProceedTimeout > 0 && o.ProceedTimeout <= o.StepTimeout {
		return fmt.Errorf("proceed timeout %s must exceed step timeout %s", o.ProceedTimeout, o.StepTimeout)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

// Report summarizes a batch run.
type Report struct {
	BatchID   string
	Ticks     int
	Sequences []SequenceReport
}

// Failed returns the reports of sequences that recorded any error.
func (r *Report) Failed() []SequenceReport {
	var out []SequenceReport
	for _, s := range r.Sequences {
		if s.Err != nil || len(s.Failures) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// SequenceReport summarizes one sequence.
type SequenceReport struct {
	ID string
	// Length is the number of steps the sequence declared.
	Length int
	// Steps counts consumed steps, including failed and skipped ones.
	Steps   int
	Skipped int
	// Failures lists steps whose input call failed; the sequence went on.
	Failures []StepFailure
	// Err is the error that ended the sequence early: a device
	// resolution failure or an aborted wait.
	Err error
	// ErrIndex is the step at which Err occurred, -1 if none.
	ErrIndex int
	Completed bool
}

// StepFailure records one failed step.
type StepFailure struct {
	Index int
	Err   error
}

package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Phase names the wait that timed out.
type Phase string

const (
	PhaseStartup Phase = "startup"
	PhaseTick    Phase = "tick"
	PhaseProceed Phase = "proceed"
)

// TimeoutError reports a bounded wait that expired.
type TimeoutError struct {
	Phase Phase
	// Tick is the tick being waited on, zero during startup.
	Tick int
	// Sequence is set for proceed timeouts, which are observed by a
	// single sequence.
	Sequence string
	// Pending lists the sequences that had not arrived.
	Pending []string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wait timed out after %s", e.Phase, e.After)
	if e.Tick > 0 {
		fmt.Fprintf(&b, " (tick %d)", e.Tick)
	}
	if e.Sequence != "" {
		fmt.Fprintf(&b, " in sequence %s", e.Sequence)
	}
	if len(e.Pending) > 0 {
		fmt.Fprintf(&b, ", pending: %s", strings.Join(e.Pending, ","))
	}
	return b.String()
}

// BatchError reports a batch in which no sequence could resolve a device
// for its first step.
type BatchError struct {
	Failures []SequenceFailure
}

// SequenceFailure pairs a sequence id with the error that stopped it.
type SequenceFailure struct {
	Sequence string
	Err      error
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Sequence, f.Err)
	}
	return fmt.Sprintf("batch failed, no sequence resolved a device: %s", strings.Join(parts, "; "))
}

// Unwrap exposes the per-sequence causes to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsBatchError reports whether err is, or wraps, a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

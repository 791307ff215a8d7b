package actions

import (
	"errors"
	"fmt"
)

// ProtocolError reports a malformed batch or a step missing a required
// field. It fails the whole enclosing command.
type ProtocolError struct {
	// Path locates the offending value, e.g. "actions[1].actions[0].x".
	Path   string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("protocol error: %s", e.Reason)
	}
	return fmt.Sprintf("protocol error at %s: %s", e.Path, e.Reason)
}

// UnsupportedActionError describes a step whose type is not supported.
// Executors log it and move on; it is never fatal.
type UnsupportedActionError struct {
	Sequence string
	Index    int
	Type     string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("sequence %s step %d: unsupported action type %q", e.Sequence, e.Index, e.Type)
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsUnsupportedAction reports whether err is, or wraps, an
// *UnsupportedActionError.
func IsUnsupportedAction(err error) bool {
	var ue *UnsupportedActionError
	return errors.As(err, &ue)
}

func protocolErr(path, format string, args ...any) *ProtocolError {
	return &ProtocolError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Package errorsx attaches machine-readable reason codes to errors so the
// client can tell connectivity failures from application errors without
// matching message strings.
package errorsx

import "errors"

// ReasonedError pairs an error with a reason code. The wrapped error stays
// reachable through Unwrap, so errors.Is/As keep working on the chain.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e ReasonedError) Unwrap() error { return e.Err }

// Wrap attaches a reason code to err. An error that already carries a reason
// keeps it; use Rewrap when a higher layer needs to replace the reason.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if Reason(err) != ReasonUnknown {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Rewrap attaches a reason code to err, replacing any reason already present.
// The previous reasoned error remains in the chain for unwrapping.
func Rewrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Reason extracts the outermost reason code from an error chain, or
// ReasonUnknown when none is present.
func Reason(err error) ReasonCode {
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether the error chain carries the given reason.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

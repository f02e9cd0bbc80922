package telephony

import (
	"context"
	"errors"
	"net"
)

// ErrClosed is returned by action methods after the client has been closed.
var ErrClosed = errors.New("telephony: client is closed")

// FatalError marks a telephony failure that cannot be retried: the channel is
// gone or the platform rejected the action outright. Wrap platform errors in
// FatalError when the REST layer reports a 4xx status.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "telephony: fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a non-retryable telephony failure. Anything
// not fatal is treated as transient: the caller may retry the specific action
// once before failing the call.
func IsFatal(err error) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	return errors.Is(err, ErrClosed)
}

// IsTransient reports whether err looks like a retryable transport failure
// (timeouts, temporary network errors, cancelled deadlines excluded).
func IsTransient(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return true
}

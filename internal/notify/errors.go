package notify

import "errors"

var (
	// ErrClosed is returned when subscribing to a hub that has shut down.
	ErrClosed = errors.New("notify: closed")

	errFilterNotBool = errors.New("notify: filter must evaluate to bool")
)

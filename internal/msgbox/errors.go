package msgbox

import "errors"

var (
	// ErrNotFound covers absent and unauthorized channels, tokens, and messages.
	ErrNotFound = errors.New("msgbox: not found")
	// ErrChannelLocked rejects writes to an administratively frozen channel.
	ErrChannelLocked = errors.New("msgbox: channel locked")
	// ErrSequencingFailure rejects a write while the sender has unread messages
	// on a sequenced channel.
	ErrSequencingFailure = errors.New("msgbox: sequencing failure")
	// ErrInternalWrite means a write did not produce the expected rows.
	ErrInternalWrite = errors.New("msgbox: internal write failure")
	// ErrInvalidRetention rejects a retention policy with min > max.
	ErrInvalidRetention = errors.New("msgbox: invalid retention policy")
)

package alert

import "errors"

var (
	// ErrIncompleteConfig is returned when a channel is built without the
	// settings it needs. Callers skip the channel.
	ErrIncompleteConfig = errors.New("alert channel configuration is incomplete")

	// ErrNoRecipients is returned when an email channel has no usable address.
	ErrNoRecipients = errors.New("no email recipients")
)

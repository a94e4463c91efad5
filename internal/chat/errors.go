package chat

import "errors"

var (
	// ErrEmptyMessage indicates a message with no text
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrNotConnected indicates no transport is attached to the outbox
	ErrNotConnected = errors.New("chat is not connected")
)

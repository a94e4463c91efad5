package bootstrap

import "errors"

var (
	// ErrFetch indicates the session token could not be fetched
	ErrFetch = errors.New("session token fetch failed")

	// ErrTransport indicates the transport could not be built or connected
	ErrTransport = errors.New("transport connect failed")
)

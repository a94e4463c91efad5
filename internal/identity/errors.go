package identity

import "errors"

// Common errors returned by the identity session
var (
	// ErrAuth indicates interactive sign-in was cancelled or rejected by the provider
	ErrAuth = errors.New("interactive sign-in failed")

	// ErrNoPrincipal indicates no signed-in account is cached
	ErrNoPrincipal = errors.New("no signed-in principal")

	// ErrSilentAcquisition indicates a token could not be obtained without user interaction
	ErrSilentAcquisition = errors.New("silent token acquisition failed")

	// ErrUnknownLoginMode indicates an unsupported interactive login mode
	ErrUnknownLoginMode = errors.New("unknown login mode")
)

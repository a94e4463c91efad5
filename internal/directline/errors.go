package directline

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTokenExpired indicates the channel rejected the conversation token
	ErrTokenExpired = errors.New("direct line token expired")

	// ErrClosed indicates the connection was closed
	ErrClosed = errors.New("direct line connection closed")

	// ErrNotConnected indicates no conversation has been started
	ErrNotConnected = errors.New("direct line not connected")

	// ErrAlreadyConnected indicates Connect was called twice
	ErrAlreadyConnected = errors.New("direct line already connected")

	// ErrNoToken indicates the client has no bearer token
	ErrNoToken = errors.New("no direct line token")
)

// PostError is returned when the channel rejects a request
type PostError struct {
	StatusCode int
	Body       string
}

func (e *PostError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("direct line request rejected: status %d", e.StatusCode)
	}
	return fmt.Sprintf("direct line request rejected: status %d: %s", e.StatusCode, e.Body)
}

// FetchError is returned when a JSON fetch fails. StatusCode is zero for
// network and decoding failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the fetch may succeed
func (e *FetchError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

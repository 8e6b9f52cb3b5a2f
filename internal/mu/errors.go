package mu

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned once the client has been closed or the server
	// process has gone away.
	ErrClosed = errors.New("mu server session closed")

	// ErrIndexing is returned when an operation is attempted while an index
	// run is still being observed. Only one request may be outstanding.
	ErrIndexing = errors.New("indexing in progress")

	// ErrNotIndexing is returned by PollIndexFrame when no index run was
	// started.
	ErrNotIndexing = errors.New("no index run in progress")
)

// ServerError is an error frame reported by the server. The session stays
// usable after one of these.
type ServerError struct {
	Text string
}

func (e *ServerError) Error() string {
	return "mu: " + e.Text
}

// IsServerError reports whether err wraps a *ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// ParseError is a framing or decoding failure. The stream is considered
// desynchronized after one.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// UnexpectedResponseError is returned when a well-formed frame of the wrong
// kind arrives, e.g. anything other than a pong during the handshake.
type UnexpectedResponseError struct {
	Want string
	Got  string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("expected %s response, got %s", e.Want, e.Got)
}

package visa

import "errors"

var (
	// ErrResourceNotFound is returned when no discovered resource matches a search expression
	ErrResourceNotFound = errors.New("resource not found")

	// ErrTimeout is returned when an instrument does not answer within the session timeout
	ErrTimeout = errors.New("timeout waiting for instrument")

	// ErrMalformedBlock is returned when a binary block response cannot be parsed
	ErrMalformedBlock = errors.New("malformed binary block")

	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("session is closed")

	// ErrUnsupported is returned when a resource interface is not available on this platform
	ErrUnsupported = errors.New("interface not supported on this platform")
)

package eventstream

import "errors"

var (
	// ErrNilCompletionEvent indicates a nil event was handed to a publisher.
	ErrNilCompletionEvent = errors.New("nil completion event")

	// ErrPublisherClosed is returned when publishing after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)

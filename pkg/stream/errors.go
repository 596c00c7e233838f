package stream

import (
	"errors"
	"fmt"
)

// ErrNilTransport is returned when Run is handed a response without a body.
var ErrNilTransport = errors.New("response has no body transport")

// APIError is a well-formed but non-successful HTTP response. Its message is
// also what the driver emits as the Error event.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, e.Body)
}

package llm

import "fmt"

// EventKind is the discriminator of a StreamEvent. The set is closed: Token,
// Done and Error are the only kinds a stream ever produces.
type EventKind string

const (
	// EventToken carries one incremental text fragment.
	EventToken EventKind = "Token"

	// EventDone carries the full accumulated response text. It is terminal.
	EventDone EventKind = "Done"

	// EventError carries a human-readable diagnostic. It is terminal.
	EventError EventKind = "Error"
)

// StreamEvent is what a decode loop hands to its consumer.
//
// The JSON form is {"type":"Token","data":"..."}, the shape GUI and HTTP
// consumers switch on.
type StreamEvent struct {
	Type EventKind `json:"type"`
	Data string    `json:"data"`
}

// TokenEvent returns a Token event for text.
func TokenEvent(text string) StreamEvent {
	return StreamEvent{Type: EventToken, Data: text}
}

// DoneEvent returns a terminal Done event carrying the full response.
func DoneEvent(full string) StreamEvent {
	return StreamEvent{Type: EventDone, Data: full}
}

// ErrorEvent returns a terminal Error event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Data: message}
}

// Terminal reports whether no further events follow e.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Validate rejects kinds outside the closed set.
func (e StreamEvent) Validate() error {
	switch e.Type {
	case EventToken, EventDone, EventError:
		return nil
	default:
		return fmt.Errorf("unknown stream event type %q", e.Type)
	}
}

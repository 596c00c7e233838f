// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// line decoder for chat-completion streams. It splits an arbitrarily chunked
// byte stream into lines and classifies each line as a data frame, the
// "[DONE]" terminator, or something to ignore.
//
// Only the subset of the SSE grammar used by OpenAI-compatible completion
// endpoints is understood: "data:" records and ":" comments. Every other
// field ("event:", "id:", "retry:") is ignored rather than rejected.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Kind classifies a single line of an SSE stream.
type Kind int

const (
	// KindIgnore covers blank lines, comments, unknown fields and empty
	// data records.
	KindIgnore Kind = iota

	// KindData is a "data:" record carrying a non-empty payload.
	KindData

	// KindTerminator is the "data: [DONE]" sentinel that ends a completion.
	KindTerminator
)

// String returns the kind name, used in logs and test failure output.
func (k Kind) String() string {
	switch k {
	case KindIgnore:
		return "ignore"
	case KindData:
		return "data"
	case KindTerminator:
		return "terminator"
	default:
		return "unknown"
	}
}

// Line is a classified SSE line.
type Line struct {
	Kind Kind

	// Payload is the trimmed remainder of a "data:" record. It is only set
	// for KindData.
	Payload string
}

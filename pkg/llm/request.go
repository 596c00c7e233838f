package llm

import "slices"

// ChatRequest is the outbound body of a streaming chat completion.
//
// Stream is always true: this module only speaks the SSE variant of the
// protocol. Temperature is optional and omitted from the JSON when nil.
type ChatRequest struct {
	// Model name (e.g., "sonar", "sonar-pro")
	Model string `json:"model"`

	// Conversation messages, oldest first
	Messages []Message `json:"messages"`

	// Whether to stream the response
	Stream bool `json:"stream"`

	// Sampling temperature
	Temperature *float64 `json:"temperature,omitempty"`
}

// NewChatRequest builds a streaming request. The message slice is copied so
// later changes by the caller do not leak into a request already in flight.
func NewChatRequest(model string, messages []Message, temperature *float64) *ChatRequest {
	req := &ChatRequest{
		Model:    model,
		Messages: slices.Clone(messages),
		Stream:   true,
	}

	if temperature != nil {
		t := *temperature
		req.Temperature = &t
	}

	return req
}

// Float64 returns a pointer to v, for optional request parameters.
func Float64(v float64) *float64 {
	return &v
}

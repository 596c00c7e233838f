package llm

import (
	"encoding/json"
	"errors"
)

// ErrEmptyPayload is returned by DecodeStreamChunk for a zero-length payload.
var ErrEmptyPayload = errors.New("empty stream chunk payload")

// StreamChunk is one decoded "data:" frame of a streaming completion.
// Only the fields this module consumes are declared; everything else in the
// provider's payload (id, model, citations, usage, ...) is ignored.
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is a single entry of a chunk's choices array.
type StreamChoice struct {
	Delta        *StreamDelta `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason,omitempty"`
}

// StreamDelta carries the incremental content of a choice.
type StreamDelta struct {
	Content *string `json:"content,omitempty"`
}

// DecodeStreamChunk parses a frame payload. A payload that is not a JSON
// object of the expected shape yields an error; callers skip such frames.
func DecodeStreamChunk(payload []byte) (*StreamChunk, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var chunk StreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}

	return &chunk, nil
}

// Fragments returns the non-empty delta contents of every choice, in choice
// order.
func (c *StreamChunk) Fragments() []string {
	if c == nil {
		return nil
	}

	var out []string
	for _, choice := range c.Choices {
		if choice.Delta == nil || choice.Delta.Content == nil {
			continue
		}
		if text := *choice.Delta.Content; text != "" {
			out = append(out, text)
		}
	}
	return out
}

// FinishReason returns the first finish reason reported by any choice, or ""
// when the chunk carries none.
func (c *StreamChunk) FinishReason() string {
	if c == nil {
		return ""
	}

	for _, choice := range c.Choices {
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			return *choice.FinishReason
		}
	}
	return ""
}

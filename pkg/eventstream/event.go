package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/utils"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionFinished is emitted after a completion stream ends
	// with Done.
	EventTypeCompletionFinished = "mdpilot.completion.finished"

	// previewLen caps PromptPreview, in runes.
	previewLen = 200
)

// CompletionEvent is a transport-neutral payload for a finished completion.
type CompletionEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	Request       CompletionMeta `json:"request"`
	Content       string         `json:"content"`
}

// EventSource identifies where the completion was requested.
type EventSource struct {
	// Origin is the command or surface, e.g. "ask", "chat", "serve".
	Origin    string `json:"origin"`
	SessionID string `json:"session_id,omitempty"`
	File      string `json:"file,omitempty"`
}

// CompletionMeta describes the request that produced the completion.
type CompletionMeta struct {
	Model         string    `json:"model"`
	Temperature   *float64  `json:"temperature,omitempty"`
	Messages      int       `json:"messages"`
	PromptChars   int       `json:"prompt_chars"`
	PromptPreview string    `json:"prompt_preview"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    int64     `json:"duration_ms"`
}

// NewCompletionEvent builds an event for req's answer content, stamped at
// now with a fresh event ID.
func NewCompletionEvent(src EventSource, req *llm.ChatRequest, content string, startedAt, now time.Time) *CompletionEvent {
	meta := CompletionMeta{
		StartedAt:  startedAt,
		DurationMs: now.Sub(startedAt).Milliseconds(),
	}

	if req != nil {
		meta.Model = req.Model
		meta.Temperature = req.Temperature
		meta.Messages = len(req.Messages)
		meta.PromptChars = llm.TotalChars(req.Messages)
		if n := len(req.Messages); n > 0 {
			meta.PromptPreview = utils.Truncate(utils.FirstLine(req.Messages[n-1].Content), previewLen)
		}
	}

	return &CompletionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompletionFinished,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Source:        src,
		Request:       meta,
		Content:       content,
	}
}

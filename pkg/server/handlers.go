package server

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/prompt"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Prompt string `json:"prompt"`

	// Files are attached below the prompt.
	Files []File `json:"files,omitempty"`

	// History is earlier conversation; only complete user/assistant pairs
	// are sent on.
	History []llm.Message `json:"history,omitempty"`

	// SessionID is copied to published events.
	SessionID string `json:"session_id,omitempty"`

	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// File is an attached document.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ErrorResponse is the body of every non-streaming error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChat streams one completion as SSE records, one StreamEvent per
// "data:" line. The stream always ends with a Done or Error event.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var body ChatRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(body.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "prompt is required"})
	}

	backend, model, temperature := s.current()
	if backend == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no API key configured"})
	}
	if body.Model != "" {
		model = body.Model
	}
	if body.Temperature != nil {
		temperature = body.Temperature
	}

	attachments := make([]prompt.Attachment, len(body.Files))
	for i, f := range body.Files {
		attachments[i] = prompt.Attachment{Name: f.Name, Content: f.Content}
	}
	req := llm.NewChatRequest(model, prompt.Build(body.Prompt, attachments, body.History), temperature)

	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Session-Id", sessionID)

	// io.Pipe gives per-event backpressure and flushing; fasthttp recycles the
	// request context after the handler returns, so the stream runs on its
	// own context and stops when the client stops reading.
	pr, pw := io.Pipe()
	go s.streamChat(backend, req, sessionID, pw)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) streamChat(backend Streamer, req *llm.ChatRequest, sessionID string, pw *io.PipeWriter) {
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &eventWriter{w: pw, cancel: cancel}
	var sink stream.Sink = w
	if s.publisher != nil {
		sink = stream.MultiSink(w, eventstream.NewSink(s.publisher,
			eventstream.EventSource{Origin: "serve", SessionID: sessionID},
			req,
			eventstream.WithSinkLogger(s.logger),
		))
	}

	s.logger.Info("chat stream started",
		"session_id", sessionID,
		"model", req.Model,
	)

	content, err := backend.StreamChat(ctx, req, sink)
	if err != nil && !w.terminated() {
		// Transport failures end without an event from the driver; the
		// client still needs one.
		w.Send(llm.ErrorEvent(err.Error()))
	}

	s.logger.Info("chat stream finished",
		"session_id", sessionID,
		"content_chars", len(content),
		"error", err,
	)
}

// eventWriter encodes events as SSE records onto the response pipe.
type eventWriter struct {
	w      io.Writer
	cancel context.CancelFunc

	mu     sync.Mutex
	failed bool
	done   bool
}

func (e *eventWriter) Send(ev llm.StreamEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failed {
		return
	}
	if ev.Terminal() {
		e.done = true
	}

	data, err := json.Marshal(ev)
	if err == nil {
		_, err = io.WriteString(e.w, "data: "+string(data)+"\n\n")
	}
	if err != nil {
		// The client went away.
		e.failed = true
		e.cancel()
	}
}

func (e *eventWriter) terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done || e.failed
}

// Package stream turns a chat-completion SSE response into an ordered
// sequence of Token, Done and Error events.
//
//	┌───────────┐  chunks  ┌─────────────┐  lines  ┌──────────┐  payload  ┌──────────────┐
//	│ Transport │─────────▶│ sse.Decoder │────────▶│ Classify │──────────▶│ DecodeStream │
//	└───────────┘          └─────────────┘         └──────────┘           │    Chunk     │
//	                                                                       └──────┬───────┘
//	                                                               fragments      │
//	                                                      ┌──────────┐           │
//	                                                      │   Sink   │◀──────────┘
//	                                                      └──────────┘
//
// One Driver.Run call owns its buffer and accumulator for the lifetime of a
// single response; concurrent runs share nothing.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/logger"
	"github.com/papercomputeco/mdpilot/pkg/sse"
)

// maxErrorBody caps how much of a non-success response body is read for the
// diagnostic message.
const maxErrorBody = 64 * 1024

// State is a step of the decode state machine.
type State int

const (
	StateRequesting State = iota
	StateStreaming
	StateFinished
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Driver runs the decode loop.
type Driver struct {
	logger *slog.Logger
}

// NewDriver creates a Driver. A nil logger discards log output.
func NewDriver(l *slog.Logger) *Driver {
	return &Driver{logger: logger.OrNop(l)}
}

// run is the per-response state of one Run call.
type run struct {
	ctx     context.Context
	sink    Sink
	logger  *slog.Logger
	state   State
	decoder *sse.Decoder
	content strings.Builder

	tokens  int
	skipped int
}

// Run consumes resp and reports events to sink. It returns the accumulated
// response text.
//
//   - A non-2xx status emits one Error event and returns an *APIError.
//   - A "data: [DONE]" record emits Done and stops reading immediately.
//   - End of stream without the terminator emits Done with whatever content
//     has arrived, possibly "".
//   - A transport failure returns the wrapped error without emitting a
//     terminal event; retrying is up to the caller.
//
// Once ctx is done no further events are sent.
func (d *Driver) Run(ctx context.Context, resp *Response, sink Sink) (string, error) {
	if resp == nil || resp.Body == nil {
		return "", ErrNilTransport
	}
	if sink == nil {
		sink = Discard
	}

	r := &run{
		ctx:     ctx,
		sink:    sink,
		logger:  d.logger,
		state:   StateRequesting,
		decoder: sse.NewDecoder(),
	}

	if !resp.Success() {
		return "", r.fail(resp)
	}

	r.state = StateStreaming
	return r.stream(resp.Body)
}

func (r *run) fail(resp *Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       readBody(r.ctx, resp.Body, maxErrorBody),
	}

	r.logger.Warn("completion request rejected",
		"status", resp.StatusCode,
		"body_bytes", len(apiErr.Body),
	)

	r.emit(llm.ErrorEvent(apiErr.Error()))
	r.state = StateErrored
	return apiErr
}

func (r *run) stream(body Transport) (string, error) {
	for {
		chunk, err := body.Next(r.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return r.finish("eof"), nil
			}

			r.state = StateErrored
			r.logger.Debug("stream read failed",
				"state", r.state.String(),
				"error", err,
				"tokens", r.tokens,
			)
			return r.content.String(), fmt.Errorf("reading stream: %w", err)
		}

		for line := range r.decoder.Feed(chunk) {
			switch line.Kind {
			case sse.KindTerminator:
				return r.finish("done"), nil

			case sse.KindData:
				r.handleData(line.Payload)

			case sse.KindIgnore:
			}
		}
	}
}

func (r *run) handleData(payload string) {
	chunk, err := llm.DecodeStreamChunk([]byte(payload))
	if err != nil {
		r.skipped++
		r.logger.Debug("skipping malformed stream frame",
			"error", err,
			"payload_bytes", len(payload),
		)
		return
	}

	for _, fragment := range chunk.Fragments() {
		r.content.WriteString(fragment)
		r.tokens++
		r.emit(llm.TokenEvent(fragment))
	}
}

func (r *run) finish(reason string) string {
	full := r.content.String()
	r.emit(llm.DoneEvent(full))
	r.state = StateFinished

	attrs := []any{
		"state", r.state.String(),
		"reason", reason,
		"tokens", r.tokens,
		"skipped_frames", r.skipped,
		"content_bytes", len(full),
	}
	if pending := r.decoder.Pending(); pending > 0 {
		attrs = append(attrs, "discarded_tail_bytes", pending)
	}
	r.logger.Debug("stream finished", attrs...)

	return full
}

// emit is the single place events leave the driver. It drops events once the
// caller has lost interest.
func (r *run) emit(ev llm.StreamEvent) {
	if r.ctx.Err() != nil {
		return
	}
	r.sink.Send(ev)
}

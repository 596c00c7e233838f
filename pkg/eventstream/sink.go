package eventstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/logger"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// DefaultPublishTimeout bounds a single publish from a Sink.
const DefaultPublishTimeout = 10 * time.Second

// Sink is a stream.Sink that publishes a CompletionEvent when the stream
// ends with Done. Token and Error events are ignored. Publish failures are
// logged and never reach the stream.
type Sink struct {
	publisher Publisher
	source    EventSource
	req       *llm.ChatRequest
	logger    *slog.Logger
	started   time.Time
	now       func() time.Time
	timeout   time.Duration
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithSinkLogger sets the logger for publish failures.
func WithSinkLogger(l *slog.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = l
	}
}

// WithSinkClock overrides the time source.
func WithSinkClock(now func() time.Time) SinkOption {
	return func(s *Sink) {
		s.now = now
	}
}

// NewSink returns a sink that reports req's completion to p.
func NewSink(p Publisher, src EventSource, req *llm.ChatRequest, opts ...SinkOption) *Sink {
	s := &Sink{
		publisher: p,
		source:    src,
		req:       req,
		now:       time.Now,
		timeout:   DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNop(s.logger)
	s.started = s.now()
	return s
}

// Send implements stream.Sink.
func (s *Sink) Send(ev llm.StreamEvent) {
	if ev.Type != llm.EventDone || s.publisher == nil {
		return
	}

	event := NewCompletionEvent(s.source, s.req, ev.Data, s.started, s.now())

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.publisher.PublishCompletion(ctx, event); err != nil {
		s.logger.Warn("publishing completion event failed",
			"event_id", event.EventID,
			"error", err,
		)
	}
}

var _ stream.Sink = (*Sink)(nil)

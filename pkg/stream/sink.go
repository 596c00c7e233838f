package stream

import (
	"context"

	"github.com/papercomputeco/mdpilot/pkg/llm"
)

// Sink receives stream events in order. Send is fire-and-forget: it has no
// error result, and an implementation whose consumer has gone away must drop
// the event rather than block or panic. The driver never waits on a sink's
// health to keep decoding.
type Sink interface {
	Send(ev llm.StreamEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev llm.StreamEvent)

// Send calls f(ev).
func (f SinkFunc) Send(ev llm.StreamEvent) {
	f(ev)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(llm.StreamEvent) {})

// ChannelSink delivers events on a channel. Sends block until the consumer
// receives or ctx is done; after that every event is dropped.
//
// The consumer signals that it has stopped listening by cancelling ctx. It
// must not close the channel while a producer may still send.
type ChannelSink struct {
	ctx context.Context
	ch  chan<- llm.StreamEvent
}

// NewChannelSink returns a sink writing to ch until ctx is done.
func NewChannelSink(ctx context.Context, ch chan<- llm.StreamEvent) *ChannelSink {
	return &ChannelSink{ctx: ctx, ch: ch}
}

// Send implements Sink.
func (s *ChannelSink) Send(ev llm.StreamEvent) {
	if s.ctx.Err() != nil {
		return
	}

	select {
	case s.ch <- ev:
	case <-s.ctx.Done():
	}
}

type multiSink []Sink

// MultiSink fans every event out to all sinks, in argument order.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Send(ev llm.StreamEvent) {
	for _, s := range m {
		s.Send(ev)
	}
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/llm"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w     *fakeWriter
		p     *Publisher
		event *eventstream.CompletionEvent
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = newPublisher(w, "completions", nil)
		now := time.Unix(1735689600, 0).UTC()
		event = eventstream.NewCompletionEvent(
			eventstream.EventSource{Origin: "ask", SessionID: "session-1"},
			llm.NewChatRequest("sonar", nil, nil), "hi", now, now,
		)
	})

	It("validates its configuration", func() {
		_, err := NewPublisher(Config{Topic: "t"})
		Expect(err).To(MatchError(ErrNoBrokers))

		_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(MatchError(ErrNoTopic))

		pub, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "t"})
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Close()).To(Succeed())
	})

	It("writes the event as JSON keyed by session", func() {
		Expect(p.PublishCompletion(context.Background(), event)).To(Succeed())
		Expect(w.msgs).To(HaveLen(1))

		msg := w.msgs[0]
		Expect(string(msg.Key)).To(Equal("session-1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{
			Key: "event_type", Value: []byte(eventstream.EventTypeCompletionFinished),
		}))

		var decoded eventstream.CompletionEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Content).To(Equal("hi"))
	})

	It("keys by event ID without a session", func() {
		event.Source.SessionID = ""
		Expect(p.PublishCompletion(context.Background(), event)).To(Succeed())
		Expect(string(w.msgs[0].Key)).To(Equal(event.EventID))
	})

	It("rejects nil events", func() {
		Expect(p.PublishCompletion(context.Background(), nil)).To(MatchError(eventstream.ErrNilCompletionEvent))
	})

	It("wraps write failures", func() {
		w.err = errors.New("leader not available")
		err := p.PublishCompletion(context.Background(), event)
		Expect(err).To(MatchError(w.err))
		Expect(err.Error()).To(ContainSubstring("completions"))
	})

	It("refuses to publish after close and closes once", func() {
		Expect(p.Close()).To(Succeed())
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(Equal(1))
		Expect(p.PublishCompletion(context.Background(), event)).To(MatchError(eventstream.ErrPublisherClosed))
	})
})

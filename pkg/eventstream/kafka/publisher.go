// Package kafka publishes completion events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/logger"
)

var (
	// ErrNoBrokers is returned by NewPublisher without broker addresses.
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrNoTopic is returned by NewPublisher without a topic.
	ErrNoTopic = errors.New("kafka: no topic configured")
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers are host:port bootstrap addresses.
	Brokers []string

	// Topic receives every event.
	Topic string

	// WriteTimeout bounds a single write. Defaults to 10s.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events as JSON messages keyed by session ID.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates a publisher. No connection is made until the first
// publish.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}

	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}

	return newPublisher(w, cfg.Topic, cfg.Logger), nil
}

func newPublisher(w messageWriter, topic string, l *slog.Logger) *Publisher {
	return &Publisher{
		writer: w,
		topic:  topic,
		logger: logger.OrNop(l),
	}
}

// PublishCompletion writes event synchronously.
func (p *Publisher) PublishCompletion(ctx context.Context, event *eventstream.CompletionEvent) error {
	if event == nil {
		return eventstream.ErrNilCompletionEvent
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return eventstream.ErrPublisherClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	key := event.Source.SessionID
	if key == "" {
		key = event.EventID
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to topic %s: %w", p.topic, err)
	}

	p.logger.Debug("completion event published",
		"topic", p.topic,
		"event_id", event.EventID,
		"bytes", len(value),
	)
	return nil
}

// Close flushes and closes the writer. Further publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)

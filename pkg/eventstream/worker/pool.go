// Package worker provides an asynchronous worker pool that publishes
// completion events off the streaming hot path.
//
// Pool is itself an eventstream.Publisher: PublishCompletion only enqueues,
// so a slow or unreachable event backend never stalls a completion stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/logger"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// ErrQueueFull is returned when an event is dropped because the queue is at
// capacity.
var ErrQueueFull = errors.New("event queue full, event dropped")

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher is the backend that receives events. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds each publish made by a worker.
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes events asynchronously via a worker pool.
type Pool struct {
	config Config
	queue  chan *eventstream.CompletionEvent
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan *eventstream.CompletionEvent, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// PublishCompletion enqueues event for a worker. It returns ErrQueueFull if
// the queue is at capacity and ErrPublisherClosed after Close.
func (p *Pool) PublishCompletion(_ context.Context, event *eventstream.CompletionEvent) error {
	if event == nil {
		return eventstream.ErrNilCompletionEvent
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return eventstream.ErrPublisherClosed
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued", "event_id", event.EventID)
		return nil
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			"event_id", event.EventID,
		)
		return ErrQueueFull
	}
}

// Close stops accepting events, waits for queued ones to drain, then closes
// the backend publisher.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.config.Publisher.Close()
}

// worker continuously pulls events off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) publish(event *eventstream.CompletionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishCompletion(ctx, event); err != nil {
		p.logger.Error("async event publish failed",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Info("completion event published", "event_id", event.EventID)
}

var _ eventstream.Publisher = (*Pool)(nil)

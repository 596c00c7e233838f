package worker_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/eventstream/worker"
)

type blockingPublisher struct {
	mu      sync.Mutex
	ids     []string
	release chan struct{}
	closed  bool
}

func (b *blockingPublisher) PublishCompletion(_ context.Context, ev *eventstream.CompletionEvent) error {
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = append(b.ids, ev.EventID)
	return nil
}

func (b *blockingPublisher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *blockingPublisher) IDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ids...)
}

var _ = Describe("Pool", func() {
	It("requires a publisher", func() {
		_, err := worker.NewPool(worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("publishes every queued event before closing", func() {
		backend := &blockingPublisher{}
		pool, err := worker.NewPool(worker.Config{Publisher: backend, NumWorkers: 3})
		Expect(err).NotTo(HaveOccurred())

		for _, id := range []string{"a", "b", "c", "d"} {
			Expect(pool.PublishCompletion(context.Background(), &eventstream.CompletionEvent{EventID: id})).To(Succeed())
		}

		Expect(pool.Close()).To(Succeed())
		Expect(backend.IDs()).To(ConsistOf("a", "b", "c", "d"))
		Expect(backend.closed).To(BeTrue())
	})

	It("drops events when the queue is full", func() {
		backend := &blockingPublisher{release: make(chan struct{})}
		pool, err := worker.NewPool(worker.Config{Publisher: backend, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		ctx := context.Background()
		// The worker takes the first event and blocks; the second fills the queue.
		Expect(pool.PublishCompletion(ctx, &eventstream.CompletionEvent{EventID: "1"})).To(Succeed())
		Eventually(func() error {
			return pool.PublishCompletion(ctx, &eventstream.CompletionEvent{EventID: "2"})
		}).Should(Succeed())
		Expect(pool.PublishCompletion(ctx, &eventstream.CompletionEvent{EventID: "3"})).To(MatchError(worker.ErrQueueFull))

		close(backend.release)
		Expect(pool.Close()).To(Succeed())
		Expect(backend.IDs()).To(ConsistOf("1", "2"))
	})

	It("rejects events after close", func() {
		pool, err := worker.NewPool(worker.Config{Publisher: &blockingPublisher{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.Close()).To(Succeed())
		Expect(pool.Close()).To(Succeed())

		err = pool.PublishCompletion(context.Background(), &eventstream.CompletionEvent{})
		Expect(err).To(MatchError(eventstream.ErrPublisherClosed))
	})
})

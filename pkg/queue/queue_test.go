package queue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mdpilot/pkg/files"
	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/queue"
	"github.com/papercomputeco/mdpilot/pkg/session"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// fakeStreamer answers with "answer N" and records every request.
type fakeStreamer struct {
	mu       sync.Mutex
	requests []*llm.ChatRequest
	answer   func(n int, req *llm.ChatRequest) (string, error)
}

func (f *fakeStreamer) StreamChat(ctx context.Context, req *llm.ChatRequest, sink stream.Sink) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()

	content, err := f.answer(n, req)
	if err == nil && sink != nil {
		sink.Send(llm.DoneEvent(content))
	}
	return content, err
}

func (f *fakeStreamer) Requests() []*llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*llm.ChatRequest(nil), f.requests...)
}

func lastUser(req *llm.ChatRequest) string {
	return req.Messages[len(req.Messages)-1].Content
}

var _ = Describe("Runner", func() {
	var (
		streamer *fakeStreamer
		conv     *session.Conversation
		cfg      queue.Config
	)

	BeforeEach(func() {
		streamer = &fakeStreamer{answer: func(n int, _ *llm.ChatRequest) (string, error) {
			return "answer " + string(rune('0'+n)), nil
		}}
		conv = session.New()
		cfg = queue.Config{
			Streamer:     streamer,
			Conversation: conv,
			Model:        "sonar",
			Temperature:  llm.Float64(0.2),
		}
	})

	It("requires a streamer", func() {
		_, err := queue.NewRunner(queue.Config{})
		Expect(err).To(MatchError(queue.ErrNoStreamer))
	})

	It("does nothing for an empty queue", func() {
		r, err := queue.NewRunner(cfg)
		Expect(err).NotTo(HaveOccurred())
		sum, err := r.Run(context.Background(), nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum).To(Equal(queue.Summary{}))
	})

	Context("with at most one file", func() {
		It("runs prompt by prompt with the whole history", func() {
			doc := files.MarkdownFile{Name: "a.md", Path: "/docs/a.md", Content: "# A"}
			r, err := queue.NewRunner(cfg)
			Expect(err).NotTo(HaveOccurred())

			sum, err := r.Run(context.Background(), []queue.Prompt{
				{Command: "first", IncludeHistory: true},
				{Command: "second", IncludeHistory: true},
				{Command: "third"},
			}, []files.MarkdownFile{doc})
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Completed).To(Equal(3))

			reqs := streamer.Requests()
			Expect(reqs).To(HaveLen(3))
			for _, req := range reqs {
				Expect(req.Model).To(Equal("sonar"))
				Expect(*req.Temperature).To(Equal(0.2))
				Expect(lastUser(req)).To(ContainSubstring("### File: a.md"))
			}

			// system + current
			Expect(reqs[0].Messages).To(HaveLen(2))
			// system + first/answer + current
			Expect(reqs[1].Messages).To(HaveLen(4))
			Expect(reqs[1].Messages[1].Content).To(Equal("first"))
			Expect(reqs[1].Messages[2].Content).To(Equal("answer 1"))
			// history disabled
			Expect(reqs[2].Messages).To(HaveLen(2))

			msgs := conv.Messages()
			Expect(msgs).To(HaveLen(6))
			for _, m := range msgs {
				Expect(m.File).To(BeEmpty())
			}
		})

		It("sends the prompt alone without files", func() {
			r, err := queue.NewRunner(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Run(context.Background(), []queue.Prompt{{Command: "hello"}}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(lastUser(streamer.Requests()[0])).To(Equal("hello"))
		})
	})

	Context("with several files", func() {
		It("goes file by file with per-file history", func() {
			docs := []files.MarkdownFile{
				{Name: "a.md", Path: "/a.md", Content: "# A"},
				{Name: "b.md", Path: "/b.md", Content: "# B"},
			}
			var progress []queue.Progress
			cfg.OnStart = func(p queue.Progress) { progress = append(progress, p) }

			r, err := queue.NewRunner(cfg)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Run(context.Background(), []queue.Prompt{
				{Command: "p1", IncludeHistory: true},
				{Command: "p2", IncludeHistory: true},
			}, docs)
			Expect(err).NotTo(HaveOccurred())

			reqs := streamer.Requests()
			Expect(reqs).To(HaveLen(4))

			Expect(lastUser(reqs[0])).To(HavePrefix("p1"))
			Expect(lastUser(reqs[0])).To(ContainSubstring("### File: a.md"))
			Expect(lastUser(reqs[0])).NotTo(ContainSubstring("### File: b.md"))
			Expect(lastUser(reqs[1])).To(HavePrefix("p2"))
			Expect(reqs[1].Messages).To(HaveLen(4))

			// b.md starts without a.md's history
			Expect(lastUser(reqs[2])).To(HavePrefix("p1"))
			Expect(lastUser(reqs[2])).To(ContainSubstring("### File: b.md"))
			Expect(reqs[2].Messages).To(HaveLen(2))
			Expect(reqs[3].Messages).To(HaveLen(4))
			Expect(reqs[3].Messages[2].Content).To(Equal("answer 3"))

			Expect(progress).To(HaveLen(4))
			Expect(progress[2].FileIndex).To(Equal(2))
			Expect(progress[2].File.Name).To(Equal("b.md"))
			Expect(progress[3].Iteration).To(Equal(4))
			Expect(progress[3].Total).To(Equal(4))

			Expect(conv.ForFile("/a.md")).To(HaveLen(4))
			Expect(conv.ForFile("/b.md")).To(HaveLen(4))
		})
	})

	It("moves on after a failed request", func() {
		streamer.answer = func(n int, _ *llm.ChatRequest) (string, error) {
			if n == 1 {
				return "", &stream.APIError{StatusCode: 429, Body: "slow down"}
			}
			return "ok", nil
		}
		var results []queue.Result
		cfg.OnResult = func(res queue.Result) { results = append(results, res) }

		r, err := queue.NewRunner(cfg)
		Expect(err).NotTo(HaveOccurred())

		sum, err := r.Run(context.Background(), []queue.Prompt{{Command: "a"}, {Command: "b"}}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Failed).To(Equal(1))
		Expect(sum.Completed).To(Equal(1))

		var apiErr *stream.APIError
		Expect(errors.As(results[0].Err, &apiErr)).To(BeTrue())
		Expect(results[1].Content).To(Equal("ok"))
	})

	It("saves delimited documents", func() {
		dir := GinkgoT().TempDir()
		streamer.answer = func(int, *llm.ChatRequest) (string, error) {
			return "Here:\n==== fixed.md ====\n# Fixed\n==== koniec ====\n", nil
		}
		cfg.AutoSave = true
		cfg.OutputFolder = dir

		r, err := queue.NewRunner(cfg)
		Expect(err).NotTo(HaveOccurred())

		sum, err := r.Run(context.Background(), []queue.Prompt{{Command: "fix"}}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Saved).To(Equal([]string{filepath.Join(dir, "fixed.md")}))

		data, err := os.ReadFile(filepath.Join(dir, "fixed.md"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("# Fixed"))
	})

	It("forwards events to the per-request sink", func() {
		var (
			got     []llm.StreamEvent
			sinkReq *llm.ChatRequest
		)
		cfg.Sink = func(_ queue.Progress, req *llm.ChatRequest) stream.Sink {
			sinkReq = req
			return stream.SinkFunc(func(ev llm.StreamEvent) { got = append(got, ev) })
		}

		r, err := queue.NewRunner(cfg)
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Run(context.Background(), []queue.Prompt{{Command: "x"}}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]llm.StreamEvent{llm.DoneEvent("answer 1")}))
		Expect(sinkReq).To(BeIdenticalTo(streamer.Requests()[0]))
	})

	Context("with a cooldown", func() {
		It("waits between requests and reports the countdown", func() {
			var (
				mu        sync.Mutex
				countdown []time.Duration
			)
			cfg.Cooldown = 20 * time.Millisecond
			cfg.OnCooldown = func(d time.Duration) {
				mu.Lock()
				defer mu.Unlock()
				countdown = append(countdown, d)
			}

			r, err := queue.NewRunner(cfg)
			Expect(err).NotTo(HaveOccurred())

			start := time.Now()
			_, err = r.Run(context.Background(), []queue.Prompt{{Command: "a"}, {Command: "b"}}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically(">=", 20*time.Millisecond))

			mu.Lock()
			defer mu.Unlock()
			Expect(countdown).To(Equal([]time.Duration{20 * time.Millisecond, 0}))
		})

		It("stops during a cooldown when cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cfg.Cooldown = time.Hour
			cfg.OnCooldown = func(time.Duration) { cancel() }

			r, err := queue.NewRunner(cfg)
			Expect(err).NotTo(HaveOccurred())

			sum, err := r.Run(ctx, []queue.Prompt{{Command: "a"}, {Command: "b"}}, nil)
			Expect(err).To(MatchError(context.Canceled))
			Expect(sum.Completed).To(Equal(1))
			Expect(streamer.Requests()).To(HaveLen(1))
		})
	})

	It("keeps a partial answer when the stream is stopped", func() {
		ctx, cancel := context.WithCancel(context.Background())
		streamer.answer = func(int, *llm.ChatRequest) (string, error) {
			cancel()
			return "half", context.Canceled
		}

		r, err := queue.NewRunner(cfg)
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Run(ctx, []queue.Prompt{{Command: "a"}, {Command: "b"}}, nil)
		Expect(err).To(MatchError(context.Canceled))

		msgs := conv.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Content).To(Equal("half"))
		Expect(strings.Join([]string{msgs[0].Role, msgs[1].Role}, ",")).To(Equal("user,assistant"))
	})
})

var _ = Describe("SaveDocuments", func() {
	It("writes each named document", func() {
		dir := GinkgoT().TempDir()
		content := "==== a.md ====\nA\n==== koniec ====\n==== b.md ====\nB\n==== koniec ===="

		saved := queue.SaveDocuments(dir, content, nil, nil)
		Expect(saved).To(Equal([]string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.md")}))
	})

	It("gives each document without a usable name its own file", func() {
		dir := GinkgoT().TempDir()
		now := func() time.Time { return time.UnixMilli(1700000000000) }
		content := "==== .. ====\nA\n==== koniec ====\n==== / ====\nB\n==== koniec ===="

		saved := queue.SaveDocuments(dir, content, now, nil)
		Expect(saved).To(Equal([]string{
			filepath.Join(dir, "document-1700000000000-1.md"),
			filepath.Join(dir, "document-1700000000000-2.md"),
		}))

		a, err := os.ReadFile(saved[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(a)).To(Equal("A"))
		b, err := os.ReadFile(saved[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal("B"))
	})

	It("writes nothing for an answer without documents", func() {
		dir := GinkgoT().TempDir()
		Expect(queue.SaveDocuments(dir, "just prose", nil, nil)).To(BeEmpty())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})
})

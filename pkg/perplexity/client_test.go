package perplexity_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/perplexity"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		captured *http.Request
		body     []byte
		events   []llm.StreamEvent
		sink     stream.Sink
	)

	BeforeEach(func() {
		events = nil
		sink = stream.SinkFunc(func(ev llm.StreamEvent) { events = append(events, ev) })
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = r.Clone(context.Background())
			body, _ = io.ReadAll(r.Body)
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() *perplexity.Client {
		c, err := perplexity.New(perplexity.Config{APIKey: "pplx-test", Endpoint: server.URL})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("rejects a missing API key", func() {
		_, err := perplexity.New(perplexity.Config{})
		Expect(err).To(MatchError(perplexity.ErrMissingAPIKey))
	})

	It("defaults the endpoint", func() {
		c, err := perplexity.New(perplexity.Config{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Endpoint()).To(Equal(perplexity.DefaultEndpoint))
	})

	It("streams tokens and sends the expected request", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, word := range []string{"Hi", " there"} {
				fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
				flusher.Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		}

		req := llm.NewChatRequest("sonar-pro", []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "hello"),
		}, llm.Float64(0.7))

		content, err := newClient().StreamChat(context.Background(), req, sink)
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(Equal("Hi there"))
		Expect(events).To(Equal([]llm.StreamEvent{
			llm.TokenEvent("Hi"),
			llm.TokenEvent(" there"),
			llm.DoneEvent("Hi there"),
		}))

		Expect(captured.Method).To(Equal(http.MethodPost))
		Expect(captured.Header.Get("Authorization")).To(Equal("Bearer pplx-test"))
		Expect(captured.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(captured.Header.Get("Accept")).To(Equal("text/event-stream"))

		var sent map[string]any
		Expect(json.Unmarshal(body, &sent)).To(Succeed())
		Expect(sent).To(HaveKeyWithValue("model", "sonar-pro"))
		Expect(sent).To(HaveKeyWithValue("stream", true))
		Expect(sent).To(HaveKeyWithValue("temperature", 0.7))
		Expect(sent["messages"]).To(Equal([]any{
			map[string]any{"role": "user", "content": "hello"},
		}))
	})

	It("fills in the default model", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "data: [DONE]\n")
		}

		req := llm.NewChatRequest("", nil, nil)
		_, err := newClient().StreamChat(context.Background(), req, sink)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`"model":"sonar"`))
		Expect(string(body)).NotTo(ContainSubstring("temperature"))
		Expect(req.Model).To(BeEmpty())
	})

	It("reports a rejected request as an APIError and one Error event", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "invalid key")
		}

		_, err := newClient().StreamChat(context.Background(), llm.NewChatRequest("sonar", nil, nil), sink)

		var apiErr *stream.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(events).To(Equal([]llm.StreamEvent{llm.ErrorEvent("API returned 401: invalid key")}))
	})

	It("returns a wrapped error when the server is unreachable", func() {
		c, err := perplexity.New(perplexity.Config{APIKey: "k", Endpoint: "http://127.0.0.1:1"})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.StreamChat(context.Background(), llm.NewChatRequest("sonar", nil, nil), sink)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(HavePrefix("sending request"))
		Expect(events).To(BeEmpty())
	})

	It("rejects a nil request", func() {
		_, err := newClient().StreamChat(context.Background(), nil, sink)
		Expect(err).To(MatchError(perplexity.ErrNilRequest))
	})
})

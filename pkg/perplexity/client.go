// Package perplexity implements a streaming chat-completion client for
// Perplexity's OpenAI-compatible API.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/logger"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

const (
	// DefaultEndpoint is Perplexity's chat completions URL.
	DefaultEndpoint = "https://api.perplexity.ai/chat/completions"

	// DefaultModel is used when a request names no model.
	DefaultModel = "sonar"
)

var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("perplexity API key is not set")

	// ErrNilRequest is returned by StreamChat when called without a request.
	ErrNilRequest = errors.New("chat request is nil")
)

// Config holds configuration for the client.
type Config struct {
	// APIKey is sent as a bearer token. Required.
	APIKey string

	// Endpoint is the full chat completions URL.
	// Defaults to DefaultEndpoint if empty.
	Endpoint string

	// HTTPClient performs the request. Defaults to a client without a
	// timeout; streams can run for minutes, so deadlines belong on the
	// request context.
	HTTPClient *http.Client

	// Logger receives request lifecycle logs. Defaults to a no-op logger.
	Logger *slog.Logger

	// ChunkSize is the read size used on the response body.
	// Defaults to stream.DefaultChunkSize if zero.
	ChunkSize int
}

// Client sends streaming chat completions.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	chunkSize  int
	driver     *stream.Driver
}

// New creates a client. It fails before any network I/O if the API key is
// missing.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	l := logger.OrNop(cfg.Logger)

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     l,
		chunkSize:  cfg.ChunkSize,
		driver:     stream.NewDriver(l),
	}, nil
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// StreamChat sends req and decodes the streamed answer into sink. It returns
// the full answer text. Error semantics are those of stream.Driver.Run; a
// failure to reach the server at all is returned as a wrapped error with no
// event sent.
func (c *Client) StreamChat(ctx context.Context, req *llm.ChatRequest, sink stream.Sink) (string, error) {
	if req == nil {
		return "", ErrNilRequest
	}
	if req.Model == "" {
		clone := *req
		clone.Model = DefaultModel
		req = &clone
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Info("sending completion request",
		"model", req.Model,
		"messages", len(req.Messages),
		"prompt_chars", llm.TotalChars(req.Messages),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	body := stream.NewReaderTransport(resp.Body, c.chunkSize)
	defer body.Close()

	content, err := c.driver.Run(ctx, &stream.Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, sink)
	if err != nil {
		return content, err
	}

	c.logger.Info("completion finished",
		"model", req.Model,
		"content_chars", len(content),
	)
	return content, nil
}

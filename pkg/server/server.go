package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/logger"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// Streamer sends one streaming chat completion. *perplexity.Client
// implements it.
type Streamer interface {
	StreamChat(ctx context.Context, req *llm.ChatRequest, sink stream.Sink) (string, error)
}

// Server is the HTTP front end for completion streams.
type Server struct {
	config    Config
	logger    *slog.Logger
	app       *fiber.App
	publisher eventstream.Publisher

	mu      sync.RWMutex
	backend Streamer
}

// Option configures a Server.
type Option func(*Server)

// WithPublisher reports every finished completion to p.
func WithPublisher(p eventstream.Publisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// NewServer creates a new server. backend may be nil until SetBackend is
// called; chat requests are answered with 503 meanwhile.
func NewServer(config Config, backend Streamer, l *slog.Logger, opts ...Option) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		logger:  logger.OrNop(l),
		app:     app,
		backend: backend,
	}
	for _, opt := range opts {
		opt(s)
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/chat", s.handleChat)

	return s
}

// SetBackend swaps the completion backend, e.g. after a config reload.
// Requests already streaming keep the backend they started with.
func (s *Server) SetBackend(b Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = b
}

// SetDefaults replaces the model and temperature used for requests that do
// not set their own.
func (s *Server) SetDefaults(model string, temperature *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Model = model
	s.config.Temperature = temperature
}

func (s *Server) current() (Streamer, string, *float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend, s.config.Model, s.config.Temperature
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

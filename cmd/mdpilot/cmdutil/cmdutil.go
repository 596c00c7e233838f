// Package cmdutil holds the setup shared by mdpilot subcommands: resolving
// config through viper, building the logger, the API client and the
// completion event publisher.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/mdpilot/pkg/config"
	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/eventstream/kafka"
	"github.com/papercomputeco/mdpilot/pkg/eventstream/nop"
	"github.com/papercomputeco/mdpilot/pkg/eventstream/worker"
	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/logger"
	"github.com/papercomputeco/mdpilot/pkg/perplexity"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// ErrNoAPIKey is returned by NewClient when no key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// Streamer sends one streaming chat completion.
type Streamer interface {
	StreamChat(ctx context.Context, req *llm.ChatRequest, sink stream.Sink) (string, error)
}

// LoadViper resolves the layered config for cmd and binds the given flag
// registry keys, so flags the user set win over env and config.toml.
func LoadViper(cmd *cobra.Command, flagKeys ...string) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
	return v, nil
}

// Load is LoadViper followed by config.FromViper.
func Load(cmd *cobra.Command, flagKeys ...string) (*config.Config, error) {
	v, err := LoadViper(cmd, flagKeys...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// Logger builds the terminal logger honoring the persistent --debug flag.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
}

// LoggerWithFile is Logger, plus JSON records appended to path. In debug
// mode the file records also carry the source location. The returned func
// closes the file. An empty path yields Logger(cmd).
func LoggerWithFile(cmd *cobra.Command, path string) (*slog.Logger, func() error, error) {
	if path == "" {
		return Logger(cmd), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	debug, _ := cmd.Flags().GetBool("debug")
	fileLog := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithSource(debug),
		logger.WithWriter(f),
	)
	return logger.Multi(Logger(cmd), fileLog), f.Close, nil
}

// NewClient builds the API client for cfg. A configured api.timeout bounds
// every request.
func NewClient(cfg *config.Config, l *slog.Logger) (Streamer, error) {
	if cfg.API.Key == "" {
		return nil, ErrNoAPIKey
	}

	client, err := perplexity.New(perplexity.Config{
		APIKey:   cfg.API.Key,
		Endpoint: cfg.API.Endpoint,
		Logger:   l,
	})
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.API.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return WithTimeout(client, timeout), nil
}

type timeoutStreamer struct {
	Streamer
	timeout time.Duration
}

// WithTimeout bounds each StreamChat call on s by d. A zero d returns s.
func WithTimeout(s Streamer, d time.Duration) Streamer {
	if d <= 0 {
		return s
	}
	return &timeoutStreamer{Streamer: s, timeout: d}
}

func (t *timeoutStreamer) StreamChat(ctx context.Context, req *llm.ChatRequest, sink stream.Sink) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Streamer.StreamChat(ctx, req, sink)
}

// NewPublisher returns the completion event publisher for cfg: Kafka behind
// a worker pool when brokers are configured, a no-op publisher otherwise.
func NewPublisher(cfg *config.Config, l *slog.Logger) (eventstream.Publisher, error) {
	if len(cfg.Events.Brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	kp, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
		Logger:  l,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	pool, err := worker.NewPool(worker.Config{
		Publisher: kp,
		Logger:    l,
	})
	if err != nil {
		_ = kp.Close()
		return nil, fmt.Errorf("creating publish pool: %w", err)
	}

	l.Info("publishing completion events",
		"brokers", cfg.Events.Brokers,
		"topic", cfg.Events.Topic,
	)
	return pool, nil
}

// Package servecmder provides the serve command, which streams completions
// over HTTP.
package servecmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/mdpilot/cmd/mdpilot/cmdutil"
	"github.com/papercomputeco/mdpilot/pkg/config"
	"github.com/papercomputeco/mdpilot/pkg/server"
)

const serveLongDesc string = `Run the mdpilot HTTP server.

POST /v1/chat takes {"prompt", "files", "history", "model", "temperature"}
and answers with server-sent events, one JSON StreamEvent per event:
{"type":"Token","data":"..."}, then a final Done or Error.
GET /ping reports liveness.

Changes to config.toml (API key, model, temperature, endpoint) apply to new
requests without a restart. With events.brokers set, every finished
completion is published to Kafka.

Examples:
  mdpilot serve
  mdpilot serve --listen 127.0.0.1:9000 --model sonar-pro
  mdpilot serve --brokers localhost:9092 --topic mdpilot.completions
  mdpilot serve --log-file ~/.mdpilot/serve.log`

const serveShortDesc string = "Stream completions over HTTP"

// serveFlagKeys are the registry flags serve binds into viper.
var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagModel,
	config.FlagEndpoint,
	config.FlagTemperature,
	config.FlagTimeout,
	config.FlagBrokers,
	config.FlagTopic,
}

type serveCommander struct {
	listen, model, endpoint, timeout, brokers, topic string
	temperature                                      float64
	logFile                                          string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddFloatFlag(cmd, config.Flags, config.FlagTemperature, &cmder.temperature)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	log, closeLog, err := cmdutil.LoggerWithFile(cmd, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	v, err := cmdutil.LoadViper(cmd, serveFlagKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	backend, err := newBackend(cfg, log)
	if err != nil {
		return err
	}

	publisher, err := cmdutil.NewPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	srv := server.NewServer(server.Config{
		ListenAddr:  cfg.Server.Listen,
		Model:       cfg.API.Model,
		Temperature: cfg.API.Temperature,
	}, backend, log, server.WithPublisher(publisher))

	if file := v.ConfigFileUsed(); file != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Info("config changed", "file", e.Name, "op", e.Op.String())
			reload(v, srv, log)
		})
		v.WatchConfig()
		log.Info("watching config for changes", "file", file)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return srv.Shutdown()
	}
}

// newBackend returns the API client, or nil without an API key so the
// server can start and pick the key up on reload.
func newBackend(cfg *config.Config, log *slog.Logger) (server.Streamer, error) {
	client, err := cmdutil.NewClient(cfg, log)
	if errors.Is(err, cmdutil.ErrNoAPIKey) {
		log.Warn("no API key configured, chat requests fail with 503 until one is set")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// reloadable is the part of *server.Server a config reload touches.
type reloadable interface {
	SetBackend(server.Streamer)
	SetDefaults(model string, temperature *float64)
}

// reload applies the current viper state to srv. An invalid config is
// logged and leaves srv unchanged.
func reload(v *viper.Viper, srv reloadable, log *slog.Logger) {
	cfg, err := config.FromViper(v)
	if err != nil {
		log.Error("ignoring invalid config", "error", err)
		return
	}

	backend, err := newBackend(cfg, log)
	if err != nil {
		log.Error("ignoring config, creating client failed", "error", err)
		return
	}

	srv.SetBackend(backend)
	srv.SetDefaults(cfg.API.Model, cfg.API.Temperature)
	log.Info("config reloaded",
		"model", cfg.API.Model,
		"endpoint", cfg.API.Endpoint,
		"has_key", backend != nil,
	)
}

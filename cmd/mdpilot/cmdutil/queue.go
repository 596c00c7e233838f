package cmdutil

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mdpilot/pkg/cliui"
	"github.com/papercomputeco/mdpilot/pkg/config"
	"github.com/papercomputeco/mdpilot/pkg/eventstream"
	"github.com/papercomputeco/mdpilot/pkg/files"
	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/queue"
	"github.com/papercomputeco/mdpilot/pkg/session"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// QueueFlagKeys are the registry flags of commands that send prompts.
var QueueFlagKeys = []string{
	config.FlagModel,
	config.FlagEndpoint,
	config.FlagTemperature,
	config.FlagTimeout,
	config.FlagLanguage,
	config.FlagHistory,
	config.FlagCooldown,
	config.FlagOutput,
	config.FlagAutoSave,
	config.FlagRender,
	config.FlagBrokers,
	config.FlagTopic,
}

// QueueFlags holds the targets of QueueFlagKeys. Effective values are read
// back through viper, so only flags the user set override config.toml.
type QueueFlags struct {
	model, endpoint, timeout, language, cooldown, output, brokers, topic string

	temperature float64

	history, autoSave, render bool
}

// Register adds every queue flag to cmd.
func (f *QueueFlags) Register(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &f.endpoint)
	config.AddFloatFlag(cmd, config.Flags, config.FlagTemperature, &f.temperature)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &f.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagLanguage, &f.language)
	config.AddBoolFlag(cmd, config.Flags, config.FlagHistory, &f.history)
	config.AddStringFlag(cmd, config.Flags, config.FlagCooldown, &f.cooldown)
	config.AddStringFlag(cmd, config.Flags, config.FlagOutput, &f.output)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAutoSave, &f.autoSave)
	config.AddBoolFlag(cmd, config.Flags, config.FlagRender, &f.render)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &f.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &f.topic)
}

// QueueOptions wires a queue run to the terminal and the event publisher.
type QueueOptions struct {
	Config    *config.Config
	Streamer  queue.Streamer
	Publisher eventstream.Publisher

	// Conversation carries history across runs. A new one is used when nil.
	Conversation *session.Conversation

	// Origin names the command in published events.
	Origin string

	Reporter *Reporter
	Logger   *slog.Logger
}

// NewRunner builds a queue runner that prints answers as they stream and
// publishes each finished completion.
func NewRunner(opts QueueOptions) (*queue.Runner, error) {
	cfg := opts.Config
	rep := opts.Reporter

	cooldown, err := cfg.Chat.CooldownDuration()
	if err != nil {
		return nil, err
	}

	conv := opts.Conversation
	if conv == nil {
		conv = session.New()
	}

	printer := cliui.NewStreamPrinter(rep.Out, rep.ErrOut, cfg.Output.Render)

	return queue.NewRunner(queue.Config{
		Streamer:     opts.Streamer,
		Conversation: conv,
		Model:        cfg.API.Model,
		Temperature:  cfg.API.Temperature,
		Cooldown:     cooldown,
		AutoSave:     cfg.Output.AutoSave,
		OutputFolder: cfg.Output.Folder,
		Sink: func(p queue.Progress, req *llm.ChatRequest) stream.Sink {
			src := eventstream.EventSource{
				Origin:    opts.Origin,
				SessionID: conv.ID().String(),
			}
			if p.File != nil {
				src.File = p.File.Path
			}
			return stream.MultiSink(printer,
				eventstream.NewSink(opts.Publisher, src, req, eventstream.WithSinkLogger(opts.Logger)))
		},
		OnStart:    rep.OnStart,
		OnCooldown: rep.OnCooldown,
		OnResult:   rep.OnResult,
		Logger:     opts.Logger,
	})
}

// Prompts turns commands into queue prompts.
func Prompts(cfg *config.Config, commands ...string) []queue.Prompt {
	out := make([]queue.Prompt, len(commands))
	for i, c := range commands {
		out[i] = queue.Prompt{Command: c, IncludeHistory: cfg.Chat.IncludeHistory}
	}
	return out
}

// RunQueue runs commands over docs with a fresh runner.
func RunQueue(ctx context.Context, opts QueueOptions, commands []string, docs []files.MarkdownFile) (queue.Summary, error) {
	runner, err := NewRunner(opts)
	if err != nil {
		return queue.Summary{}, err
	}
	return runner.Run(ctx, Prompts(opts.Config, commands...), docs)
}

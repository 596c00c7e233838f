// Package queue runs a list of prompts against one or more documents,
// spacing API calls with a cooldown.
//
// With zero or one document every prompt is sent in turn with the whole
// conversation as history. With two or more documents the queue goes file by
// file: every prompt for the first file, then every prompt for the next, each
// request carrying only that file and that file's own history.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/mdpilot/pkg/fences"
	"github.com/papercomputeco/mdpilot/pkg/files"
	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/logger"
	"github.com/papercomputeco/mdpilot/pkg/prompt"
	"github.com/papercomputeco/mdpilot/pkg/session"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// DefaultCooldown separates consecutive API calls.
const DefaultCooldown = 20 * time.Second

// ErrNoStreamer is returned by NewRunner without a Streamer.
var ErrNoStreamer = errors.New("queue: no streamer configured")

// Streamer sends one streaming chat completion. *perplexity.Client
// implements it.
type Streamer interface {
	StreamChat(ctx context.Context, req *llm.ChatRequest, sink stream.Sink) (string, error)
}

// Prompt is one queued instruction.
type Prompt struct {
	Command        string
	IncludeHistory bool
}

// Progress describes the request about to be sent.
type Progress struct {
	// Iteration counts requests from 1 to Total.
	Iteration int
	Total     int

	// FileIndex counts files from 1 in file-by-file mode, 0 otherwise.
	FileIndex int
	FileCount int
	File      *files.MarkdownFile

	Prompt Prompt
}

// Result is the outcome of one request.
type Result struct {
	Progress

	Content string
	Saved   []string
	Err     error
}

// Summary totals a Run.
type Summary struct {
	Completed int
	Failed    int
	Saved     []string
}

// Config configures a Runner.
type Config struct {
	// Streamer sends requests. Required.
	Streamer Streamer

	// Conversation receives every instruction and answer. A new one is
	// created when nil.
	Conversation *session.Conversation

	Model       string
	Temperature *float64

	// Cooldown is the pause between API calls. Zero disables it; use
	// DefaultCooldown for the usual rate limit spacing.
	Cooldown time.Duration

	// AutoSave writes every delimited document of an answer to OutputFolder.
	AutoSave     bool
	OutputFolder string

	// Sink returns the sink for one request's events. Nil discards them.
	Sink func(Progress, *llm.ChatRequest) stream.Sink

	// OnStart is called before each request.
	OnStart func(Progress)

	// OnCooldown is called when a cooldown starts and then about once a
	// second with the time remaining.
	OnCooldown func(remaining time.Duration)

	// OnResult is called after each request.
	OnResult func(Result)

	Logger *slog.Logger

	// Now names unnamed saved documents. Defaults to time.Now.
	Now func() time.Time
}

// Runner executes prompt queues.
type Runner struct {
	cfg    Config
	conv   *session.Conversation
	logger *slog.Logger
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Streamer == nil {
		return nil, ErrNoStreamer
	}
	if cfg.Conversation == nil {
		cfg.Conversation = session.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Runner{
		cfg:    cfg,
		conv:   cfg.Conversation,
		logger: logger.OrNop(cfg.Logger),
	}, nil
}

// Conversation returns the conversation the runner records into.
func (r *Runner) Conversation() *session.Conversation {
	return r.conv
}

// Run sends every prompt. A failed request is reported through OnResult and
// counted, and the queue moves on. Cancelling ctx stops the queue during a
// request or a cooldown; Run then returns the summary so far and ctx's error.
func (r *Runner) Run(ctx context.Context, prompts []Prompt, docs []files.MarkdownFile) (Summary, error) {
	var sum Summary
	if len(prompts) == 0 {
		return sum, nil
	}

	steps := r.plan(prompts, docs)
	r.logger.Info("queue started",
		"prompts", len(prompts),
		"files", len(docs),
		"requests", len(steps),
	)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i > 0 {
			if err := r.cooldown(ctx); err != nil {
				return sum, err
			}
		}

		res := r.execute(ctx, step.progress, step.attach)
		if res.Err != nil {
			sum.Failed++
		} else {
			sum.Completed++
		}
		sum.Saved = append(sum.Saved, res.Saved...)

		if r.cfg.OnResult != nil {
			r.cfg.OnResult(res)
		}
	}

	r.logger.Info("queue finished",
		"completed", sum.Completed,
		"failed", sum.Failed,
		"saved", len(sum.Saved),
	)
	return sum, ctx.Err()
}

type step struct {
	progress Progress
	attach   []files.MarkdownFile
}

func (r *Runner) plan(prompts []Prompt, docs []files.MarkdownFile) []step {
	var steps []step

	if len(docs) <= 1 {
		for _, p := range prompts {
			steps = append(steps, step{
				progress: Progress{Prompt: p, FileCount: len(docs)},
				attach:   docs,
			})
		}
	} else {
		for fi := range docs {
			doc := &docs[fi]
			for _, p := range prompts {
				steps = append(steps, step{
					progress: Progress{
						FileIndex: fi + 1,
						FileCount: len(docs),
						File:      doc,
						Prompt:    p,
					},
					attach: []files.MarkdownFile{*doc},
				})
			}
		}
	}

	for i := range steps {
		steps[i].progress.Iteration = i + 1
		steps[i].progress.Total = len(steps)
	}
	return steps
}

func (r *Runner) execute(ctx context.Context, p Progress, attach []files.MarkdownFile) Result {
	res := Result{Progress: p}

	var (
		file    string
		history []session.Message
	)
	if p.File != nil {
		file = p.File.Path
		history = r.conv.ForFile(file)
	} else {
		history = r.conv.Messages()
	}

	var hist []llm.Message
	if p.Prompt.IncludeHistory {
		hist = session.History(history)
	}

	r.conv.AddUser(p.Prompt.Command, file)

	if r.cfg.OnStart != nil {
		r.cfg.OnStart(p)
	}

	req := llm.NewChatRequest(r.cfg.Model,
		prompt.Build(p.Prompt.Command, files.Attachments(attach), hist),
		r.cfg.Temperature,
	)

	var sink stream.Sink
	if r.cfg.Sink != nil {
		sink = r.cfg.Sink(p, req)
	}

	content, err := r.cfg.Streamer.StreamChat(ctx, req, sink)
	res.Content = content
	if err != nil {
		res.Err = err
		r.logger.Warn("queued request failed",
			"iteration", p.Iteration,
			"file", file,
			"error", err,
		)
		// A stopped stream keeps what already arrived.
		if ctx.Err() != nil && content != "" {
			r.conv.AddAssistant(content, file)
		}
		return res
	}

	r.conv.AddAssistant(content, file)

	if r.cfg.AutoSave && r.cfg.OutputFolder != "" && content != "" {
		res.Saved = r.save(content)
	}
	return res
}

func (r *Runner) save(content string) []string {
	return SaveDocuments(r.cfg.OutputFolder, content, r.cfg.Now, r.logger)
}

// SaveDocuments writes every delimited document in content to folder and
// returns the written paths. Documents without a usable file name are saved
// as document-<unix-ms>-<n>.md, n counting blocks from 1. Failed writes are
// logged and skipped.
func SaveDocuments(folder, content string, now func() time.Time, l *slog.Logger) []string {
	if now == nil {
		now = time.Now
	}
	l = logger.OrNop(l)

	var saved []string
	for i, block := range fences.ParseBlocks(content) {
		fallback := fmt.Sprintf("document-%d-%d.md", now().UnixMilli(), i+1)

		name := block.Filename
		if name == "" {
			name = fallback
		}

		path, err := files.Save(folder, name, block.Content)
		if errors.Is(err, files.ErrInvalidName) {
			l.Warn("unusable document name, using fallback", "name", name, "fallback", fallback)
			name = fallback
			path, err = files.Save(folder, name, block.Content)
		}
		if err != nil {
			l.Error("auto-save failed", "file", name, "error", err)
			continue
		}
		l.Info("document saved", "path", path)
		saved = append(saved, path)
	}
	return saved
}

func (r *Runner) cooldown(ctx context.Context) error {
	d := r.cfg.Cooldown
	if d <= 0 {
		return ctx.Err()
	}

	notify := func(rem time.Duration) {
		if r.cfg.OnCooldown != nil {
			r.cfg.OnCooldown(rem)
		}
	}

	deadline := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	notify(d)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			notify(0)
			return nil
		case <-ticker.C:
			notify(time.Until(deadline).Round(time.Second))
		}
	}
}

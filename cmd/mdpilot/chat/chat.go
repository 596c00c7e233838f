// Package chatcmder provides the chat command: an interactive session with
// optional Markdown attachments.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/mdpilot/cmd/mdpilot/cmdutil"
	"github.com/papercomputeco/mdpilot/pkg/cliui"
	"github.com/papercomputeco/mdpilot/pkg/config"
	"github.com/papercomputeco/mdpilot/pkg/fences"
	"github.com/papercomputeco/mdpilot/pkg/files"
	"github.com/papercomputeco/mdpilot/pkg/queue"
	"github.com/papercomputeco/mdpilot/pkg/session"
)

const chatLongDesc string = `Start an interactive chat session.

Answers stream as they are generated. Attach Markdown files with --file or
/attach; with two or more files each message is sent once per file, each
request carrying only that file and its own history. Ctrl+C stops the
answer being generated.

Commands inside the session:
  /attach <file>      Attach a Markdown file
  /detach             Remove all attachments
  /files              List attachments
  /history on|off     Send earlier questions and answers as context
  /clear              Start a new conversation
  /save               Save the documents of the last answer
  /quit               Leave (also /exit or Ctrl+D)

Examples:
  mdpilot chat
  mdpilot chat --file README.md --history
  mdpilot chat -f a.md -f b.md --model sonar-pro`

const chatShortDesc string = "Interactive chat with streamed answers"

const promptText = "you> "

type chatCommander struct {
	files []string
	flags cmdutil.QueueFlags
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&cmder.files, "file", "f", nil, "Markdown file to attach (repeatable)")
	cmder.flags.Register(cmd)

	return cmd
}

// repl is one interactive session.
type repl struct {
	cfg     *config.Config
	msgs    cliui.Messages
	runner  *queue.Runner
	conv    *session.Conversation
	docs    []files.MarkdownFile
	history bool
	out     io.Writer
	errOut  io.Writer
	rep     *cmdutil.Reporter
	logger  *slog.Logger
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	cfg, err := cmdutil.Load(cmd, cmdutil.QueueFlagKeys...)
	if err != nil {
		return err
	}
	msgs := cliui.NewMessages(cfg.Chat.Language)
	log := cmdutil.Logger(cmd)

	docs, err := files.ReadMarkdownFiles(c.files)
	if err != nil {
		return err
	}

	client, err := cmdutil.NewClient(cfg, log)
	if errors.Is(err, cmdutil.ErrNoAPIKey) {
		return errors.New(msgs.T(cliui.MsgNoAPIKey))
	}
	if err != nil {
		return err
	}

	publisher, err := cmdutil.NewPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	r := &repl{
		cfg:     cfg,
		msgs:    msgs,
		conv:    session.New(),
		docs:    docs,
		history: cfg.Chat.IncludeHistory,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		logger:  log,
	}
	r.rep = &cmdutil.Reporter{Out: r.out, ErrOut: r.errOut, Msgs: msgs, Quiet: true}

	r.runner, err = cmdutil.NewRunner(cmdutil.QueueOptions{
		Config:       cfg,
		Streamer:     client,
		Publisher:    publisher,
		Conversation: r.conv,
		Origin:       "chat",
		Reporter:     r.rep,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	return r.loop(cmd.Context(), cmd.InOrStdin())
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *repl) loop(ctx context.Context, in io.Reader) error {
	interactive := isTerminal(in)
	if interactive {
		r.banner()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if interactive {
			cliui.Fprint(r.out, cliui.PromptStyle.Render(promptText))
		}
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.command(input); quit {
				break
			}
			continue
		}

		r.send(ctx, input)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if interactive {
		cliui.Fprintln(r.out)
	}
	return nil
}

func (r *repl) banner() {
	cliui.Fprintf(r.out, "\n  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(r.cfg.API.Model))
	for _, d := range r.docs {
		cliui.Fprintf(r.out, "  %s %s\n", cliui.KeyStyle.Render("File:"), cliui.NameStyle.Render(d.Name))
	}
	cliui.Fprintf(r.out, "  %s\n\n", cliui.DimStyle.Render(r.msgs.T(cliui.MsgReplHelp)))
}

// send runs one message. Ctrl+C cancels only this answer.
func (r *repl) send(parent context.Context, input string) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	prompt := queue.Prompt{Command: input, IncludeHistory: r.history}
	_, err := r.runner.Run(ctx, []queue.Prompt{prompt}, r.docs)
	if errors.Is(err, context.Canceled) {
		r.rep.Stopped()
	}
}

// command handles a slash command and reports whether to quit.
func (r *repl) command(input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true

	case "/help":
		r.info(r.msgs.T(cliui.MsgReplHelp))

	case "/clear":
		r.conv.Reset()
		r.info(r.msgs.T(cliui.MsgHistoryReset))

	case "/history":
		switch strings.ToLower(arg) {
		case "on":
			r.history = true
		case "off":
			r.history = false
		default:
			r.history = !r.history
		}
		if r.history {
			r.info(r.msgs.T(cliui.MsgHistoryOn))
		} else {
			r.info(r.msgs.T(cliui.MsgHistoryOff))
		}

	case "/attach":
		doc, err := files.ReadMarkdownFile(arg)
		if err != nil {
			r.fail(err)
			return false
		}
		r.docs = append(r.docs, doc)
		r.info(r.msgs.T(cliui.MsgAttached, doc.Name))

	case "/detach":
		r.docs = nil
		r.info(r.msgs.T(cliui.MsgDetached))

	case "/files":
		if len(r.docs) == 0 {
			r.info(r.msgs.T(cliui.MsgNoFiles))
		}
		for _, d := range r.docs {
			cliui.Fprintf(r.out, "  %s %s\n", cliui.NameStyle.Render(d.Name), cliui.DimStyle.Render(d.Path))
		}

	case "/save":
		r.save()

	default:
		r.fail(errors.New(r.msgs.T(cliui.MsgUnknownCmd, name)))
	}
	return false
}

func (r *repl) save() {
	last, ok := r.conv.LastAssistant()
	if !ok {
		r.info(r.msgs.T(cliui.MsgNothingToSave))
		return
	}

	blocks := fences.ParseBlocks(last.Content)
	if len(blocks) == 0 {
		r.info(r.msgs.T(cliui.MsgNothingToSave))
		return
	}

	saved := queue.SaveDocuments(r.cfg.Output.Folder, last.Content, nil, r.logger)
	if len(saved) < len(blocks) {
		r.fail(errors.New(r.msgs.T(cliui.MsgFileSaveError)))
	}
	for _, path := range saved {
		cliui.Fprintf(r.out, "  %s %s\n", cliui.SuccessMark, r.msgs.T(cliui.MsgFileSaved, path))
	}
}

func (r *repl) info(msg string) {
	cliui.Fprintf(r.out, "  %s\n", cliui.DimStyle.Render(msg))
}

func (r *repl) fail(err error) {
	cliui.Fprintf(r.errOut, "  %s %v\n", cliui.FailMark, err)
}

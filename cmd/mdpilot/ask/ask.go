// Package askcmder provides the ask command: a queue of prompts run over
// Markdown files, with answers streamed to the terminal.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/mdpilot/cmd/mdpilot/cmdutil"
	"github.com/papercomputeco/mdpilot/pkg/cliui"
	"github.com/papercomputeco/mdpilot/pkg/files"
)

const askLongDesc string = `Send one or more prompts, optionally about Markdown files.

Every --prompt is queued. With zero or one file the prompts run one after
another. With two or more files the queue goes file by file: every prompt
for the first file, then every prompt for the next, each request carrying
only that file. A cooldown (chat.cooldown, default 20s) separates API calls.

Without --prompt the prompt is read from stdin.

Examples:
  mdpilot ask -p "Summarize this" notes.md
  mdpilot ask -p "Fix typos" -p "Add a table of contents" a.md b.md --auto-save
  echo "What is CommonMark?" | mdpilot ask`

const askShortDesc string = "Run a queue of prompts over Markdown files"

type askCommander struct {
	prompts []string
	flags   cmdutil.QueueFlags
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [files...]",
		Short: askShortDesc,
		Long:  askLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringArrayVarP(&cmder.prompts, "prompt", "p", nil, "Prompt to send (repeatable)")
	cmder.flags.Register(cmd)

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.Load(cmd, cmdutil.QueueFlagKeys...)
	if err != nil {
		return err
	}
	msgs := cliui.NewMessages(cfg.Chat.Language)
	log := cmdutil.Logger(cmd)

	prompts, err := c.collectPrompts(cmd.InOrStdin())
	if err != nil {
		return err
	}

	docs, err := files.ReadMarkdownFiles(args)
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep := &cmdutil.Reporter{
		Out:    cmd.OutOrStdout(),
		ErrOut: cmd.ErrOrStderr(),
		Msgs:   msgs,
		Quiet:  len(prompts) == 1 && len(docs) <= 1,
	}

	sum, err := cmdutil.RunQueue(ctx, cmdutil.QueueOptions{
		Config:    cfg,
		Streamer:  client,
		Publisher: publisher,
		Origin:    "ask",
		Reporter:  rep,
		Logger:    log,
	}, prompts, docs)
	if errors.Is(err, context.Canceled) {
		rep.Stopped()
		return nil
	}
	if err != nil {
		return err
	}

	if !rep.Quiet {
		rep.Summary(sum)
	}
	if sum.Failed > 0 && sum.Completed == 0 {
		return fmt.Errorf("all %d requests failed", sum.Failed)
	}
	return nil
}

// collectPrompts returns the --prompt values, or the whole of stdin when
// none were given and stdin is not a terminal.
func (c *askCommander) collectPrompts(in io.Reader) ([]string, error) {
	var prompts []string
	for _, p := range c.prompts {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) > 0 {
		return prompts, nil
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, errors.New("no prompt given: use --prompt or pipe one on stdin")
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	p := strings.TrimSpace(string(data))
	if p == "" {
		return nil, errors.New("no prompt given: use --prompt or pipe one on stdin")
	}
	return []string{p}, nil
}

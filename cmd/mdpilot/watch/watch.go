// Package watchcmder provides the watch command: re-run prompts whenever a
// watched Markdown file changes.
package watchcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mdpilot/cmd/mdpilot/cmdutil"
	"github.com/papercomputeco/mdpilot/pkg/cliui"
	"github.com/papercomputeco/mdpilot/pkg/files"
	"github.com/papercomputeco/mdpilot/pkg/logger"
)

const watchLongDesc string = `Watch Markdown files and re-run prompts when they change.

Every change to a watched file sends the prompts again with the file's
current content attached. Rapid successive writes are coalesced (--debounce).
With --auto-save, documents in the answers are written to the output folder;
writes mdpilot makes itself do not trigger another run.

Examples:
  mdpilot watch -p "Review for typos" draft.md
  mdpilot watch -p "Rewrite as a table" --auto-save -o out notes.md`

const watchShortDesc string = "Re-run prompts when Markdown files change"

const defaultDebounce = 500 * time.Millisecond

type watchCommander struct {
	prompts  []string
	debounce time.Duration
	flags    cmdutil.QueueFlags
}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <files...>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringArrayVarP(&cmder.prompts, "prompt", "p", nil, "Prompt to send on every change (repeatable)")
	cmd.Flags().DurationVar(&cmder.debounce, "debounce", defaultDebounce, "Quiet period before reacting to a change")
	cmder.flags.Register(cmd)

	return cmd
}

func (c *watchCommander) run(cmd *cobra.Command, args []string) error {
	if len(c.prompts) == 0 {
		return errors.New("no prompt given: use --prompt")
	}

	cfg, err := cmdutil.Load(cmd, cmdutil.QueueFlagKeys...)
	if err != nil {
		return err
	}
	msgs := cliui.NewMessages(cfg.Chat.Language)
	log := cmdutil.Logger(cmd)

	// Fail early on unreadable or non-Markdown paths.
	if _, err := files.ReadMarkdownFiles(args); err != nil {
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

	rep := &cmdutil.Reporter{
		Out:    cmd.OutOrStdout(),
		ErrOut: cmd.ErrOrStderr(),
		Msgs:   msgs,
		Quiet:  len(c.prompts) == 1,
	}
	runner, err := cmdutil.NewRunner(cmdutil.QueueOptions{
		Config:    cfg,
		Streamer:  client,
		Publisher: publisher,
		Origin:    "watch",
		Reporter:  rep,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompts := cmdutil.Prompts(cfg, c.prompts...)
	ignoreUntil := map[string]time.Time{}

	cliui.Fprintf(rep.Out, "\n  %s %s\n", cliui.SuccessMark, cliui.DimStyle.Render(msgs.T(cliui.MsgWatching, len(args))))

	return Watch(ctx, args, c.debounce, log, func(path string) {
		if until, ok := ignoreUntil[path]; ok {
			delete(ignoreUntil, path)
			if time.Now().Before(until) {
				log.Debug("skipping own write", "path", path)
				return
			}
		}

		doc, err := files.ReadMarkdownFile(path)
		if err != nil {
			log.Warn("reading changed file", "path", path, "error", err)
			return
		}

		cliui.Fprintf(rep.Out, "\n  %s %s\n", cliui.WarnStyle.Render("●"), msgs.T(cliui.MsgChanged, doc.Name))

		sum, err := runner.Run(ctx, prompts, []files.MarkdownFile{doc})
		if errors.Is(err, context.Canceled) {
			return
		}
		for _, saved := range sum.Saved {
			if abs, err := filepath.Abs(saved); err == nil {
				ignoreUntil[abs] = time.Now().Add(c.debounce + time.Second)
			}
		}
	})
}

// Watch calls onChange with the absolute path of every file in paths that
// is written or re-created, after debounce has passed without further
// changes. onChange runs on the calling goroutine, one file at a time.
// Watch returns nil when ctx is done.
func Watch(ctx context.Context, paths []string, debounce time.Duration, l *slog.Logger, onChange func(path string)) error {
	l = logger.OrNop(l)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Close()

	targets := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	// Watch directories, not files, so editors that save by rename are seen.
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	var (
		pending = map[string]bool{}
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if !targets[path] {
				continue
			}

			l.Debug("file changed", "path", path, "op", event.Op.String())
			pending[path] = true
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)

			for _, p := range changed {
				if ctx.Err() != nil {
					return nil
				}
				onChange(p)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

package cmdutil

import (
	"fmt"
	"io"
	"time"

	"github.com/papercomputeco/mdpilot/pkg/cliui"
	"github.com/papercomputeco/mdpilot/pkg/queue"
)

// Reporter prints queue progress for a terminal.
type Reporter struct {
	Out    io.Writer
	ErrOut io.Writer
	Msgs   cliui.Messages

	// Quiet hides per-request lines, keeping file headers.
	Quiet bool

	lastFile int
}

// OnStart prints which request is about to run.
func (r *Reporter) OnStart(p queue.Progress) {
	if p.File != nil && p.FileIndex != r.lastFile {
		r.lastFile = p.FileIndex
		cliui.Fprintf(r.Out, "\n%s\n", cliui.HeaderStyle.Render(
			r.Msgs.T(cliui.MsgFileProgress, p.FileIndex, p.FileCount, p.File.Name)))
	}
	if r.Quiet {
		return
	}
	cliui.Fprintf(r.Out, "\n  %s %s\n\n",
		cliui.StepStyle.Render(fmt.Sprintf("[%d/%d]", p.Iteration, p.Total)),
		cliui.PromptStyle.Render(p.Prompt.Command),
	)
}

// OnCooldown rewrites a countdown line until the cooldown is over.
func (r *Reporter) OnCooldown(remaining time.Duration) {
	if remaining <= 0 {
		cliui.Fprint(r.ErrOut, "\r\033[K")
		return
	}
	cliui.Fprintf(r.ErrOut, "\r\033[K  %s", cliui.DimStyle.Render(r.Msgs.T(cliui.MsgCooldown, remaining)))
}

// OnResult reports failures and saved documents.
func (r *Reporter) OnResult(res queue.Result) {
	if res.Err != nil {
		cliui.Fprintf(r.ErrOut, "  %s %s\n", cliui.FailMark,
			r.Msgs.T(cliui.MsgPromptFailed, res.Iteration, res.Total, res.Err))
	} else if !r.Quiet {
		cliui.Fprintf(r.Out, "\n  %s %s\n", cliui.SuccessMark,
			cliui.DimStyle.Render(r.Msgs.T(cliui.MsgPromptDone, res.Iteration, res.Total)))
	}

	for _, path := range res.Saved {
		cliui.Fprintf(r.Out, "  %s %s\n", cliui.SuccessMark, r.Msgs.T(cliui.MsgFileSaved, path))
	}
}

// Summary prints the totals of a run.
func (r *Reporter) Summary(sum queue.Summary) {
	cliui.Fprintf(r.Out, "\n  %s\n\n", cliui.HeaderStyle.Render(
		r.Msgs.T(cliui.MsgQueueDone, sum.Completed, sum.Failed, len(sum.Saved))))
}

// Stopped reports a cancelled run.
func (r *Reporter) Stopped() {
	cliui.Fprintf(r.ErrOut, "\n  %s %s\n", cliui.WarnStyle.Render("!"), r.Msgs.T(cliui.MsgStopped))
}

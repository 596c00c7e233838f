package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/mdpilot/pkg/fences"
	"github.com/papercomputeco/mdpilot/pkg/llm"
	"github.com/papercomputeco/mdpilot/pkg/stream"
)

// StreamPrinter is a stream.Sink that shows an answer in the terminal.
//
// In plain mode tokens are written as they arrive. In render mode the answer
// is held until Done and then printed once, with document delimiters
// unwrapped and the Markdown styled by glamour.
type StreamPrinter struct {
	out    io.Writer
	errOut io.Writer
	render bool

	mu      sync.Mutex
	started bool
}

// NewStreamPrinter writes answers to out and Error events to errOut.
func NewStreamPrinter(out, errOut io.Writer, render bool) *StreamPrinter {
	return &StreamPrinter{out: out, errOut: errOut, render: render}
}

// Send implements stream.Sink.
func (p *StreamPrinter) Send(ev llm.StreamEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case llm.EventToken:
		p.started = true
		if !p.render {
			fmt.Fprint(p.out, ev.Data)
		}

	case llm.EventDone:
		if p.render {
			p.printRendered(ev.Data)
		} else if p.started && !strings.HasSuffix(ev.Data, "\n") {
			fmt.Fprintln(p.out)
		}
		p.started = false

	case llm.EventError:
		if p.started {
			fmt.Fprintln(p.out)
		}
		Fprintf(p.errOut, "%s %s\n", FailMark, ErrorStyle.Render(ev.Data))
		p.started = false
	}
}

func (p *StreamPrinter) printRendered(content string) {
	rendered, err := RenderMarkdown(fences.Unwrap(content))
	if err != nil {
		fmt.Fprintln(p.out, content)
		return
	}
	fmt.Fprint(p.out, rendered)
}

var _ stream.Sink = (*StreamPrinter)(nil)

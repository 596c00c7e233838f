package sse

import "iter"

// Decoder couples a Splitter with Classify: chunks go in, classified lines
// come out in stream order.
type Decoder struct {
	splitter *Splitter
}

// NewDecoder returns a Decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{splitter: NewSplitter()}
}

// Feed appends chunk and yields every line it completes, classified.
// Ignored lines are yielded too so callers can count or trace them.
func (d *Decoder) Feed(chunk []byte) iter.Seq[Line] {
	lines := d.splitter.Feed(chunk)
	return func(yield func(Line) bool) {
		for raw := range lines {
			if !yield(Classify(raw)) {
				return
			}
		}
	}
}

// Pending reports how many bytes of an unterminated line are still buffered.
func (d *Decoder) Pending() int {
	return d.splitter.Buffered()
}

// Remainder returns the unterminated tail of the stream, if any.
func (d *Decoder) Remainder() string {
	return d.splitter.Remainder()
}

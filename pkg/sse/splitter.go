package sse

import (
	"bytes"
	"iter"
	"strings"
	"unicode/utf8"
)

// minCompactSize is the smallest consumed prefix worth reclaiming. Below it,
// the buffer is left alone and simply keeps growing.
const minCompactSize = 4096

// Splitter reassembles newline-delimited lines from a chunked byte stream.
//
// ┌────────────────────┬──────────────────────┬────────────────┐
// │ consumed (dropped) │ complete, not yet    │ partial line   │
// │                    │ returned lines       │ (no "\n" yet)  │
// └────────────────────┴──────────────────────┴────────────────┘
// 0                   head                  scanned         len(buf)
//
// head marks the first byte not yet returned as part of a line, scanned marks
// how far the newline search has already looked. Neither ever moves
// backwards except during compaction, which shifts both by the same amount, so
// every byte is scanned once and copied at most a constant number of times.
//
// A Splitter is not safe for concurrent use. It is meant to be owned by a
// single decode loop for the lifetime of one response.
type Splitter struct {
	buf     []byte
	head    int
	scanned int
}

// NewSplitter returns an empty Splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Append adds a chunk to the buffer. The chunk is copied, so callers may
// reuse it once Append returns.
func (s *Splitter) Append(chunk []byte) {
	s.compact()
	s.buf = append(s.buf, chunk...)
}

// Next returns the next complete line with its "\n" and at most one trailing
// "\r" removed. It returns false when only a partial line (or nothing) is
// left in the buffer.
//
// Bytes are decoded permissively: invalid UTF-8 sequences become U+FFFD.
// Since "\n" can never appear inside a multi-byte sequence, decoding per line
// gives the same result no matter where the chunk boundaries fell.
func (s *Splitter) Next() (string, bool) {
	i := bytes.IndexByte(s.buf[s.scanned:], '\n')
	if i < 0 {
		s.scanned = len(s.buf)
		return "", false
	}

	end := s.scanned + i
	raw := s.buf[s.head:end]
	raw = bytes.TrimSuffix(raw, []byte{'\r'})

	s.head = end + 1
	s.scanned = s.head

	return decode(raw), true
}

// Feed appends chunk and returns a sequence over every line completed by it,
// including lines completed by earlier chunks that were not yet pulled.
// Stopping the iteration early leaves the remaining lines buffered.
func (s *Splitter) Feed(chunk []byte) iter.Seq[string] {
	s.Append(chunk)
	return func(yield func(string) bool) {
		for {
			line, ok := s.Next()
			if !ok || !yield(line) {
				return
			}
		}
	}
}

// Remainder returns the buffered bytes that do not form a complete line yet.
func (s *Splitter) Remainder() string {
	return decode(s.buf[s.head:])
}

// Buffered returns the number of bytes held but not yet returned.
func (s *Splitter) Buffered() int {
	return len(s.buf) - s.head
}

// compact drops the consumed prefix once it dominates the buffer. The copy
// moves at most as many bytes as were consumed since the last compaction,
// which keeps the total cost linear in the stream length.
func (s *Splitter) compact() {
	if s.head == 0 {
		return
	}

	if s.head == len(s.buf) {
		s.buf = s.buf[:0]
		s.head = 0
		s.scanned = 0
		return
	}

	if s.head < minCompactSize || s.head < len(s.buf)-s.head {
		return
	}

	n := copy(s.buf, s.buf[s.head:])
	s.buf = s.buf[:n]
	s.scanned -= s.head
	s.head = 0
}

func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

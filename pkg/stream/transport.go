package stream

import (
	"context"
	"io"
)

// DefaultChunkSize is the read buffer used when adapting an io.Reader.
const DefaultChunkSize = 4096

// Transport yields the raw bytes of a response body, lazily, in whatever
// chunk sizes the network delivers. Next returns io.EOF once the body is
// exhausted; any other error is a transport failure.
//
// The returned slice is only valid until the next call to Next.
type Transport interface {
	Next(ctx context.Context) ([]byte, error)
}

// Response is the part of an HTTP response the driver needs.
type Response struct {
	// StatusCode is the numeric HTTP status (e.g. 200, 401).
	StatusCode int

	// Body streams the response body.
	Body Transport
}

// Success reports whether the status is in the 2xx range.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ReaderTransport adapts an io.ReadCloser, typically an *http.Response body,
// into a Transport.
type ReaderTransport struct {
	rc  io.ReadCloser
	buf []byte
	err error
}

// NewReaderTransport wraps rc. A chunkSize <= 0 selects DefaultChunkSize.
func NewReaderTransport(rc io.ReadCloser, chunkSize int) *ReaderTransport {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ReaderTransport{
		rc:  rc,
		buf: make([]byte, chunkSize),
	}
}

// Next reads the next chunk. When ctx is cancelled while a read is blocked,
// the underlying reader is closed so the read returns promptly, and the
// context error is reported instead of whatever the aborted read returned.
func (t *ReaderTransport) Next(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	if err := ctx.Err(); err != nil {
		t.err = err
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = t.rc.Close()
	})
	defer stop()

	for {
		n, err := t.rc.Read(t.buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			t.err = err
		}

		if n > 0 {
			return t.buf[:n], nil
		}
		if t.err != nil {
			return nil, t.err
		}
	}
}

// Close releases the underlying reader.
func (t *ReaderTransport) Close() error {
	return t.rc.Close()
}

// chunkTransport replays a fixed list of chunks.
type chunkTransport struct {
	chunks [][]byte
	err    error
}

// FromChunks returns a Transport that yields chunks in order and then io.EOF.
// It suits callers that already hold the whole body in memory, and tests.
func FromChunks(chunks ...[]byte) Transport {
	return &chunkTransport{chunks: chunks}
}

// FromChunksWithError is FromChunks, but the final result is err instead of
// io.EOF.
func FromChunksWithError(err error, chunks ...[]byte) Transport {
	if err == nil {
		err = io.EOF
	}
	return &chunkTransport{chunks: chunks, err: err}
}

func (t *chunkTransport) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.chunks) == 0 {
		if t.err != nil {
			return nil, t.err
		}
		return nil, io.EOF
	}

	chunk := t.chunks[0]
	t.chunks = t.chunks[1:]
	return chunk, nil
}

// readBody drains t into memory, up to limit bytes. Read failures end the
// drain early; whatever arrived before the failure is kept.
func readBody(ctx context.Context, t Transport, limit int) string {
	var body []byte
	for len(body) < limit {
		chunk, err := t.Next(ctx)
		body = append(body, chunk...)
		if err != nil {
			break
		}
	}

	if len(body) > limit {
		body = body[:limit]
	}
	return string(body)
}

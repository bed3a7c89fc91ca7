// Package stream turns the unframed standard output of the external device tool
// into complete JSON records.
//
// The tool writes JSON objects back to back without any explicit framing, so
// a buffer is only considered complete when its trimmed content ends with a
// closing brace and decodes as a sequence of objects. Anything else is kept
// buffered until more bytes arrive.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// DefaultMaxBufferSize is the maximum amount of bytes a framer buffers
// without resolving a complete record.
const DefaultMaxBufferSize = 16 * 1024 * 1024

const readChunkSize = 32 * 1024

var (
	// ErrFrameTooLarge is returned when the buffered data exceeds the framer limit
	// without resolving into complete records.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrTruncatedStream is returned when a stream ends with unresolved buffered data.
	ErrTruncatedStream = errors.New("truncated stream")
)

// Records written back to back, we need to separate them to decode the buffer as a list.
var adjacentRecordsRegexp = regexp.MustCompile(`\}\s*\n\s*\{`)

// Framer is an incremental parser for the record stream. It is not safe for
// concurrent use, one framer belongs to a single stream.
type Framer struct {
	buf           []byte
	maxBufferSize int
}

// NewFramer returns a new framer. A non positive maxBufferSize uses DefaultMaxBufferSize.
func NewFramer(maxBufferSize int) *Framer {
	if maxBufferSize <= 0 {
		maxBufferSize = DefaultMaxBufferSize
	}
	return &Framer{maxBufferSize: maxBufferSize}
}

// Feed appends a chunk to the buffer and returns the complete records, if any.
// When the buffer can't be resolved yet it returns no records and no error, the
// data stays buffered for the next call.
func (f *Framer) Feed(chunk []byte) ([]json.RawMessage, error) {
	f.buf = append(f.buf, chunk...)

	records, complete := f.parse()
	if complete {
		f.buf = f.buf[:0]
		return records, nil
	}

	if len(f.buf) > f.maxBufferSize {
		return nil, fmt.Errorf("%d bytes buffered without a complete record (limit %d): %w", len(f.buf), f.maxBufferSize, ErrFrameTooLarge)
	}

	return nil, nil
}

// Buffered returns the number of unresolved bytes.
func (f *Framer) Buffered() int {
	return len(bytes.TrimSpace(f.buf))
}

func (f *Framer) parse() ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(f.buf)
	if len(trimmed) == 0 {
		f.buf = f.buf[:0]
		return nil, false
	}
	if trimmed[len(trimmed)-1] != '}' {
		return nil, false
	}

	joined := adjacentRecordsRegexp.ReplaceAll(trimmed, []byte("},\n{"))
	data := make([]byte, 0, len(joined)+2)
	data = append(data, '[')
	data = append(data, joined...)
	data = append(data, ']')

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		// Looked complete but it isn't, wait for more data.
		return nil, false
	}

	return records, true
}

// Scan reads r until EOF feeding the framer and calling fn for every complete
// record in order. It stops on the first fn error.
func Scan(ctx context.Context, r io.Reader, f *Framer, fn func(record json.RawMessage) error) error {
	chunk := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(chunk)
		if n > 0 {
			records, ferr := f.Feed(chunk[:n])
			if ferr != nil {
				return ferr
			}
			for _, record := range records {
				if err := fn(record); err != nil {
					return err
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				if f.Buffered() > 0 {
					return fmt.Errorf("stream ended with %d unresolved bytes: %w", f.Buffered(), ErrTruncatedStream)
				}
				return nil
			}
			return fmt.Errorf("could not read stream: %w", err)
		}
	}
}

package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

const (
	// readSize is the size of a single read from the source.
	readSize = 32 * 1024

	// MaxEventSize caps the pending partial event held in the buffer.
	MaxEventSize = 1024 * 1024
)

// ErrEventTooLarge is returned when a single event grows beyond MaxEventSize
// without a terminating blank line.
var ErrEventTooLarge = errors.New("sse: event exceeds maximum size")

var boundary = []byte("\n\n")

// Reader reads logical SSE events from a source io.Reader.
//
// ┌──────────────────┐
// │ source io.Reader │  arbitrary chunks, no semantic boundaries
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │ buffer           │  at most one trailing, possibly incomplete event
// └──────────────────┘
// │ split on "\n\n"
// ▼
// ┌──────────────────┐
// │ Reader.Next()    │──▶ Event
// └──────────────────┘
//
// The buffer holds raw bytes rather than decoded text. A "\n" byte never
// occurs inside a multi-byte UTF-8 sequence, so splitting on the boundary
// cannot cut a character in half, and a character split across two reads is
// reassembled before its event is surfaced.
//
// A Reader is single-use and must not be shared between requests.
type Reader struct {
	src   io.Reader
	chunk []byte

	// buf holds bytes received but not yet resolved into a complete event.
	buf []byte

	// pending holds complete events found in the last read, in wire order.
	pending []Event

	err  error
	eof  bool
	done bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:   src,
		chunk: make([]byte, readSize),
	}
}

// Next returns the next complete event. It blocks until an event is fully
// delimited in the stream or the source is exhausted.
//
// Next returns nil, nil when the stream has ended: either the source hit
// io.EOF and the trailing buffer was flushed, or the terminal sentinel was
// returned by a previous call. Bytes after the sentinel are never read.
//
// Any other read error from the source is returned once all events that were
// complete before the error have been returned.
func (r *Reader) Next() (*Event, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			if ev.IsDone() {
				r.stop()
			}
			return &ev, nil
		}

		switch {
		case r.done:
			return nil, nil
		case r.err != nil:
			err := r.err
			r.stop()
			return nil, err
		case r.eof:
			r.stop()
			return nil, nil
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			if ferr := r.feed(r.chunk[:n]); ferr != nil {
				r.err = ferr
				continue
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				r.flush()
				continue
			}
			r.err = err
		}
	}
}

// Buffered returns the number of bytes held as a pending partial event.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// feed appends p to the buffer and moves every complete segment into the
// pending queue. The trailing segment always stays in the buffer, even when
// empty, because more bytes for it may still arrive.
func (r *Reader) feed(p []byte) error {
	// A boundary may straddle the previous buffer tail and p.
	start := max(len(r.buf)-(len(boundary)-1), 0)
	r.buf = append(r.buf, p...)

	consumed := 0
	for {
		i := bytes.Index(r.buf[start:], boundary)
		if i < 0 {
			break
		}
		end := start + i
		r.segment(r.buf[consumed:end], false)
		consumed = end + len(boundary)
		start = consumed
	}

	if consumed > 0 {
		r.buf = append(r.buf[:0], r.buf[consumed:]...)
	}

	if len(r.buf) > MaxEventSize {
		return ErrEventTooLarge
	}

	return nil
}

// flush treats a non-blank unterminated buffer as the final event.
func (r *Reader) flush() {
	if len(bytes.TrimSpace(r.buf)) > 0 {
		r.segment(r.buf, true)
	}
	r.buf = nil
}

// segment converts one complete segment into an Event and queues it.
// Blank segments are keep-alives and are discarded. A trailing segment
// flushed at end of input that carries no "data:" field is taken verbatim
// as the payload.
func (r *Reader) segment(seg []byte, trailing bool) {
	text := strings.TrimSpace(string(seg))
	if text == "" {
		return
	}

	data, ok := parseSegment(text)
	if !ok {
		if !trailing {
			return
		}
		data = text
	}

	r.pending = append(r.pending, Event{Data: data})
}

// stop releases the buffer and marks the stream as finished.
func (r *Reader) stop() {
	r.done = true
	r.pending = nil
	r.buf = nil
}

// parseSegment extracts the data payload from a trimmed segment. Lines have
// the form "field:value" where a single leading space in the value is
// stripped. Comment lines (leading ':') and fields other than "data" are
// ignored. Multiple data lines are joined with "\n".
func parseSegment(text string) (string, bool) {
	var (
		data    strings.Builder
		hasData bool
	)

	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}

		if hasData {
			data.WriteByte('\n')
		}
		data.WriteString(strings.TrimPrefix(value, " "))
		hasData = true
	}

	return data.String(), hasData
}

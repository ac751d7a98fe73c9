package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

var (
	dataPrefix = []byte("data: ")
	doneFrame  = []byte("data: " + DoneSentinel + "\n\n")
)

// Writer serializes logical events into SSE frames. Every call produces
// exactly one frame in a single Write on the destination, with no buffering
// or coalescing, so a frame reaches the caller as soon as the destination
// accepts it.
type Writer struct {
	dst    io.Writer
	frames int
}

// NewWriter returns a Writer that emits frames to dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// WriteData writes the frame "data: <payload>\n\n".
func (w *Writer) WriteData(payload []byte) error {
	frame := make([]byte, 0, len(dataPrefix)+len(payload)+2)
	frame = append(frame, dataPrefix...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	return w.write(frame)
}

// WriteJSON marshals v and writes it as a data frame.
func (w *Writer) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding sse payload: %w", err)
	}

	return w.WriteData(payload)
}

// WriteDone writes the terminal frame "data: [DONE]\n\n".
func (w *Writer) WriteDone() error {
	return w.write(doneFrame)
}

// Frames returns the number of frames successfully written.
func (w *Writer) Frames() int {
	return w.frames
}

func (w *Writer) write(frame []byte) error {
	if _, err := w.dst.Write(frame); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Package pipeline translates an upstream DeepInfra SSE stream into an OpenAI
// SSE stream, one frame per resolved event.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
	"github.com/papercomputeco/deepbridge/pkg/sse"
	"github.com/papercomputeco/deepbridge/pkg/utils"
)

// maxLoggedPayload caps how much of a dropped payload is written to the log.
const maxLoggedPayload = 256

// Options configures a single translation.
type Options struct {
	// Model is the caller-requested model stamped on every chunk.
	Model string

	// IncludeUsage forwards usage on chunks and keeps usage-only chunks.
	IncludeUsage bool

	Logger *slog.Logger
}

// Result summarizes one translated stream.
type Result struct {
	// Frames counts every frame written to the caller, the terminal one included.
	Frames int

	// Dropped counts upstream events that could not be parsed.
	Dropped int

	// Skipped counts usage-only events consumed without a frame.
	Skipped int

	// UpstreamDone reports whether upstream sent its own terminal sentinel.
	// When false and the stream ended cleanly the terminal frame was synthesized.
	UpstreamDone bool

	// Usage is the last usage record seen upstream.
	Usage *dialect.Usage

	// FinishReason is the last non-empty finish reason seen upstream.
	FinishReason string
}

// Synthesized reports whether the terminal frame was produced locally.
func (r *Result) Synthesized() bool {
	return !r.UpstreamDone
}

// Translate reads src until upstream signals the end of the stream, writing a
// converted frame to dst for every event as it resolves. Exactly one terminal
// frame is written on a clean end, whether or not upstream sent one.
//
// A read error on src, a write error on dst, or a cancelled ctx aborts the
// translation and is returned. No terminal frame is written in that case, so
// the caller sees a truncated stream rather than a false completion.
func Translate(ctx context.Context, src io.Reader, dst io.Writer, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	reader := sse.NewReader(src)
	writer := sse.NewWriter(dst)
	result := &Result{}

	for {
		if err := ctx.Err(); err != nil {
			result.Frames = writer.Frames()
			return result, err
		}

		ev, err := reader.Next()
		if err != nil {
			result.Frames = writer.Frames()
			return result, fmt.Errorf("reading upstream stream: %w", err)
		}
		if ev == nil {
			break
		}
		if ev.IsDone() {
			result.UpstreamDone = true
			break
		}

		delta, err := dialect.ParseDelta([]byte(ev.Data))
		if err != nil {
			result.Dropped++
			log.Warn("dropping malformed upstream event",
				"error", err,
				"payload", utils.Truncate(ev.Data, maxLoggedPayload),
			)
			continue
		}

		if delta.Usage != nil {
			result.Usage = delta.Usage
		}
		if delta.FinishReason != nil {
			result.FinishReason = *delta.FinishReason
		}

		if !delta.HasChoice && !opts.IncludeUsage {
			result.Skipped++
			continue
		}

		if err := writer.WriteJSON(dialect.ConvertDelta(delta, opts.Model, opts.IncludeUsage)); err != nil {
			result.Frames = writer.Frames()
			return result, fmt.Errorf("writing caller stream: %w", err)
		}
	}

	if err := writer.WriteDone(); err != nil {
		result.Frames = writer.Frames()
		return result, fmt.Errorf("writing terminal frame: %w", err)
	}
	result.Frames = writer.Frames()

	log.Debug("stream translated",
		"frames", result.Frames,
		"dropped", result.Dropped,
		"skipped", result.Skipped,
		"upstream_done", result.UpstreamDone,
	)

	return result, nil
}

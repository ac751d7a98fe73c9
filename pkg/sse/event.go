// Package sse provides a purpose-built SSE (Server-Sent Events) frame reader
// and writer for the deepbridge proxy. The reader reconstructs logical events
// from an upstream byte stream that may be split at arbitrary read boundaries;
// the writer re-emits logical events as wire-correct frames to the caller.
//
// Only "data:" fields are meaningful here. Both the upstream and the
// caller-facing dialects terminate a stream with a "data: [DONE]" frame.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the payload of the terminal frame in both dialects.
const DoneSentinel = "[DONE]"

// Event represents a single logical SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string
}

// IsDone reports whether the event is the terminal sentinel.
func (e *Event) IsDone() bool {
	return e != nil && e.Data == DoneSentinel
}

// Package eventstream defines the completion event schema and the publishers
// that ship it off the request path.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionFinished is emitted after every completions exchange.
	EventTypeCompletionFinished = "deepbridge.completion.finished"
)

// CompletionEvent is a transport-neutral record of one completions exchange.
type CompletionEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	RequestMeta   RequestMeta    `json:"request_meta"`
	Completion    CompletionMeta `json:"completion"`
}

// EventSource identifies the proxy instance and upstream that served the request.
type EventSource struct {
	Service  string `json:"service"`
	Upstream string `json:"upstream"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	RequestID   string    `json:"request_id"`
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
	HTTPStatus  int       `json:"http_status"`
}

// CompletionMeta describes what the upstream produced.
type CompletionMeta struct {
	Model        string         `json:"model"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        *dialect.Usage `json:"usage,omitempty"`

	// Stream counters, zero for unary exchanges.
	Frames              int  `json:"frames,omitempty"`
	DroppedEvents       int  `json:"dropped_events,omitempty"`
	SynthesizedTerminal bool `json:"synthesized_terminal,omitempty"`

	// Error is set when the exchange ended in a transport fault.
	Error string `json:"error,omitempty"`
}

// NewCompletionEvent stamps a fresh event with its envelope fields.
func NewCompletionEvent(source EventSource, meta RequestMeta, completion CompletionMeta) *CompletionEvent {
	return &CompletionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompletionFinished,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Completion:    completion,
	}
}

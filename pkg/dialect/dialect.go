// Package dialect holds the two chat-completion JSON dialects the proxy speaks
// and the pure conversion functions between them.
//
// Upstream records (DeepInfra) are read once at the parse boundary into
// partially populated structs with documented defaults. Caller records
// (OpenAI) are plain structs marshaled with encoding/json.
package dialect

import "errors"

const (
	// ObjectChunk tags an incremental streaming chunk.
	ObjectChunk = "chat.completion.chunk"

	// ObjectCompletion tags a unary completion response.
	ObjectCompletion = "chat.completion"

	ObjectList  = "list"
	ObjectModel = "model"

	// RoleAssistant is the fixed role of every unary response message.
	RoleAssistant = "assistant"

	// DefaultFinishReason is used when a unary upstream response omits one.
	DefaultFinishReason = "stop"
)

var (
	// ErrInvalidJSON is returned when a payload is not syntactically valid JSON.
	ErrInvalidJSON = errors.New("invalid json")

	// ErrNotObject is returned when a payload is valid JSON but not an object.
	ErrNotObject = errors.New("json payload is not an object")
)

package dialect

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ChatRequest is an inbound OpenAI-style chat completion request.
type ChatRequest struct {
	// Model is "" when the field is absent, null, false or "". Those fall
	// back to the default model.
	Model string

	// InvalidModel is set when model is present with any other non-string
	// value. Such a request must be rejected.
	InvalidModel bool

	// Messages is forwarded to the upstream untouched.
	Messages json.RawMessage

	Stream      bool
	MaxTokens   *int
	Temperature *float64

	// IncludeUsage mirrors stream_options.include_usage. When set, streamed
	// chunks carry usage and the final usage-only chunk is forwarded.
	IncludeUsage bool
}

// ParseChatRequest reads an inbound request body. Optional fields with the
// wrong JSON type are treated as absent; stream must be the literal true to
// enable streaming.
func ParseChatRequest(data []byte) (*ChatRequest, error) {
	root, err := parseObject(data)
	if err != nil {
		return nil, fmt.Errorf("parsing chat request: %w", err)
	}

	req := &ChatRequest{
		Stream:       root.Get("stream").Type == gjson.True,
		IncludeUsage: root.Get("stream_options.include_usage").Type == gjson.True,
	}

	switch m := root.Get("model"); m.Type {
	case gjson.String:
		req.Model = m.Str
	case gjson.Null, gjson.False:
	default:
		req.InvalidModel = true
	}

	if m := root.Get("messages"); m.Exists() && m.Type != gjson.Null {
		req.Messages = json.RawMessage(m.Raw)
	}

	if mt := root.Get("max_tokens"); mt.Type == gjson.Number {
		n := int(mt.Int())
		req.MaxTokens = &n
	}

	if t := root.Get("temperature"); t.Type == gjson.Number {
		f := t.Float()
		req.Temperature = &f
	}

	return req, nil
}

// ChatCompletionChunk is one caller-facing streamed chunk.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`

	// Usage is the upstream usage object as sent.
	Usage json.RawMessage `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Index        int             `json:"index"`
	Delta        json.RawMessage `json:"delta"`
	FinishReason *string         `json:"finish_reason"`
}

// ChatCompletion is a caller-facing unary response.
type ChatCompletion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   json.RawMessage    `json:"usage"`
}

type CompletionChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Message struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// Model is a ModelDescriptor as served by /v1/models.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// NewModelList builds the static model listing. Every descriptor shares the
// same created timestamp.
func NewModelList(ids []string, ownedBy string, created int64) ModelList {
	data := make([]Model, 0, len(ids))
	for _, id := range ids {
		data = append(data, Model{
			ID:      id,
			Object:  ObjectModel,
			Created: created,
			OwnedBy: ownedBy,
		})
	}
	return ModelList{Object: ObjectList, Data: data}
}

// Find returns the descriptor with the given id.
func (l ModelList) Find(id string) (Model, bool) {
	for _, m := range l.Data {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Error types carried in ErrorDetail.Type.
const (
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeNotFound       = "not_found_error"
	ErrorTypeUpstream       = "upstream_error"
	ErrorTypeServer         = "server_error"
)

// ErrorResponse is the OpenAI error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func NewErrorResponse(errType, code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Message: message, Type: errType, Code: code}}
}

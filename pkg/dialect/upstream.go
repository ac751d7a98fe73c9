package dialect

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Usage is the token accounting record shared by both dialects.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UpstreamDelta is one incremental generation step read from the upstream
// stream. Only the first choice is considered.
type UpstreamDelta struct {
	ID      string
	Created int64
	Model   string

	// HasChoice reports whether choices[0] was present. Usage-only chunks sent
	// at the end of a stream carry an empty choices list.
	HasChoice bool

	// Delta is choices[0].delta copied verbatim, nil when absent or null.
	Delta json.RawMessage

	// FinishReason is nil when upstream omits it or sends null or "".
	FinishReason *string

	// Usage is the typed token count; RawUsage is the upstream usage object
	// verbatim, extra fields included. Both are nil when usage is absent.
	Usage    *Usage
	RawUsage json.RawMessage
}

// UpstreamResponse is a complete, non-streamed upstream completion.
type UpstreamResponse struct {
	ID      string
	Created int64
	Model   string

	// Content is choices[0].message.content, "" when absent.
	Content string

	// ReasoningContent is choices[0].message.reasoning_content, emitted by
	// reasoning models.
	ReasoningContent string

	// FinishReason is "" when upstream omits it.
	FinishReason string

	Usage    *Usage
	RawUsage json.RawMessage
}

// ParseDelta reads one streamed upstream payload. Any JSON object is
// accepted; missing fields are left at their zero values.
func ParseDelta(data []byte) (*UpstreamDelta, error) {
	root, err := parseObject(data)
	if err != nil {
		return nil, err
	}

	d := &UpstreamDelta{
		ID:      root.Get("id").String(),
		Created: root.Get("created").Int(),
		Model:   root.Get("model").String(),
	}
	d.Usage, d.RawUsage = parseUsage(root.Get("usage"))

	first := root.Get("choices.0")
	if !first.IsObject() {
		return d, nil
	}
	d.HasChoice = true

	if delta := first.Get("delta"); delta.Exists() && delta.Type != gjson.Null {
		d.Delta = json.RawMessage(delta.Raw)
	}

	if fr := first.Get("finish_reason"); fr.Type == gjson.String && fr.Str != "" {
		reason := fr.Str
		d.FinishReason = &reason
	}

	return d, nil
}

// ParseResponse reads a complete upstream response body. Only syntactically
// invalid JSON is an error: a body of the wrong shape yields an empty record
// so the converted response stays well formed.
func ParseResponse(data []byte) (*UpstreamResponse, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parsing upstream response: %w", ErrInvalidJSON)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return &UpstreamResponse{}, nil
	}

	first := root.Get("choices.0")
	r := &UpstreamResponse{
		ID:               root.Get("id").String(),
		Created:          root.Get("created").Int(),
		Model:            root.Get("model").String(),
		Content:          stringField(first.Get("message.content")),
		ReasoningContent: stringField(first.Get("message.reasoning_content")),
		FinishReason:     stringField(first.Get("finish_reason")),
	}
	r.Usage, r.RawUsage = parseUsage(root.Get("usage"))
	return r, nil
}

func parseObject(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, ErrInvalidJSON
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return gjson.Result{}, ErrNotObject
	}
	return root, nil
}

func parseUsage(u gjson.Result) (*Usage, json.RawMessage) {
	if !u.IsObject() {
		return nil, nil
	}
	return &Usage{
		PromptTokens:     int(u.Get("prompt_tokens").Int()),
		CompletionTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:      int(u.Get("total_tokens").Int()),
	}, json.RawMessage(u.Raw)
}

func stringField(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

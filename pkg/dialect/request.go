package dialect

import "encoding/json"

// UpstreamRequest is the body POSTed to the upstream chat completions endpoint.
type UpstreamRequest struct {
	Model         string                `json:"model"`
	Messages      json.RawMessage       `json:"messages"`
	Stream        bool                  `json:"stream"`
	MaxTokens     *int                  `json:"max_tokens,omitempty"`
	Temperature   *float64              `json:"temperature,omitempty"`
	StreamOptions UpstreamStreamOptions `json:"stream_options"`
}

type UpstreamStreamOptions struct {
	IncludeUsage         bool `json:"include_usage"`
	ContinuousUsageStats bool `json:"continuous_usage_stats"`
}

// NewUpstreamRequest translates a caller request for the given resolved model.
// Usage accounting is always requested so the proxy can meter every exchange.
func NewUpstreamRequest(req *ChatRequest, model string) *UpstreamRequest {
	messages := req.Messages
	if messages == nil {
		messages = json.RawMessage("null")
	}

	return &UpstreamRequest{
		Model:       model,
		Messages:    messages,
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		StreamOptions: UpstreamStreamOptions{
			IncludeUsage:         true,
			ContinuousUsageStats: true,
		},
	}
}

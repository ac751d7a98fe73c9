// Package header provides header policy for the deepbridge proxy.
//
// This proxy sits between a client and the DeepInfra OpenAI-compatible API:
//
//	Client <--> Proxy <--> DeepInfra
//
// Nothing from the client leg is forwarded upstream. The upstream leg carries
// a fixed set of headers that mimic the DeepInfra web playground, and the
// client leg gets its own event-stream headers when streaming.
package header

import (
	"math/rand/v2"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	// SourceHeader marks the request origin for DeepInfra.
	SourceHeader = "X-Deepinfra-Source"

	// RequestIDHeader carries the per-request id on responses.
	RequestIDHeader = "X-Request-Id"

	contentTypeJSON        = "application/json"
	contentTypeEventStream = "text/event-stream"
)

// UserAgents is the pool of browser User-Agent strings one of which is sent
// with each upstream request.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
	"Mozilla/5.0 (Linux; Android 10; SM-G980F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
}

// Config holds the values the Handler stamps on upstream requests.
type Config struct {
	// Source is sent as X-Deepinfra-Source (e.g. "web-page").
	Source string

	// Referer is sent as the Referer header.
	Referer string

	// APIKey, when set, is sent as a bearer token.
	APIKey string
}

// Handler manages headers between proxy connections.
type Handler struct {
	config Config
	pick   func(n int) int
}

// NewHandler creates a new header Handler.
func NewHandler(c Config) *Handler {
	return &Handler{
		config: c,
		pick:   rand.IntN,
	}
}

// UserAgent returns a User-Agent from the pool.
func (h *Handler) UserAgent() string {
	return UserAgents[h.pick(len(UserAgents))]
}

// SetUpstreamRequestHeaders sets the outbound headers on a request bound for
// the upstream API.
func (h *Handler) SetUpstreamRequestHeaders(req *http.Request, stream bool) {
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", h.UserAgent())

	if h.config.Source != "" {
		req.Header.Set(SourceHeader, h.config.Source)
	}
	if h.config.Referer != "" {
		req.Header.Set("Referer", h.config.Referer)
	}
	if h.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}

	if stream {
		req.Header.Set("Accept", contentTypeEventStream)
	} else {
		req.Header.Set("Accept", contentTypeJSON)
	}
}

// SetClientStreamHeaders sets the event-stream response headers on the
// client leg. It must be called before the body stream is attached.
func (h *Handler) SetClientStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, contentTypeEventStream)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
}

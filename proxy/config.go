package proxy

import (
	"time"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
)

// Config is the proxy server configuration. It is built once at startup and
// never mutated afterwards.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// UpstreamURL is the OpenAI-compatible API root of the upstream
	// (e.g., "https://api.deepinfra.com/v1/openai")
	UpstreamURL string

	// UpstreamKey is an optional bearer token sent upstream.
	UpstreamKey string

	// UpstreamTimeout bounds the wait for upstream headers and for each body read.
	UpstreamTimeout time.Duration

	// Source and Referer are stamped on every upstream request.
	Source  string
	Referer string

	// AuthKey is the bearer token callers must present on /v1/chat/completions.
	AuthKey string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// Models is the allow-list served on /v1/models. Requests for any other
	// model are rejected before an upstream call is made.
	Models dialect.ModelList

	// MetricsEnabled serves Prometheus metrics on /metrics.
	MetricsEnabled bool

	// NumWorkers and QueueSize size the completion event worker pool.
	// Zero values use the pool defaults.
	NumWorkers uint
	QueueSize  uint
}

// Package upstream issues translated chat completion requests to the
// DeepInfra OpenAI-compatible API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
	"github.com/papercomputeco/deepbridge/proxy/header"
)

const (
	chatCompletionsPath = "/chat/completions"

	// maxErrorBody caps how much of a failed upstream body is kept.
	maxErrorBody = 4 << 10

	defaultTimeout = 5 * time.Minute
)

// ErrStatus is wrapped by every StatusError.
var ErrStatus = errors.New("upstream returned non-success status")

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("DeepInfra API error: %s", e.StatusText())
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// StatusText is the reason phrase of the upstream status, falling back to the
// canonical text for the code.
func (e *StatusError) StatusText() string {
	if _, reason, ok := strings.Cut(e.Status, " "); ok && reason != "" {
		return reason
	}
	if t := http.StatusText(e.StatusCode); t != "" {
		return t
	}
	return e.Status
}

// Config is the upstream client configuration.
type Config struct {
	// BaseURL is the OpenAI-compatible API root, e.g. "https://api.deepinfra.com/v1/openai".
	BaseURL string

	// Timeout bounds the wait for response headers and for each read of the
	// response body. A stream that keeps producing data is never cut off.
	Timeout time.Duration

	Headers *header.Handler
	Logger  *slog.Logger
}

// Client posts chat completion requests upstream.
type Client struct {
	endpoint   string
	headers    *header.Handler
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a new upstream Client.
func New(c Config) (*Client, error) {
	if c.BaseURL == "" {
		return nil, errors.New("upstream base URL is required")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	headers := c.Headers
	if headers == nil {
		headers = header.NewHandler(header.Config{})
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Only stalls are bounded: the wait for headers and each body read.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &Client{
		endpoint:   strings.TrimRight(c.BaseURL, "/") + chatCompletionsPath,
		headers:    headers,
		httpClient: &http.Client{Transport: transport},
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Endpoint is the full URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ChatCompletions posts req upstream. On success the caller owns the returned
// response and must close its body. A non-2xx answer is returned as a
// *StatusError with the body already consumed.
func (c *Client) ChatCompletions(ctx context.Context, req *dialect.UpstreamRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream request: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	c.headers.SetUpstreamRequestHeaders(httpReq, req.Stream)

	c.logger.Debug("forwarding request to upstream",
		"url", c.endpoint,
		"model", req.Model,
		"stream", req.Stream,
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer cancel(nil)
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       respBody,
		}
	}

	httpResp.Body = newIdleBody(ctx, cancel, httpResp.Body, c.timeout)
	return httpResp, nil
}

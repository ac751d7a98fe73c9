package proxy

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
	"github.com/papercomputeco/deepbridge/pkg/eventstream"
	"github.com/papercomputeco/deepbridge/pkg/pipeline"
	"github.com/papercomputeco/deepbridge/proxy/upstream"
	"github.com/papercomputeco/deepbridge/proxy/worker"
)

// maxUnaryBody caps how much of a non-streamed upstream body is read.
const maxUnaryBody = 32 << 20

// exchange is the per-request state handed from the dispatcher to the
// streaming and unary paths.
type exchange struct {
	requestID    string
	path         string
	model        string
	streaming    bool
	includeUsage bool
	startedAt    time.Time
	logger       *slog.Logger
}

// requireAuth rejects requests whose bearer token does not match the
// configured key.
func (p *Proxy) requireAuth(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(p.config.AuthKey)) != 1 {
		p.requestLogger(c).Warn("rejected unauthenticated request", "path", c.Path())
		return c.Status(fiber.StatusUnauthorized).JSON(dialect.NewErrorResponse(
			dialect.ErrorTypeAuthentication, "invalid_api_key", "Unauthorized",
		))
	}
	return c.Next()
}

// bearerToken strips a "Bearer " scheme when present. A bare token is
// accepted as is.
func bearerToken(value string) string {
	return strings.TrimSpace(strings.Replace(value, "Bearer ", "", 1))
}

// handleChatCompletions validates the request, calls upstream once and
// routes the answer to the streaming or unary path.
func (p *Proxy) handleChatCompletions(c *fiber.Ctx) error {
	log := p.requestLogger(c)

	req, err := dialect.ParseChatRequest(c.Body())
	if err != nil {
		log.Warn("failed to parse request", "error", err)
		return invalidRequest(c, "invalid_json", "Request body must be a JSON object")
	}

	if req.InvalidModel {
		log.Warn("rejected request with a non-string model")
		return invalidRequest(c, "model_not_found", "Invalid model specified")
	}

	model := req.Model
	if model == "" {
		model = p.config.DefaultModel
	}
	if _, ok := p.config.Models.Find(model); !ok {
		log.Warn("rejected request for unknown model", "model", model)
		return invalidRequest(c, "model_not_found", "Invalid model specified")
	}
	if req.Messages == nil {
		return invalidRequest(c, "missing_messages", "messages is required")
	}

	ex := &exchange{
		requestID:    requestID(c),
		path:         c.Path(),
		model:        model,
		streaming:    req.Stream,
		includeUsage: req.IncludeUsage,
		startedAt:    time.Now(),
		logger:       log.With("model", model, "stream", req.Stream),
	}

	ex.logger.Debug("parsed request", "messages_bytes", len(req.Messages))

	upReq := dialect.NewUpstreamRequest(req, model)
	if req.Stream {
		return p.handleStreaming(c, ex, upReq)
	}
	return p.handleUnary(c, ex, upReq)
}

// handleUnary relays a non-streamed completion.
func (p *Proxy) handleUnary(c *fiber.Ctx, ex *exchange, upReq *dialect.UpstreamRequest) error {
	httpResp, err := p.upstream.ChatCompletions(c.Context(), upReq)
	if err != nil {
		return p.upstreamFailure(c, ex, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxUnaryBody))
	p.metrics.ObserveUpstream(ex.model, httpResp.StatusCode, time.Since(ex.startedAt))
	if err != nil {
		ex.logger.Error("failed to read upstream response", "error", err)
		return p.fail(c, ex, fiber.StatusBadGateway, "Failed to read upstream response", err)
	}

	parsed, err := dialect.ParseResponse(body)
	if err != nil {
		ex.logger.Error("failed to parse upstream response", "error", err)
		return p.fail(c, ex, fiber.StatusBadGateway, "Upstream returned an invalid response", err)
	}

	resp := dialect.ConvertResponse(parsed, ex.model)

	ex.logger.Debug("received response from upstream",
		"finish_reason", resp.Choices[0].FinishReason,
		"duration", time.Since(ex.startedAt),
	)

	var usage dialect.Usage
	if parsed.Usage != nil {
		usage = *parsed.Usage
	}
	p.metrics.ObserveTokens(ex.model, usage.PromptTokens, usage.CompletionTokens)
	p.enqueueCompletion(ex, fiber.StatusOK, eventstream.CompletionMeta{
		FinishReason: resp.Choices[0].FinishReason,
		Usage:        &usage,
	})

	return c.JSON(resp)
}

// handleStreaming relays a streamed completion through the translation
// pipeline.
func (p *Proxy) handleStreaming(c *fiber.Ctx, ex *exchange, upReq *dialect.UpstreamRequest) error {
	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the translation runs
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open. The cancel func releases the upstream once it finishes.
	ctx, cancel := context.WithCancel(context.Background())

	httpResp, err := p.upstream.ChatCompletions(ctx, upReq)
	if err != nil {
		cancel()
		return p.upstreamFailure(c, ex, err)
	}
	p.metrics.ObserveUpstream(ex.model, httpResp.StatusCode, time.Since(ex.startedAt))

	p.headerHandler.SetClientStreamHeaders(c)

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter buffers writes internally, so a flush in the
	// callback does not reach the TCP socket. With io.Pipe, pw.Write blocks
	// until fasthttp's writeBodyChunked consumes the frame and flushes it,
	// giving per-frame streaming with direct backpressure on upstream reads.
	// When the client goes away fasthttp closes the reader, the next write
	// fails and the translation stops reading upstream.
	pr, pw := io.Pipe()
	go p.translateToPipeWriter(ctx, cancel, httpResp, pw, ex)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (p *Proxy) translateToPipeWriter(ctx context.Context, cancel context.CancelFunc, httpResp *http.Response, pw *io.PipeWriter, ex *exchange) {
	defer cancel()
	defer httpResp.Body.Close()

	p.metrics.StreamStarted()
	defer p.metrics.StreamEnded()

	result, err := pipeline.Translate(ctx, httpResp.Body, pw, pipeline.Options{
		Model:        ex.model,
		IncludeUsage: ex.includeUsage,
		Logger:       ex.logger,
	})

	meta := eventstream.CompletionMeta{
		FinishReason:        result.FinishReason,
		Usage:               result.Usage,
		Frames:              result.Frames,
		DroppedEvents:       result.Dropped,
		SynthesizedTerminal: err == nil && result.Synthesized(),
	}

	if err != nil {
		ex.logger.Error("stream translation failed", "error", err, "frames", result.Frames)
		meta.Error = err.Error()
	} else {
		ex.logger.Debug("streaming complete",
			"frames", result.Frames,
			"dropped", result.Dropped,
			"synthesized_done", result.Synthesized(),
			"duration", time.Since(ex.startedAt),
		)
	}

	p.metrics.ObserveStream(ex.model, result.Frames, result.Dropped, meta.SynthesizedTerminal)
	if result.Usage != nil {
		p.metrics.ObserveTokens(ex.model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}

	// Enqueue before the pipe closes: the client read ending is what lets
	// shutdown proceed to closing the worker pool.
	p.enqueueCompletion(ex, fiber.StatusOK, meta)

	if err != nil {
		// Closing with the error aborts the chunked body without a terminal
		// chunk, so the client sees a truncated stream.
		pw.CloseWithError(err)
		return
	}
	pw.Close()
}

// upstreamFailure reports a failed upstream call as 502 with the upstream
// status text.
func (p *Proxy) upstreamFailure(c *fiber.Ctx, ex *exchange, err error) error {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		p.metrics.ObserveUpstream(ex.model, statusErr.StatusCode, time.Since(ex.startedAt))
		ex.logger.Error("upstream returned error",
			"status", statusErr.StatusCode,
			"body", string(statusErr.Body),
		)
	} else {
		p.metrics.ObserveUpstream(ex.model, 0, time.Since(ex.startedAt))
		ex.logger.Error("upstream request failed", "error", err)
	}

	return p.fail(c, ex, fiber.StatusBadGateway, err.Error(), err)
}

// fail writes an upstream error response and records the failed exchange.
func (p *Proxy) fail(c *fiber.Ctx, ex *exchange, status int, message string, cause error) error {
	p.enqueueCompletion(ex, status, eventstream.CompletionMeta{Error: cause.Error()})
	return c.Status(status).JSON(dialect.NewErrorResponse(dialect.ErrorTypeUpstream, "", message))
}

func invalidRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dialect.NewErrorResponse(
		dialect.ErrorTypeInvalidRequest, code, message,
	))
}

// enqueueCompletion hands a completion event to the worker pool. It never
// blocks; a full queue drops the event.
func (p *Proxy) enqueueCompletion(ex *exchange, status int, meta eventstream.CompletionMeta) {
	completedAt := time.Now()
	meta.Model = ex.model

	p.workerPool.Enqueue(worker.Job{
		Event: eventstream.NewCompletionEvent(
			eventstream.EventSource{
				Service:  serviceName,
				Upstream: p.config.UpstreamURL,
			},
			eventstream.RequestMeta{
				RequestID:   ex.requestID,
				Path:        ex.path,
				StartedAt:   ex.startedAt.UTC(),
				CompletedAt: completedAt.UTC(),
				DurationMs:  completedAt.Sub(ex.startedAt).Milliseconds(),
				Streaming:   ex.streaming,
				HTTPStatus:  status,
			},
			meta,
		),
	})
}

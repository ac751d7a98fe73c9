// Package proxy provides an OpenAI-compatible chat completions proxy in front
// of DeepInfra. Requests are translated into the upstream dialect and responses,
// streamed or not, are translated back before they reach the client.
package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/papercomputeco/deepbridge/pkg/dialect"
	"github.com/papercomputeco/deepbridge/pkg/eventstream"
	"github.com/papercomputeco/deepbridge/pkg/eventstream/nop"
	"github.com/papercomputeco/deepbridge/pkg/metrics"
	"github.com/papercomputeco/deepbridge/proxy/header"
	"github.com/papercomputeco/deepbridge/proxy/upstream"
	"github.com/papercomputeco/deepbridge/proxy/worker"
)

const (
	serviceName = "deepbridge"

	requestIDKey = "requestid"

	routeChatCompletions = "/v1/chat/completions"
	routeModels          = "/v1/models"
	routeModel           = "/v1/models/+"
	routeHealth          = "/health"
	routeMetrics         = "/metrics"
)

// Proxy is an OpenAI to DeepInfra translating proxy. Completion events for
// every finished exchange are enqueued on its worker pool and published off
// the request path.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	publisher     eventstream.Publisher
	logger        *slog.Logger
	upstream      *upstream.Client
	server        *fiber.App
	headerHandler *header.Handler
	metrics       *metrics.Metrics
}

// New creates a new Proxy.
// The publisher receives completion events asynchronously; nil disables publishing.
func New(config Config, publisher eventstream.Publisher, logger *slog.Logger) (*Proxy, error) {
	if config.AuthKey == "" {
		return nil, errors.New("auth key is required")
	}
	if len(config.Models.Data) == 0 {
		return nil, errors.New("model allow-list is empty")
	}

	if publisher == nil {
		publisher = nop.NewPublisher()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	headerHandler := header.NewHandler(header.Config{
		Source:  config.Source,
		Referer: config.Referer,
		APIKey:  config.UpstreamKey,
	})

	client, err := upstream.New(upstream.Config{
		BaseURL: config.UpstreamURL,
		Timeout: config.UpstreamTimeout,
		Headers: headerHandler,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create upstream client: %w", err)
	}

	m := metrics.New()

	wp, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: config.NumWorkers,
		QueueSize:  config.QueueSize,
		OnDrop:     func(worker.Job) { m.CompletionEventDropped() },
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// No compress middleware, it would buffer event streams.
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:     header.RequestIDHeader,
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))

	p := &Proxy{
		config:        config,
		workerPool:    wp,
		publisher:     publisher,
		logger:        logger,
		upstream:      client,
		server:        app,
		headerHandler: headerHandler,
		metrics:       m,
	}

	app.Use(p.observe)

	app.Get(routeHealth, p.handleHealth)
	app.Get(routeModels, p.handleModels)
	app.Get(routeModel, p.handleModel)
	if config.MetricsEnabled {
		app.Get(routeMetrics, adaptor.HTTPHandler(m.Handler()))
	}
	app.Post(routeChatCompletions, p.requireAuth, p.handleChatCompletions)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
		"models", len(p.config.Models.Data),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
		"models", len(p.config.Models.Data),
	)

	return p.server.Listener(listener)
}

// Close stops accepting requests, drains the worker pool and closes the
// publisher, in that order.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return errors.Join(err, p.publisher.Close())
}

func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (p *Proxy) handleModels(c *fiber.Ctx) error {
	return c.JSON(p.config.Models)
}

func (p *Proxy) handleModel(c *fiber.Ctx) error {
	id := c.Params("+")
	model, ok := p.config.Models.Find(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dialect.NewErrorResponse(
			dialect.ErrorTypeNotFound, "model_not_found",
			fmt.Sprintf("The model '%s' does not exist", id),
		))
	}
	return c.JSON(model)
}

// observe records request metrics for every route.
func (p *Proxy) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}

	p.metrics.ObserveRequest(c.Route().Path, status, time.Since(start))
	return err
}

// requestLogger returns the proxy logger tagged with the request id.
func (p *Proxy) requestLogger(c *fiber.Ctx) *slog.Logger {
	return p.logger.With("request_id", requestID(c))
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// errorHandler renders errors that escape a handler (unknown routes, bad
// methods, recovered panics) in the OpenAI error envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	errType := dialect.ErrorTypeServer

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch {
		case code == fiber.StatusNotFound:
			errType = dialect.ErrorTypeNotFound
		case code < fiber.StatusInternalServerError:
			errType = dialect.ErrorTypeInvalidRequest
		}
	}

	return c.Status(code).JSON(dialect.NewErrorResponse(errType, "", err.Error()))
}

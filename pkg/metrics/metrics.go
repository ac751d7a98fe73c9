// Package metrics provides the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deepbridge"

// LLMBuckets covers inference latencies from 100ms to 5m.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// Metrics owns a private registry so several proxies can coexist in one
// process.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	activeStreams    prometheus.Gauge
	frames           *prometheus.CounterVec
	droppedEvents    *prometheus.CounterVec
	synthesized      *prometheus.CounterVec
	tokens           *prometheus.CounterVec
	eventsDropped    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by route and status class.",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time until the handler returned. Streamed bodies continue after this.",
			Buckets:   LLMBuckets,
		}, []string{"route"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream calls by model and outcome.",
		}, []string{"model", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Time until upstream response headers arrived.",
			Buckets:   LLMBuckets,
		}, []string{"model"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Streams currently being translated.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "SSE frames written to callers.",
		}, []string{"model"}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_events_total",
			Help:      "Malformed upstream events dropped.",
		}, []string{"model"}),
		synthesized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_synthesized_terminals_total",
			Help:      "Streams whose terminal frame was produced locally.",
		}, []string{"model"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by the upstream.",
		}, []string{"model", "direction"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_events_dropped_total",
			Help:      "Completion events dropped because the publish queue was full.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.upstreamRequests,
		m.upstreamLatency,
		m.activeStreams,
		m.frames,
		m.droppedEvents,
		m.synthesized,
		m.tokens,
		m.eventsDropped,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requests.WithLabelValues(route, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveUpstream records one upstream call. A status of 0 means the
// connection failed before any response.
func (m *Metrics) ObserveUpstream(model string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(model, label).Inc()
	if status > 0 {
		m.upstreamLatency.WithLabelValues(model).Observe(d.Seconds())
	}
}

func (m *Metrics) StreamStarted() { m.activeStreams.Inc() }
func (m *Metrics) StreamEnded()   { m.activeStreams.Dec() }

// ObserveStream records the outcome of one translated stream.
func (m *Metrics) ObserveStream(model string, frames, dropped int, synthesized bool) {
	m.frames.WithLabelValues(model).Add(float64(frames))
	m.droppedEvents.WithLabelValues(model).Add(float64(dropped))
	if synthesized {
		m.synthesized.WithLabelValues(model).Inc()
	}
}

func (m *Metrics) ObserveTokens(model string, prompt, completion int) {
	m.tokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	m.tokens.WithLabelValues(model, "completion").Add(float64(completion))
}

func (m *Metrics) CompletionEventDropped() {
	m.eventsDropped.Inc()
}

// statusClass turns 404 into "4xx".
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

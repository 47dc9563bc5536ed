// Package metrics provides a Prometheus metrics registry for the gateway.
//
// All metrics are scoped to a private registry (not the global default) so
// they don't interfere with host-level metrics when embedded in other
// applications. The /metrics HTTP handler is exposed via Handler().
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Registry holds all exported metrics.
type Registry struct {
	reg *prometheus.Registry

	// gateway_inflight_requests
	inFlight prometheus.Gauge

	// gateway_requests_total{provider,model,status}
	requestsTotal *prometheus.CounterVec

	// gateway_request_duration_seconds{provider,model}
	requestDuration *prometheus.HistogramVec

	// gateway_ratelimit_denied_total{provider,model}
	rateLimitDenied *prometheus.CounterVec

	// gateway_dropped_log_entries_total
	droppedLogEntries prometheus.Counter

	// gateway_build_info{version}
	buildInfo *prometheus.GaugeVec

	metricsHandler fasthttp.RequestHandler
}

// New builds a Registry with its own private prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Registry{
		reg: reg,

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_inflight_requests",
			Help: "Current number of in-flight /generate requests",
		}),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Total number of /generate requests by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "End-to-end /generate request duration in seconds, including subprocess time",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		rateLimitDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_ratelimit_denied_total",
				Help: "Total admission denials by provider and model",
			},
			[]string{"provider", "model"},
		),

		droppedLogEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_dropped_log_entries_total",
			Help: "Request log entries dropped because the async logger's channel was full",
		}),

		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_build_info",
				Help: "Build information",
			},
			[]string{"version"},
		),
	}

	reg.MustRegister(
		r.inFlight,
		r.requestsTotal,
		r.requestDuration,
		r.rateLimitDenied,
		r.droppedLogEntries,
		r.buildInfo,
	)

	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	r.metricsHandler = fasthttpadaptor.NewFastHTTPHandler(h)

	return r
}

func (r *Registry) IncInFlight() { r.inFlight.Inc() }
func (r *Registry) DecInFlight() { r.inFlight.Dec() }

// RecordRequest records one completed /generate request.
func (r *Registry) RecordRequest(provider, model string, statusCode int, dur time.Duration) {
	r.requestsTotal.WithLabelValues(provider, model, strconv.Itoa(statusCode)).Inc()
	r.requestDuration.WithLabelValues(provider, model).Observe(dur.Seconds())
}

// RecordRateLimitDenied records one admission denial.
func (r *Registry) RecordRateLimitDenied(provider, model string) {
	r.rateLimitDenied.WithLabelValues(provider, model).Inc()
}

// AddDroppedLogEntries adds delta newly dropped entries since the last poll.
// The async request logger tracks the cumulative total itself; callers diff
// successive reads of it and forward the delta here.
func (r *Registry) AddDroppedLogEntries(delta int64) {
	if delta > 0 {
		r.droppedLogEntries.Add(float64(delta))
	}
}

func (r *Registry) SetBuildInfo(version string) {
	r.buildInfo.WithLabelValues(version).Set(1)
}

func (r *Registry) Handler() fasthttp.RequestHandler {
	return r.metricsHandler
}

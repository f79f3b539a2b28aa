// Package metrics exports Prometheus collectors for the HTTP surface, the
// storage providers and the background task pool.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	httpRequestsInFlight  prometheus.Gauge
	httpResponseSizeBytes *prometheus.HistogramVec

	// Upstream metrics
	upstreamCallsTotal   *prometheus.CounterVec
	upstreamCallDuration *prometheus.HistogramVec

	// Task metrics
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		httpResponseSizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100B to 10GB
			},
			[]string{"method", "path"},
		),
		upstreamCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_calls_total",
				Help: "Total number of storage provider calls",
			},
			[]string{"provider", "operation", "status"},
		),
		upstreamCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_call_duration_seconds",
				Help:    "Storage provider call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider", "operation"},
		),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "background_tasks_total",
				Help: "Total number of background tasks run",
			},
			[]string{"task", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "background_task_duration_seconds",
				Help:    "Background task duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"task"},
		),
	}

	var err error
	if m.httpRequestsTotal, err = registerCollector(reg, m.httpRequestsTotal); err != nil {
		return nil, err
	}
	if m.httpRequestDuration, err = registerCollector(reg, m.httpRequestDuration); err != nil {
		return nil, err
	}
	if m.httpRequestsInFlight, err = registerCollector(reg, m.httpRequestsInFlight); err != nil {
		return nil, err
	}
	if m.httpResponseSizeBytes, err = registerCollector(reg, m.httpResponseSizeBytes); err != nil {
		return nil, err
	}
	if m.upstreamCallsTotal, err = registerCollector(reg, m.upstreamCallsTotal); err != nil {
		return nil, err
	}
	if m.upstreamCallDuration, err = registerCollector(reg, m.upstreamCallDuration); err != nil {
		return nil, err
	}
	if m.tasksTotal, err = registerCollector(reg, m.tasksTotal); err != nil {
		return nil, err
	}
	if m.taskDuration, err = registerCollector(reg, m.taskDuration); err != nil {
		return nil, err
	}

	return m, nil
}

// registerCollector registers c, returning the already registered
// collector instead when an identical one exists.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// Middleware records request count, latency, in-flight requests and
// response size by route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil || c.Path() == "/metrics" {
				return next(c)
			}

			start := time.Now()
			m.httpRequestsInFlight.Inc()
			defer m.httpRequestsInFlight.Dec()

			err := next(c)

			method := c.Request().Method
			path := c.Path()
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			m.httpResponseSizeBytes.WithLabelValues(method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordUpstreamCall records one storage provider call.
func (m *Metrics) RecordUpstreamCall(provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstreamCallsTotal.WithLabelValues(provider, operation, outcome(err)).Inc()
	m.upstreamCallDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordTask records one background task run.
func (m *Metrics) RecordTask(task string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(task, outcome(err)).Inc()
	m.taskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peakring",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peakring",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10, 60},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peakring",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Panorama pipeline metrics
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peakring",
		Subsystem: "panorama",
		Name:      "builds_total",
		Help:      "Total dataset build attempts by outcome",
	}, []string{"outcome"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "peakring",
		Subsystem: "panorama",
		Name:      "build_duration_seconds",
		Help:      "Duration of successful dataset builds",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	BuildWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "peakring",
		Subsystem: "panorama",
		Name:      "build_waiters",
		Help:      "Callers currently waiting on the dataset artifact",
	})

	DatasetState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "peakring",
		Subsystem: "panorama",
		Name:      "dataset_state",
		Help:      "Dataset cache state (0=empty, 1=pending, 2=ready)",
	})

	HorizonQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "peakring",
		Subsystem: "dem",
		Name:      "horizon_queries_total",
		Help:      "Total horizon queries issued against the elevation source",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

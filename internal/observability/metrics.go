package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and the batch
// coordinator.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	lessonsGeneratedTotal   prometheus.Counter
	lessonsFailedTotal      prometheus.Counter
	generationAttemptsTotal *prometheus.CounterVec
	completionDuration      prometheus.Histogram
	batchRunning            prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lesson_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lesson_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		lessonsGeneratedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lesson_engine",
				Name:      "lessons_generated_total",
				Help:      "Total number of lessons generated and persisted successfully.",
			},
		),
		lessonsFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lesson_engine",
				Name:      "lessons_failed_total",
				Help:      "Total number of lessons that exhausted their generation attempts.",
			},
		),
		generationAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lesson_engine",
				Name:      "generation_attempts_total",
				Help:      "Total generation attempts grouped by outcome.",
			},
			[]string{"outcome"},
		),
		completionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lesson_engine",
				Name:      "completion_request_duration_seconds",
				Help:      "Outbound completion call duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		batchRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "lesson_engine",
				Name:      "batch_running",
				Help:      "Whether a batch run is currently processing (0 or 1).",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.lessonsGeneratedTotal,
		m.lessonsFailedTotal,
		m.generationAttemptsTotal,
		m.completionDuration,
		m.batchRunning,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncLessonGenerated() {
	if m == nil {
		return
	}
	m.lessonsGeneratedTotal.Inc()
}

func (m *Metrics) IncLessonFailed() {
	if m == nil {
		return
	}
	m.lessonsFailedTotal.Inc()
}

func (m *Metrics) IncGenerationAttempt(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.generationAttemptsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveCompletionDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.completionDuration.Observe(seconds)
}

func (m *Metrics) SetBatchRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.batchRunning.Set(1)
		return
	}
	m.batchRunning.Set(0)
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

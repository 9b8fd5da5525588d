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

// Metrics stores Prometheus collectors for the recovery pipeline and the ops
// API.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	visitorsScannedTotal      prometheus.Counter
	abandonmentsDetectedTotal prometheus.Counter
	outreachEligibleTotal     prometheus.Counter

	outreachSentTotal   *prometheus.CounterVec
	outreachFailedTotal *prometheus.CounterVec

	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	deadLetterSize     prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lead_recovery",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lead_recovery",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		visitorsScannedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lead_recovery",
				Name:      "visitors_scanned_total",
				Help:      "Total number of visitors examined by the abandonment detector.",
			},
		),
		abandonmentsDetectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lead_recovery",
				Name:      "abandonments_detected_total",
				Help:      "Total number of visitors marked abandoned.",
			},
		),
		outreachEligibleTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lead_recovery",
				Name:      "outreach_eligible_total",
				Help:      "Total number of abandoned visitors with a reachable contact method.",
			},
		),
		outreachSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lead_recovery",
				Name:      "outreach_sent_total",
				Help:      "Total number of outreach messages dispatched successfully.",
			},
			[]string{"channel"},
		),
		outreachFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lead_recovery",
				Name:      "outreach_failed_total",
				Help:      "Total number of outreach dispatch failures.",
			},
			[]string{"channel", "reason"},
		),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lead_recovery",
				Name:      "submissions_total",
				Help:      "Total number of marketplace submission series by final outcome.",
			},
			[]string{"outcome"},
		),
		submissionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lead_recovery",
				Name:      "submission_duration_seconds",
				Help:      "Duration of a full submission series including backoff.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		deadLetterSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "lead_recovery",
				Name:      "dead_letter_size",
				Help:      "Current number of entries in the dead-letter queue.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.visitorsScannedTotal,
		m.abandonmentsDetectedTotal,
		m.outreachEligibleTotal,
		m.outreachSentTotal,
		m.outreachFailedTotal,
		m.submissionsTotal,
		m.submissionDuration,
		m.deadLetterSize,
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

func (m *Metrics) AddVisitorsScanned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.visitorsScannedTotal.Add(float64(n))
}

func (m *Metrics) AddAbandonmentsDetected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.abandonmentsDetectedTotal.Add(float64(n))
}

func (m *Metrics) AddOutreachEligible(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outreachEligibleTotal.Add(float64(n))
}

func (m *Metrics) IncOutreachSent(channel string) {
	if m == nil {
		return
	}
	m.outreachSentTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncOutreachFailed(channel string, reason string) {
	if m == nil {
		return
	}
	m.outreachFailedTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveSubmissionDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.submissionDuration.Observe(seconds)
}

func (m *Metrics) SetDeadLetterSize(n int) {
	if m == nil {
		return
	}
	m.deadLetterSize.Set(float64(n))
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

func normalizeLabel(v string) string {
	normalized := strings.ToLower(strings.TrimSpace(v))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

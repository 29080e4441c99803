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

const metricsNamespace = "newsletter"

// Metrics stores Prometheus collectors used by the API and the campaign dispatcher.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	ticksTotal          *prometheus.CounterVec
	tickDuration        prometheus.Histogram
	campaignsTotal      *prometheus.CounterVec
	recipientsTotal     *prometheus.CounterVec
	sendAttemptsTotal   *prometheus.CounterVec
	sendDuration        prometheus.Histogram
	ledgerCheckpoints   prometheus.Counter
	campaignsReclaimed  prometheus.Counter
	campaignsInFlight   prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "scheduler_ticks_total",
				Help:      "Scheduler ticks grouped by outcome (processed, idle, skipped, lock_lost, error).",
			},
			[]string{"outcome"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "scheduler_tick_duration_seconds",
				Help:      "Wall time of one scheduler tick including every dispatched campaign.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
			},
		),
		campaignsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "campaigns_finished_total",
				Help:      "Campaigns that reached a terminal status.",
			},
			[]string{"status"},
		),
		recipientsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "recipients_total",
				Help:      "Recipients that reached a terminal delivery status.",
			},
			[]string{"status"},
		),
		sendAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "send_attempts_total",
				Help:      "Mail gateway send attempts grouped by result and failure reason.",
			},
			[]string{"result", "reason"},
		),
		sendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "send_duration_seconds",
				Help:      "Mail gateway send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		ledgerCheckpoints: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ledger_checkpoints_total",
				Help:      "Recipient ledger persists performed by the dispatcher.",
			},
		),
		campaignsReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "campaigns_reclaimed_total",
				Help:      "Stale SENDING campaigns returned to SCHEDULED.",
			},
		),
		campaignsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "campaigns_inflight",
				Help:      "Campaigns currently being dispatched by this process.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.ticksTotal,
		m.tickDuration,
		m.campaignsTotal,
		m.recipientsTotal,
		m.sendAttemptsTotal,
		m.sendDuration,
		m.ledgerCheckpoints,
		m.campaignsReclaimed,
		m.campaignsInFlight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

func (m *Metrics) IncTick(outcome string) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveTickDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncCampaignFinished(status string) {
	if m == nil {
		return
	}
	m.campaignsTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) IncRecipient(status string) {
	if m == nil {
		return
	}
	m.recipientsTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) IncSendAttempt(result string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "none"
	}
	m.sendAttemptsTotal.WithLabelValues(normalizeLabel(result), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.sendDuration.Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncLedgerCheckpoint() {
	if m == nil {
		return
	}
	m.ledgerCheckpoints.Inc()
}

func (m *Metrics) AddCampaignsReclaimed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.campaignsReclaimed.Add(float64(n))
}

func (m *Metrics) IncCampaignInFlight() {
	if m == nil {
		return
	}
	m.campaignsInFlight.Inc()
}

func (m *Metrics) DecCampaignInFlight() {
	if m == nil {
		return
	}
	m.campaignsInFlight.Dec()
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

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func nonNegativeSeconds(d time.Duration) float64 {
	seconds := d.Seconds()
	if seconds < 0 {
		return 0
	}
	return seconds
}

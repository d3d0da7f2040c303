package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the SDK.
type Metrics struct {
	// Ad session metrics
	AdRequests     *prometheus.CounterVec
	AdRejections   *prometheus.CounterVec
	AdFetchLatency *prometheus.HistogramVec
	AdOutcomes     *prometheus.CounterVec
	ActiveSessions *prometheus.GaugeVec

	// Impression/Click metrics
	Impressions *prometheus.CounterVec
	Clicks      *prometheus.CounterVec
	Fallbacks   *prometheus.CounterVec

	// Telemetry queue metrics
	TelemetryEnqueued prometheus.Counter
	TelemetryDropped  prometheus.Counter
	TelemetryFlushed  *prometheus.CounterVec
	TelemetryQueued   prometheus.Gauge

	// Transport metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates all SDK metrics and registers them with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ad session metrics
		AdRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_requests_total",
				Help:      "Total number of ad show requests that passed the frequency gate",
			},
			[]string{"slot"},
		),
		AdRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_rejections_total",
				Help:      "Ad show requests rejected before a session was created",
			},
			[]string{"slot", "reason"},
		),
		AdFetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ad_fetch_latency_seconds",
				Help:      "Ad fetch latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"slot", "result"},
		),
		AdOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ad_sessions_total",
				Help:      "Ad sessions by terminal state",
			},
			[]string{"slot", "state"},
		),
		ActiveSessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ad_sessions_active",
				Help:      "Ad sessions currently holding a slot",
			},
			[]string{"slot"},
		),

		// Impression/Click metrics
		Impressions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "impressions_total",
				Help:      "Server creatives presented",
			},
			[]string{"slot"},
		),
		Clicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clicks_total",
				Help:      "Creative clicks",
			},
			[]string{"slot"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_creatives_total",
				Help:      "Fallback creatives presented after an empty ad response",
			},
			[]string{"slot"},
		),

		// Telemetry queue metrics
		TelemetryEnqueued: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_enqueued_total",
				Help:      "Telemetry events enqueued",
			},
		),
		TelemetryDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_dropped_total",
				Help:      "Telemetry events dropped because the queue was full",
			},
		),
		TelemetryFlushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_flushed_events_total",
				Help:      "Telemetry events submitted, by result",
			},
			[]string{"result"},
		),
		TelemetryQueued: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "telemetry_queue_depth",
				Help:      "Telemetry events waiting for the next flush",
			},
		),

		// Transport metrics
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Requests sent to the Kasrah API",
			},
			[]string{"endpoint", "status"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "Kasrah API request latency",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Inspector HTTP requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler for gatherer g.
// A nil g serves the default registry.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordAdRequest records a show request that created a session.
func (m *Metrics) RecordAdRequest(slot string) {
	m.AdRequests.WithLabelValues(slot).Inc()
	m.ActiveSessions.WithLabelValues(slot).Inc()
}

// RecordRejection records a show request rejected before a session existed.
func (m *Metrics) RecordRejection(slot, reason string) {
	m.AdRejections.WithLabelValues(slot, reason).Inc()
}

// RecordFetch records an ad fetch.
func (m *Metrics) RecordFetch(slot, result string, latency time.Duration) {
	m.AdFetchLatency.WithLabelValues(slot, result).Observe(latency.Seconds())
}

// RecordOutcome records a session reaching a terminal state.
func (m *Metrics) RecordOutcome(slot, state string) {
	m.AdOutcomes.WithLabelValues(slot, state).Inc()
	m.ActiveSessions.WithLabelValues(slot).Dec()
}

// RecordImpression records a presented creative.
func (m *Metrics) RecordImpression(slot string, fallback bool) {
	if fallback {
		m.Fallbacks.WithLabelValues(slot).Inc()
		return
	}
	m.Impressions.WithLabelValues(slot).Inc()
}

// RecordClick records a click.
func (m *Metrics) RecordClick(slot string) {
	m.Clicks.WithLabelValues(slot).Inc()
}

// RecordEnqueue records a telemetry enqueue and the resulting queue depth.
func (m *Metrics) RecordEnqueue(depth int, dropped bool) {
	m.TelemetryEnqueued.Inc()
	if dropped {
		m.TelemetryDropped.Inc()
	}
	m.TelemetryQueued.Set(float64(depth))
}

// RecordFlush records a telemetry batch submission.
func (m *Metrics) RecordFlush(events, depth int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TelemetryFlushed.WithLabelValues(result).Add(float64(events))
	m.TelemetryQueued.Set(float64(depth))
}

// RecordAPIRequest records a request to the Kasrah API.
func (m *Metrics) RecordAPIRequest(endpoint string, status int, latency time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.APIRequests.WithLabelValues(endpoint, label).Inc()
	m.APILatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

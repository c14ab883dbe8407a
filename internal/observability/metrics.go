// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"activity-nudge-lab/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	FetchesTotal   *prometheus.CounterVec
	RecordsStored  *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec

	// Decision metrics
	InterventionsTotal *prometheus.CounterVec
	SkipsTotal         *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec

	// Cycle metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	CycleErrors    prometheus.Counter

	// Reporting metrics
	SummariesStored prometheus.Counter

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	ActiveParticipants  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "activity_nudge_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetches_total",
			Help:      "Total number of upstream intraday fetches by metric and outcome",
		}, []string{"metric", "outcome"}),
		RecordsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_stored_total",
			Help:      "Total number of normalized activity records stored by metric",
		}, []string{"metric"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "token_refreshes_total",
			Help:      "Total number of access token refreshes by outcome",
		}, []string{"outcome"}),

		// Decision metrics
		InterventionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "interventions_total",
			Help:      "Total number of executed interventions by message kind",
		}, []string{"kind"}),
		SkipsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "skips_total",
			Help:      "Total number of skipped evaluations by reason",
		}, []string{"reason"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "notifications_total",
			Help:      "Total number of notification attempts by outcome",
		}, []string{"outcome"}),

		// Cycle metrics
		CycleRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of cycles by status",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Cycle execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "errors_total",
			Help:      "Total number of non-fatal errors recorded by cycles",
		}),

		// Reporting metrics
		SummariesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "summaries_stored_total",
			Help:      "Total number of daily summaries stored",
		}),

		// Health metrics
		LastSuccessfulCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last cycle that completed",
		}),
		ActiveParticipants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "active_participants",
			Help:      "Number of active participants in the last cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveFetch records an upstream fetch outcome.
func (m *Metrics) ObserveFetch(metric domain.Metric, outcome string) {
	m.FetchesTotal.WithLabelValues(string(metric), outcome).Inc()
}

// ObserveStored records newly stored records.
func (m *Metrics) ObserveStored(metric domain.Metric, inserted int) {
	m.RecordsStored.WithLabelValues(string(metric)).Add(float64(inserted))
}

// ObserveRefresh records a token refresh attempt.
func (m *Metrics) ObserveRefresh(success bool) {
	outcome := "ok"
	if !success {
		outcome = "failed"
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordIntervention records an executed intervention.
func (m *Metrics) RecordIntervention(kind domain.MessageKind, delivered bool) {
	m.InterventionsTotal.WithLabelValues(string(kind)).Inc()
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordSkip records a skipped evaluation.
func (m *Metrics) RecordSkip(reason string) {
	m.SkipsTotal.WithLabelValues(reason).Inc()
}

// RecordCycle records a finished cycle.
func (m *Metrics) RecordCycle(status string, duration time.Duration, errors int, participants int) {
	m.CycleRunsTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(duration.Seconds())
	m.CycleErrors.Add(float64(errors))
	m.ActiveParticipants.Set(float64(participants))
	if status == "ok" {
		m.LastSuccessfulCycle.SetToCurrentTime()
	}
}

// RecordSummaries records stored daily summaries.
func (m *Metrics) RecordSummaries(stored int) {
	m.SummariesStored.Add(float64(stored))
}

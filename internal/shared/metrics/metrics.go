// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks ingestion, decisions, notifications and revalidation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	EmailsTotal         *prometheus.CounterVec
	DecisionsTotal      *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	RevalidationsTotal  *prometheus.CounterVec
	IntentsTotal        *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	ExtractionFailTotal prometheus.Counter
}

// New registers all metrics on reg. Pass nil to use a fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		EmailsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_emails_total",
			Help: "KYC emails seen by the ingestor, by outcome",
		}, []string{"outcome"}),
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_decisions_total",
			Help: "Final compliance decisions, by status",
		}, []string{"status"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_notifications_total",
			Help: "Customer notifications attempted, by action",
		}, []string{"action"}),
		RevalidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_revalidations_total",
			Help: "Records revalidated, by whether the status changed",
		}, []string{"changed"}),
		IntentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_intents_total",
			Help: "Operator requests routed, by intent",
		}, []string{"intent"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_operation_duration_seconds",
			Help:    "Duration of top-level pipeline operations",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"op"}),
		ExtractionFailTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kyc_extraction_failures_total",
			Help: "Attachments that could not be turned into text",
		}),
	}
}

// Email records one ingested email outcome: processed, skipped or failed.
func (m *Metrics) Email(outcome string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(outcome).Inc()
}

// Decision records a persisted compliance status.
func (m *Metrics) Decision(status string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(status).Inc()
}

// Notification records a notification attempt for action.
func (m *Metrics) Notification(action string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(action).Inc()
}

// Revalidation records one revalidated record.
func (m *Metrics) Revalidation(changed bool) {
	if m == nil {
		return
	}
	label := "false"
	if changed {
		label = "true"
	}
	m.RevalidationsTotal.WithLabelValues(label).Inc()
}

// Intent records one routed operator request.
func (m *Metrics) Intent(intent string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(intent).Inc()
}

// ExtractionFailed records an unreadable attachment.
func (m *Metrics) ExtractionFailed() {
	if m == nil {
		return
	}
	m.ExtractionFailTotal.Inc()
}

// ObserveOperation records the duration of op. Call with time.Now() at the start.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// HTTPHandler serves the registry in Prometheus text format.
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Handler adapts HTTPHandler for gin.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(m.HTTPHandler())
}

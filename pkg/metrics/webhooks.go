package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook event outcomes.
const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeReplayed  = "replayed"
	WebhookOutcomeRejected  = "rejected"
	WebhookOutcomeFailed    = "failed"
)

// WebhookMetrics counts inbound webhook deliveries by source and outcome.
type WebhookMetrics struct {
	events *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhook deliveries by source and outcome.",
	}, []string{"source", "outcome"})
	reg.MustRegister(events)
	return &WebhookMetrics{events: events}
}

// IncProcessed counts a delivery that was verified and applied.
func (m *WebhookMetrics) IncProcessed(source string) {
	m.inc(source, WebhookOutcomeProcessed)
}

// IncReplayed counts a delivery acknowledged without reprocessing.
func (m *WebhookMetrics) IncReplayed(source string) {
	m.inc(source, WebhookOutcomeReplayed)
}

// IncRejected counts a delivery refused before reaching the service layer.
func (m *WebhookMetrics) IncRejected(source string) {
	m.inc(source, WebhookOutcomeRejected)
}

// IncFailed counts a delivery the service layer could not apply.
func (m *WebhookMetrics) IncFailed(source string) {
	m.inc(source, WebhookOutcomeFailed)
}

func (m *WebhookMetrics) inc(source, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(source), outcome).Inc()
}

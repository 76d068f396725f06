package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts ingestion outcomes per platform so duplicate
// storms and unmatched-token spikes are visible.
type WebhookMetrics struct {
	received   *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	unmatched  *prometheus.CounterVec
	applied    *prometheus.CounterVec
	superseded *prometheus.CounterVec
}

// NewWebhookMetrics registers webhook ingestion counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook events accepted for processing.",
	}, []string{"platform"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook events dropped by the idempotency guard.",
	}, []string{"platform"})
	unmatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_unmatched",
		Help: "Webhook events with no matching subscription.",
	}, []string{"platform"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_applied",
		Help: "Webhook events that produced a state transition.",
	}, []string{"platform"})
	superseded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_superseded",
		Help: "Webhook events discarded as older than the stored record.",
	}, []string{"platform"})
	reg.MustRegister(received, duplicates, unmatched, applied, superseded)
	return &WebhookMetrics{
		received:   received,
		duplicates: duplicates,
		unmatched:  unmatched,
		applied:    applied,
		superseded: superseded,
	}
}

func (w *WebhookMetrics) IncReceived(platform string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(platform).Inc()
}

func (w *WebhookMetrics) IncDuplicate(platform string) {
	if w == nil || w.duplicates == nil {
		return
	}
	w.duplicates.WithLabelValues(platform).Inc()
}

func (w *WebhookMetrics) IncUnmatched(platform string) {
	if w == nil || w.unmatched == nil {
		return
	}
	w.unmatched.WithLabelValues(platform).Inc()
}

func (w *WebhookMetrics) IncApplied(platform string) {
	if w == nil || w.applied == nil {
		return
	}
	w.applied.WithLabelValues(platform).Inc()
}

func (w *WebhookMetrics) IncSuperseded(platform string) {
	if w == nil || w.superseded == nil {
		return
	}
	w.superseded.WithLabelValues(platform).Inc()
}

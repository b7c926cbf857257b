package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores the Prometheus collectors used across the gateway.
type Metrics struct {
	WebhookRequests   *prometheus.CounterVec
	MessagesProcessed *prometheus.CounterVec
	ThrottleRejects   *prometheus.CounterVec
	ThrottleErrors    *prometheus.CounterVec
	IntroSends        *prometheus.CounterVec
	IngestLatency     prometheus.Histogram
}

// New builds the collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by method and outcome.",
		}, []string{"method", "outcome"}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wa_messages_total",
			Help:      "Inbound WhatsApp messages by processing outcome.",
		}, []string{"outcome"}),
		ThrottleRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_rejections_total",
			Help:      "Requests rejected by a rate limiter, by scope.",
		}, []string{"scope"}),
		ThrottleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_store_errors_total",
			Help:      "Rate limit store failures, by scope. The request is let through.",
		}, []string{"scope"}),
		IntroSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intro_sends_total",
			Help:      "Intro messages sent to new users, by status.",
		}, []string{"status"}),
		IngestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_ingest_duration_seconds",
			Help:      "Time spent ingesting one verified webhook payload.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.WebhookRequests,
		m.MessagesProcessed,
		m.ThrottleRejects,
		m.ThrottleErrors,
		m.IntroSends,
		m.IngestLatency,
	)
	return m
}

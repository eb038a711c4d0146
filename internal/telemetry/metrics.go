package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignaturesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navegantes_integrity_signatures_total",
		Help: "Integrity signature requests by result.",
	}, []string{"result"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navegantes_reconciliations_total",
		Help: "Reconciliation attempts by source and outcome.",
	}, []string{"source", "outcome"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navegantes_webhook_deliveries_total",
		Help: "Provider webhook deliveries by result.",
	}, []string{"result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navegantes_notifications_total",
		Help: "Activation notifications by channel and result.",
	}, []string{"channel", "result"})

	ProviderLookups = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "navegantes_provider_lookup_seconds",
		Help:    "Latency of provider transaction lookups.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
)

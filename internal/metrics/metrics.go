// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertsProcessed counts alert invocations by flow and alert type.
	AlertsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sosit_alerts_processed_total",
		Help: "Alert notification invocations",
	}, []string{"flow", "alert_type"})

	// DeliveriesTotal counts per-device delivery attempts by channel and result.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sosit_deliveries_total",
		Help: "Per-device delivery attempts",
	}, []string{"channel", "status"})

	// DispatchDuration observes how long one full fan-out takes.
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sosit_dispatch_duration_seconds",
		Help:    "Time to fan one alert out to all recipients",
		Buckets: prometheus.DefBuckets,
	})
)

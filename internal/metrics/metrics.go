// Package metrics holds the gateway's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts proxied requests by service and response code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of proxied requests",
		},
		[]string{"service", "code"},
	)

	// AccessDeniedTotal counts requests rejected by the access gate.
	AccessDeniedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_access_denied_total",
			Help: "Total number of requests denied authentication or quota",
		},
	)

	// UpstreamLatency observes backend call durations per service.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_latency_seconds",
			Help:    "Duration of backend calls in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	// ServiceHealthy reports the last probed health per service (1 healthy, 0 not).
	ServiceHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_service_healthy",
			Help: "Whether the service's last health classification was healthy",
		},
		[]string{"service"},
	)
)

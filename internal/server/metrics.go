package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bimmerbailey/dmask/internal/masking"
)

// Metrics holds the Prometheus metrics of the masking server.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	documentsTotal    *prometheus.CounterVec
	nodesTotal        *prometheus.CounterVec
	bodyLimitRejected prometheus.Counter
}

// NewMetrics creates the server metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dmask",
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dmask",
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"route"},
		),
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dmask",
				Subsystem: "masking",
				Name:      "documents_total",
				Help:      "Total number of request documents by input format and result (masked, passthrough, invalid)",
			},
			[]string{"format", "result"},
		),
		nodesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dmask",
				Subsystem: "masking",
				Name:      "nodes_total",
				Help:      "Total number of nodes handled by masker and outcome",
			},
			[]string{"masker", "outcome"},
		),
		bodyLimitRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dmask",
				Subsystem: "server",
				Name:      "body_limit_rejected_total",
				Help:      "Total number of requests rejected for exceeding the body limit",
			},
		),
	}
}

// observeReport adds the per-rule counts of r.
func (m *Metrics) observeReport(r masking.Report) {
	for _, rr := range r.Rules {
		if rr.Replaced > 0 {
			m.nodesTotal.WithLabelValues(rr.Masker, "replaced").Add(float64(rr.Replaced))
		}
		if rr.Removed > 0 {
			m.nodesTotal.WithLabelValues(rr.Masker, "removed").Add(float64(rr.Removed))
		}
		if rr.Skipped > 0 {
			m.nodesTotal.WithLabelValues(rr.Masker, "skipped").Add(float64(rr.Skipped))
		}
	}
}

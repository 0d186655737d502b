package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons used as the "reason" label.
const (
	reasonInvalidJSON = "invalid_json"
	reasonPanic       = "panic"
)

type metrics struct {
	received prometheus.Counter
	rejected *prometheus.CounterVec
	items    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		received: f.NewCounter(prometheus.CounterOpts{
			Name: "inventory_collector_reports_received_total",
			Help: "Reports accepted by the collector",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_collector_reports_rejected_total",
			Help: "Reports rejected by the collector, by reason",
		}, []string{"reason"}),
		items: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_collector_report_software_items",
			Help:    "Software items per accepted report",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
		}),
	}
}

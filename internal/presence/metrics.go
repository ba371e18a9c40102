package presence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation for the watch loop.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	ScanFailuresTotal  prometheus.Counter
	NotificationsTotal prometheus.Counter
	NotifyErrorsTotal  prometheus.Counter
	AbsentCount        prometheus.Gauge
	Notified           prometheus.Gauge
}

// NewMetrics creates and registers the watch loop metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "absenced",
			Name:      "cycles_total",
			Help:      "Observation cycles completed, including skipped ones.",
		}),
		ScanFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "absenced",
			Name:      "scan_failures_total",
			Help:      "Cycles skipped because the network scan failed.",
		}),
		NotificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "absenced",
			Name:      "notifications_total",
			Help:      "Absence notifications dispatched to the broker.",
		}),
		NotifyErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "absenced",
			Name:      "notify_errors_total",
			Help:      "Notification dispatches that ultimately failed.",
		}),
		AbsentCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "absenced",
			Name:      "absent_count",
			Help:      "Consecutive cycles with no tracked device present.",
		}),
		Notified: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "absenced",
			Name:      "notified",
			Help:      "1 while a notification is outstanding for the current absence streak.",
		}),
	}
}

// Package metrics exports prometheus collectors for reminder passes,
// notification deliveries and report generation.
package metrics

import (
	"net/http"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"git.0xdad.com/tblyler/medreminder/reminder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medreminder"

// Metrics collectors
type Metrics struct {
	registry *prometheus.Registry

	passRuns     *prometheus.CounterVec
	passItems    *prometheus.CounterVec
	passErrors   *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	deliveries   *prometheus.CounterVec
	reports      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		passRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_runs_total",
			Help:      "Reminder and missed dose passes by result.",
		}, []string{"pass", "result"}),

		passItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_items_total",
			Help:      "Schedules and dose logs handled by passes.",
		}, []string{"pass", "item"}),

		passErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_errors_total",
			Help:      "Soft and hard pass failures by kind.",
		}, []string{"pass", "kind"}),

		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Time spent running a pass.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pass"}),

		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Notification dispatches by kind and outcome.",
		}, []string{"kind", "outcome"}),

		reports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Generated reports by type and result.",
		}, []string{"type", "result"}),
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

// ObservePass records a finished reminder or missed dose pass
func (m *Metrics) ObservePass(result reminder.RunResult, err error, elapsed time.Duration) {
	m.passRuns.WithLabelValues(result.Pass, resultLabel(err)).Inc()
	m.passDuration.WithLabelValues(result.Pass).Observe(elapsed.Seconds())

	items := map[string]int{
		"matched":      result.Matched,
		"logs_created": result.LogsCreated,
		"transitioned": result.Transitioned,
		"notified":     result.Notified,
		"skipped":      result.Skipped,
	}
	for item, count := range items {
		m.passItems.WithLabelValues(result.Pass, item).Add(float64(count))
	}

	for _, itemErr := range result.Errors {
		m.passErrors.WithLabelValues(result.Pass, itemErr.Kind.String()).Inc()
	}

	if err != nil {
		m.passErrors.WithLabelValues(result.Pass, apperr.KindOf(err).String()).Inc()
	}
}

// ObserveDelivery records a notification dispatch outcome
func (m *Metrics) ObserveDelivery(kind string, outcome string) {
	m.deliveries.WithLabelValues(kind, outcome).Inc()
}

// ObserveReport records a report generation
func (m *Metrics) ObserveReport(reportType string, err error) {
	m.reports.WithLabelValues(reportType, resultLabel(err)).Inc()
}

// DebugMux serves /metrics, /healthz and /readyz
func (m *Metrics) DebugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", healthz)
	mux.HandleFunc("/readyz", healthz)

	return mux
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("200 OK"))
}

package metrics

import (
	"net/http"
	"strconv"

	"github.com/nao1215/onionwatch/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "onionwatch"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	scanDuration prometheus.Histogram
	riskLevels   *prometheus.CounterVec
	alerts       *prometheus.CounterVec
	discovered   prometheus.Counter
	firings      *prometheus.CounterVec
	intel        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry. jobs reports the number
// of scheduled rescan jobs; it may be nil.
func New(jobs func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scans_total",
			Help:      "Target visits by status",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time spent on one target visit",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		riskLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "risk_level_total",
			Help:      "Successful visits by derived risk level",
		}, []string{"level"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_total",
			Help:      "Alert delivery attempts by channel and outcome",
		}, []string{"channel", "sent"}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frontier_discovered_total",
			Help:      "New onion links added to the frontier",
		}),
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scheduler_firings_total",
			Help:      "Rescan firings by outcome",
		}, []string{"status"}),
		intel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "intel_lookups_total",
			Help:      "External reputation lookups by source and outcome",
		}, []string{"source", "outcome"}),
	}

	m.registry.MustRegister(
		m.scans, m.scanDuration, m.riskLevels, m.alerts,
		m.discovered, m.firings, m.intel,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if jobs != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "scheduler_jobs",
			Help:      "Scheduled rescan jobs",
		}, func() float64 { return float64(jobs()) }))
	}
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveScan records one finished visit.
func (m *Metrics) ObserveScan(r *model.ScanResult) {
	m.scans.WithLabelValues(string(r.Status)).Inc()
	m.scanDuration.Observe(r.Elapsed.Seconds())
	if r.Status == model.StatusOK {
		m.riskLevels.WithLabelValues(string(r.RiskLevel())).Inc()
	}
}

// ObserveAlert records one alert delivery attempt.
func (m *Metrics) ObserveAlert(channel string, sent bool) {
	m.alerts.WithLabelValues(channel, strconv.FormatBool(sent)).Inc()
}

// ObserveDiscovered records links newly added to the frontier.
func (m *Metrics) ObserveDiscovered(added int) {
	if added > 0 {
		m.discovered.Add(float64(added))
	}
}

// ObserveFiring records the outcome of one scheduler firing.
func (m *Metrics) ObserveFiring(outcome string) {
	m.firings.WithLabelValues(outcome).Inc()
}

// ObserveIntel records one reputation lookup.
func (m *Metrics) ObserveIntel(source, outcome string) {
	m.intel.WithLabelValues(source, outcome).Inc()
}

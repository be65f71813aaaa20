package telemetry

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

const namespace = "posture"

// Metrics records collection and evaluation counters on a private registry.
// It implements collect.Observer.
type Metrics struct {
	registry *prometheus.Registry

	fetchesInFlight prometheus.Gauge
	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	collectorsSkip  *prometheus.CounterVec
	findings        *prometheus.CounterVec
	scans           *prometheus.CounterVec
}

// NewMetrics creates and registers every metric.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetches_in_flight",
			Help:      "Provider calls currently running",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Provider calls by collector and result",
		}, []string{"collector", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collector"}),
		collectorsSkip: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collectors_skipped_total",
			Help:      "Collectors skipped because an upstream was unavailable",
		}, []string{"collector"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings by provider and status",
		}, []string{"provider", "status"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed scans by provider",
		}, []string{"provider"}),
	}
	m.registry.MustRegister(
		m.fetchesInFlight,
		m.fetches,
		m.fetchDuration,
		m.collectorsSkip,
		m.findings,
		m.scans,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) FetchStarted(cache.Path) {
	m.fetchesInFlight.Inc()
}

func (m *Metrics) FetchFinished(p cache.Path, elapsed time.Duration, err error) {
	m.fetchesInFlight.Dec()
	result := "ok"
	if err != nil {
		result = "error"
	}
	collector := p.Key.String()
	m.fetches.WithLabelValues(collector, result).Inc()
	m.fetchDuration.WithLabelValues(collector).Observe(elapsed.Seconds())
}

func (m *Metrics) CollectorSkipped(k cache.Key, _ string) {
	m.collectorsSkip.WithLabelValues(k.String()).Inc()
}

// RecordReport counts the findings of a finished scan.
func (m *Metrics) RecordReport(report *models.AuditReport) {
	if report == nil {
		return
	}
	m.scans.WithLabelValues(report.Provider).Inc()
	for _, f := range report.Findings {
		m.findings.WithLabelValues(report.Provider, f.Status.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until the returned stop function is called.
// The listener is bound before Serve returns so bind errors surface here.
func (m *Metrics) Serve(addr string) (stop func() error, err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return srv.Close, nil
}

// Package metrics provides Prometheus metrics for ledger reads, snapshot
// refreshes and writes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects and exposes betting-core metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	LedgerReads     *prometheus.CounterVec
	LedgerWrites    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	TrackedMarkets  prometheus.Gauge
	ListedMarkets   prometheus.Gauge
	MetadataSyncs   *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		LedgerReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winzzers_ledger_reads_total",
				Help: "Ledger read calls by method and result",
			},
			[]string{"method", "result"},
		),
		LedgerWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winzzers_ledger_writes_total",
				Help: "Ledger transactions by method and result",
			},
			[]string{"method", "result"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "winzzers_refresh_duration_seconds",
				Help:    "Duration of a full market snapshot refresh",
				Buckets: prometheus.DefBuckets,
			},
		),
		TrackedMarkets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "winzzers_tracked_markets",
				Help: "Markets held in the current snapshot",
			},
		),
		ListedMarkets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "winzzers_listed_markets",
				Help: "Open markets in the current snapshot",
			},
		),
		MetadataSyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winzzers_metadata_syncs_total",
				Help: "Best-effort metadata writes by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.LedgerReads,
		m.LedgerWrites,
		m.RefreshDuration,
		m.TrackedMarkets,
		m.ListedMarkets,
		m.MetadataSyncs,
	)

	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRead counts one ledger read.
func (m *Metrics) ObserveRead(method string, err error) {
	if m == nil {
		return
	}
	m.LedgerReads.WithLabelValues(method, result(err)).Inc()
}

// ObserveWrite counts one ledger write.
func (m *Metrics) ObserveWrite(method string, err error) {
	if m == nil {
		return
	}
	m.LedgerWrites.WithLabelValues(method, result(err)).Inc()
}

// ObserveRefresh records a completed refresh and the resulting snapshot size.
func (m *Metrics) ObserveRefresh(d time.Duration, tracked, listed int) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(d.Seconds())
	m.TrackedMarkets.Set(float64(tracked))
	m.ListedMarkets.Set(float64(listed))
}

// ObserveMetadataSync counts one metadata write attempt.
func (m *Metrics) ObserveMetadataSync(err error) {
	if m == nil {
		return
	}
	m.MetadataSyncs.WithLabelValues(result(err)).Inc()
}

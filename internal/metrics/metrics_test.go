package metrics

import (
	"errors"
	"testing"
	"time"
)

// sample returns the value of the series name{labels}, summing counters and
// gauges; histograms report their sample count.
func sample(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	next:
		for _, metric := range fam.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func TestObservations(t *testing.T) {
	m := New()

	m.ObserveRead("getMarketSummary", nil)
	m.ObserveRead("getMarketSummary", errors.New("boom"))
	m.ObserveRead("getMarketSummary", nil)
	m.ObserveWrite("placeBet", nil)
	m.ObserveRefresh(150*time.Millisecond, 12, 4)
	m.ObserveMetadataSync(errors.New("timeout"))

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"winzzers_ledger_reads_total", map[string]string{"method": "getMarketSummary", "result": "ok"}, 2},
		{"winzzers_ledger_reads_total", map[string]string{"method": "getMarketSummary", "result": "error"}, 1},
		{"winzzers_ledger_writes_total", map[string]string{"method": "placeBet", "result": "ok"}, 1},
		{"winzzers_tracked_markets", nil, 12},
		{"winzzers_listed_markets", nil, 4},
		{"winzzers_metadata_syncs_total", map[string]string{"result": "error"}, 1},
		{"winzzers_refresh_duration_seconds", nil, 1},
	}
	for _, tt := range tests {
		if got := sample(t, m, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRead("x", nil)
	m.ObserveWrite("x", nil)
	m.ObserveRefresh(time.Second, 1, 1)
	m.ObserveMetadataSync(nil)
	if m.Registry() == nil {
		t.Fatal("nil metrics should still hand out a registry")
	}
}

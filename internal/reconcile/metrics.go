package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricLoads          = "realm_snapshot_loads_total"
	MetricWrites         = "realm_writes_total"
	MetricSnapshotLoaded = "realm_snapshot_loaded_timestamp_seconds"
)

// Metrics holds the reconciler's collectors. A nil *Metrics records nothing.
type Metrics struct {
	loads    *prometheus.CounterVec
	writes   *prometheus.CounterVec
	loadedAt prometheus.Gauge
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLoads,
			Help: "Snapshot loads by result",
		}, []string{"result"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricWrites,
			Help: "Record writes by kind and outcome",
		}, []string{"kind", "outcome"}),
		loadedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSnapshotLoaded,
			Help: "Unix time of the last successful snapshot load",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.loads, m.writes, m.loadedAt} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) load(err error, unix float64) {
	if m == nil {
		return
	}
	if err != nil {
		m.loads.WithLabelValues("error").Inc()
		return
	}
	m.loads.WithLabelValues("ok").Inc()
	m.loadedAt.Set(unix)
}

func (m *Metrics) write(kind string, outcome Outcome) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(kind, outcome.String()).Inc()
}

package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricStreamClients is the gauge of connected update streams.
const MetricStreamClients = "realm_dashboard_stream_clients"

// Metrics holds the dashboard collectors. A nil *Metrics records nothing.
type Metrics struct {
	streams prometheus.Gauge
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricStreamClients,
			Help: "Connected dashboard update streams",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.streams)
}

func (m *Metrics) streamOpened() {
	if m != nil {
		m.streams.Inc()
	}
}

func (m *Metrics) streamClosed() {
	if m != nil {
		m.streams.Dec()
	}
}

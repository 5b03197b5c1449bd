package airtable

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRequests        = "airtable_requests_total"
	MetricRequestDuration = "airtable_request_duration_seconds"
	MetricPagesFetched    = "airtable_pages_fetched_total"
)

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pagesFetched    *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors; call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequests,
			Help: "Airtable API requests by table, method and status code",
		}, []string{"table", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDuration,
			Help:    "Airtable API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "method"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPagesFetched,
			Help: "List pages fetched per table",
		}, []string{"table"}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.requestDuration, m.pagesFetched} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observe records one request. code 0 means the request never got a response.
func (m *Metrics) observe(table, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(table, method, label).Inc()
	m.requestDuration.WithLabelValues(table, method).Observe(seconds)
}

func (m *Metrics) incPages(table string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(table).Inc()
}

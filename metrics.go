package kvserver

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

// Metrics are server counters. All of them are registered in Registry.
type Metrics struct {
	Registry    metrics.Registry
	Accepted    metrics.Counter
	Active      metrics.Counter
	Requests    metrics.Meter
	Latency     metrics.Timer
	ParseErrors metrics.Counter
}

func NewMetrics(r metrics.Registry) *Metrics {
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &Metrics{
		Registry:    r,
		Accepted:    metrics.NewRegisteredCounter("conn.accepted", r),
		Active:      metrics.NewRegisteredCounter("conn.active", r),
		Requests:    metrics.NewRegisteredMeter("requests", r),
		Latency:     metrics.NewRegisteredTimer("requests.latency", r),
		ParseErrors: metrics.NewRegisteredCounter("requests.parse_errors", r),
	}
}

func (m *Metrics) request(start time.Time) {
	m.Requests.Mark(1)
	m.Latency.UpdateSince(start)
}

// registerPool registers gauges of pool state.
func (m *Metrics) registerPool(busy, pending func() int) {
	metrics.NewRegisteredFunctionalGauge("workers.busy", m.Registry, func() int64 { return int64(busy()) })
	metrics.NewRegisteredFunctionalGauge("workers.pending", m.Registry, func() int64 { return int64(pending()) })
}

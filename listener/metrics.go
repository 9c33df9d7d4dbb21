package listener

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	busPrometheusMetrics sync.Once

	listenersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storekit",
			Subsystem: "listener",
			Name:      "subscriptions",
			Help:      "Number of live listener subscriptions across all buses.",
		})
	listenerPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "listener",
			Name:      "panics_total",
			Help:      "Number of listener invocations that panicked and were recovered.",
		},
		[]string{"source"})
)

// RegisterMetrics registers the bus collectors with reg. Only the first call
// has an effect.
func RegisterMetrics(reg prometheus.Registerer) {
	busPrometheusMetrics.Do(func() {
		reg.MustRegister(listenersGauge)
		reg.MustRegister(listenerPanicsTotal)
	})
}

package registry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registryPrometheusMetrics sync.Once

	storesRegisteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "registry",
			Name:      "stores_registered_total",
			Help:      "Number of successful store registrations, including replacements.",
		},
		[]string{"registry"})
	lookupMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "registry",
			Name:      "lookup_misses_total",
			Help:      "Number of Select or Dispatch calls for a namespace unknown to the registry and its ancestors.",
		},
		[]string{"registry", "operation"})
	resolveWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storekit",
			Subsystem: "registry",
			Name:      "resolve_wait_seconds",
			Help:      "Time in seconds resolve-select calls waited for a resolver to finish.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"registry"})
)

// RegisterMetrics registers the registry collectors with reg. Only the first
// call has an effect.
func RegisterMetrics(reg prometheus.Registerer) {
	registryPrometheusMetrics.Do(func() {
		reg.MustRegister(storesRegisteredTotal)
		reg.MustRegister(lookupMissesTotal)
		reg.MustRegister(resolveWaitSeconds)
	})
}

package store

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storePrometheusMetrics sync.Once

	storeDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "store",
			Name:      "dispatches_total",
			Help:      "Number of actions dispatched, including resolution metadata actions.",
		},
		[]string{"namespace"})

	resolutionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "store",
			Name:      "resolutions_started_total",
			Help:      "Number of resolvers started for a new selector argument tuple.",
		},
		[]string{"namespace", "selector"})
	resolutionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "store",
			Name:      "resolutions_finished_total",
			Help:      "Number of resolvers that completed without error.",
		},
		[]string{"namespace", "selector"})
	resolutionsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storekit",
			Subsystem: "store",
			Name:      "resolutions_failed_total",
			Help:      "Number of resolvers that returned an error or panicked, leaving their tuple in progress.",
		},
		[]string{"namespace", "selector"})
)

// RegisterMetrics registers the store collectors with reg. Only the first
// call has an effect.
func RegisterMetrics(reg prometheus.Registerer) {
	storePrometheusMetrics.Do(func() {
		reg.MustRegister(storeDispatchesTotal)
		reg.MustRegister(resolutionsStartedTotal)
		reg.MustRegister(resolutionsFinishedTotal)
		reg.MustRegister(resolutionsFailedTotal)
	})
}

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Cycles    *prometheus.CounterVec
	Writes    *prometheus.CounterVec
	Conflated *prometheus.CounterVec
	Refresh   prometheus.Histogram
}

// NewMetrics creates the sync loop metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridrealm_bridge_cycles_total",
			Help: "Sync loop cycles by wake source.",
		}, []string{"wake"}),
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridrealm_bridge_writes_total",
			Help: "Intents persisted to the authority.",
		}, []string{"kind"}),
		Conflated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridrealm_bridge_conflated_total",
			Help: "Intents overwritten before the sync loop took them.",
		}, []string{"kind"}),
		Refresh: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridrealm_bridge_refresh_seconds",
			Help:    "Time to re-read entities and chat.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests    *prometheus.CounterVec
	Connections prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridrealm_ws_requests_total",
			Help: "Requests answered, by op and result code (OK on success).",
		}, []string{"op", "code"}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "gridrealm_ws_connections",
			Help: "Open client connections past the handshake.",
		}),
	}
}

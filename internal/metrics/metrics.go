package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pongrelay_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pongrelay_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})

	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pongrelay_sessions_active",
		Help: "The current number of sessions in the registry.",
	})
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pongrelay_sessions_created_total",
		Help: "The total number of sessions created.",
	})
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pongrelay_sessions_swept_total",
		Help: "The total number of sessions removed by the idle sweep.",
	})

	// Relay metrics
	RelayedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pongrelay_events_relayed_total",
		Help: "The total number of relay events accepted and forwarded.",
	}, []string{"event"})
	DroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pongrelay_events_dropped_total",
		Help: "The total number of events dropped for role or binding violations.",
	})
)

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

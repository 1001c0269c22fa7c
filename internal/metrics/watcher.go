package metrics

import "github.com/prometheus/client_golang/prometheus"

// WatcherMetrics holds Prometheus metrics for the chat feed watcher.
type WatcherMetrics struct {
	Reconnects      *prometheus.CounterVec
	MessagesFetched prometheus.Counter
}

// NewWatcherMetrics creates and registers watcher metrics on the given registry.
func NewWatcherMetrics(reg prometheus.Registerer) *WatcherMetrics {
	m := &WatcherMetrics{
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts, by reason.",
		}, []string{"reason"}),
		MessagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "messages_fetched_total",
			Help:      "Total number of chat messages fetched from the feed.",
		}),
	}

	reg.MustRegister(m.Reconnects, m.MessagesFetched)
	return m
}

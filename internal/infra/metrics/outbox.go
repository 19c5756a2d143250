package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(outboxEventsTotal) }

var outboxEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vidscribe_outbox_events_total",
		Help: "Outbox relay results per event.",
	},
	[]string{"result"}, // 'published', 'failed'
)

func IncOutboxEvent(result string) {
	outboxEventsTotal.WithLabelValues(norm(result)).Inc()
}

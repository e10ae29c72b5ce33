package events

import (
	"hms-notification-service/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notification"

// MetricsObserver counts events by type and channel.
type MetricsObserver struct {
	events *prometheus.CounterVec
}

func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	return &MetricsObserver{
		events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of notification lifecycle events",
			},
			[]string{"type", "channel"},
		),
	}
}

func (m *MetricsObserver) Observe(ev domain.Event) {
	n := 1
	if ev.Count > 1 && (ev.Type == domain.EventQueueExpired || ev.Type == domain.EventQueueEvicted) {
		n = ev.Count
	}
	m.events.WithLabelValues(string(ev.Type), ev.Channel).Add(float64(n))
}

// RegisterStatsGauges exposes the service statistics as gauges read at scrape
// time.
func RegisterStatsGauges(reg prometheus.Registerer, stats func() domain.Statistics) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Live connections in the registry",
	}, func() float64 { return float64(stats().ConnectedClients) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_users",
		Help:      "Distinct users with at least one live connection",
	}, func() float64 { return float64(stats().ConnectedUsers) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queued_messages",
		Help:      "Messages waiting in offline queues",
	}, func() float64 { return float64(stats().QueuedMessages) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscriptions",
		Help:      "Stored notification subscriptions",
	}, func() float64 { return float64(stats().Subscriptions) })
}

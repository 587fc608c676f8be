package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons for querysync_dropped_events_total.
const (
	dropDestroyed = "destroyed"
	dropStale     = "stale"
	dropEmpty     = "empty"
)

// Metrics holds the observer's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so observers without
// metrics need no special casing.
type Metrics struct {
	watchesCreated      prometheus.Counter
	watchesReleased     prometheus.Counter
	notifications       prometheus.Counter
	optimisticWrites    prometheus.Counter
	droppedEvents       *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests use to read values
// directly.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		watchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "querysync_watches_created_total",
			Help: "Total watches created through a factory",
		}),
		watchesReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "querysync_watches_released_total",
			Help: "Total watches unsubscribed",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "querysync_notifications_total",
			Help: "Total listener notification rounds",
		}),
		optimisticWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "querysync_optimistic_writes_total",
			Help: "Total optimistic cache writes",
		}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querysync_dropped_events_total",
			Help: "Watch update events dropped by reason",
		}, []string{"reason"}),
		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "querysync_active_subscriptions",
			Help: "Number of live subscriptions",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.watchesCreated,
			m.watchesReleased,
			m.notifications,
			m.optimisticWrites,
			m.droppedEvents,
			m.activeSubscriptions,
		)
	}
	return m
}

func (m *Metrics) created(n int) {
	if m == nil || n == 0 {
		return
	}
	m.watchesCreated.Add(float64(n))
}

func (m *Metrics) released(n int) {
	if m == nil || n == 0 {
		return
	}
	m.watchesReleased.Add(float64(n))
}

func (m *Metrics) notified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) optimisticWrite() {
	if m == nil {
		return
	}
	m.optimisticWrites.Inc()
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.droppedEvents.WithLabelValues(reason).Inc()
}

func (m *Metrics) active(n int) {
	if m == nil {
		return
	}
	m.activeSubscriptions.Set(float64(n))
}

package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsPublished counts events handed to a broker.
	// Labels: backend, type
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Total number of project events published",
		},
		[]string{"backend", "type"},
	)

	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "publish_failures_total",
			Help:      "Total number of failed publishes",
		},
		[]string{"backend"},
	)

	eventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "events_delivered_total",
			Help:      "Total number of events handed to subscription handlers",
		},
		[]string{"backend"},
	)

	// eventsDropped counts events discarded because a subscriber fell behind
	// or sent an undecodable payload.
	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped before delivery",
		},
		[]string{"backend", "reason"},
	)

	activeSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "collab",
			Subsystem: "realtime",
			Name:      "active_subscriptions",
			Help:      "Number of open project subscriptions",
		},
		[]string{"backend"},
	)
)

package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

var (
	// operationsTotal counts façade calls by outcome code ("ok" on success).
	// Labels: operation, code
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "api",
			Name:      "operations_total",
			Help:      "Total number of collaboration operations by result",
		},
		[]string{"operation", "code"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collab",
			Subsystem: "api",
			Name:      "operation_duration_seconds",
			Help:      "Duration of collaboration operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// eventsWithheld counts change events not handed to a subscriber because
	// its access could not be confirmed.
	// Labels: reason (revoked, check_failed)
	eventsWithheld = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collab",
			Subsystem: "api",
			Name:      "events_withheld_total",
			Help:      "Total number of change events withheld from subscribers",
		},
		[]string{"reason"},
	)
)

func observe(op string, start time.Time, err *error) {
	code := "ok"
	if *err != nil {
		code = domain.Code(*err)
	}
	operationsTotal.WithLabelValues(op, code).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

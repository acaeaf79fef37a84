package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lpreserve_reservations_created_total",
		Help: "Committed reservation lines.",
	})

	ReservationsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lpreserve_reservations_cancelled_total",
		Help: "Reservations cancelled, including bulk auto-release.",
	})

	ReservationsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lpreserve_reservations_consumed_total",
		Help: "Reservations consumed by production.",
	})

	AllocationShortfalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lpreserve_allocation_shortfalls_total",
		Help: "Allocation requests that could not be fully satisfied.",
	})

	ConflictWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lpreserve_conflict_warnings_total",
		Help: "Reservations committed against an LP already reserved by another work order.",
	})

	RejectedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lpreserve_rejected_lines_total",
		Help: "Explicit selection lines rejected at commit time.",
	})
)

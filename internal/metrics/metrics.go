package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)

	validations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "validations_total",
			Help:      "Count of conflict-detector validations by outcome.",
		},
		[]string{"outcome"},
	)

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "reservations_created_total",
			Help:      "Count of reservations created by status.",
		},
		[]string{"status"},
	)

	checkIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "checkins_total",
			Help:      "Count of check-in attempts by result.",
		},
		[]string{"result"},
	)

	sweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "sweep_runs_total",
			Help:      "Count of grace-period sweep passes.",
		},
	)

	sweepReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "sweep_released_total",
			Help:      "Count of reservations auto-released by the sweep.",
		},
	)

	walkInsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "walkins_created_total",
			Help:      "Count of walk-in reservations admitted.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomspace",
			Name:      "notifications_total",
			Help:      "Count of notification dispatches by event and result.",
		},
		[]string{"event", "result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			validations,
			reservationsCreated,
			checkIns,
			sweepRuns,
			sweepReleased,
			walkInsCreated,
			notifications,
		)
	})
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncValidation(outcome string) {
	validations.WithLabelValues(outcome).Inc()
}

func IncReservationCreated(status string) {
	reservationsCreated.WithLabelValues(status).Inc()
}

func IncCheckIn(result string) {
	checkIns.WithLabelValues(result).Inc()
}

func IncSweepRun() {
	sweepRuns.Inc()
}

func AddSweepReleased(n int) {
	sweepReleased.Add(float64(n))
}

func IncWalkInCreated() {
	walkInsCreated.Inc()
}

func IncNotification(event, result string) {
	notifications.WithLabelValues(event, result).Inc()
}

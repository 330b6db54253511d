package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "initd",
			Subsystem: "service",
			Name:      "launches_total",
			Help:      "Number of successful service launches.",
		}, []string{"name"},
	)
	serviceLaunchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "initd",
			Subsystem: "service",
			Name:      "launch_failures_total",
			Help:      "Number of failed launch attempts.",
		}, []string{"name"},
	)
	serviceExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "initd",
			Subsystem: "service",
			Name:      "exits_total",
			Help:      "Number of reaped service exits by outcome.",
		}, []string{"name", "outcome"},
	)
	serviceRelaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "initd",
			Subsystem: "service",
			Name:      "relaunches_total",
			Help:      "Number of policy-driven relaunches.",
		}, []string{"name"},
	)
	watchdogExpirations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "initd",
			Subsystem: "watchdog",
			Name:      "expirations_total",
			Help:      "Number of missed-heartbeat failures.",
		}, []string{"name"},
	)
	orphansReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "initd",
			Subsystem: "reaper",
			Name:      "orphans_reaped_total",
			Help:      "Exits reaped with no matching service record.",
		},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "initd",
			Subsystem: "service",
			Name:      "current_state",
			Help:      "Current state of services (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serviceLaunches, serviceLaunchFailures, serviceExits,
		serviceRelaunches, watchdogExpirations, orphansReaped, currentStates,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// Already registered is fine (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

func IncLaunch(name string)        { serviceLaunches.WithLabelValues(name).Inc() }
func IncLaunchFailure(name string) { serviceLaunchFailures.WithLabelValues(name).Inc() }
func IncRelaunch(name string)      { serviceRelaunches.WithLabelValues(name).Inc() }
func IncWatchdogExpired(name string) {
	watchdogExpirations.WithLabelValues(name).Inc()
}
func IncOrphanReaped() { orphansReaped.Inc() }

// IncExit records a reaped exit; outcome is "clean" or "failed".
func IncExit(name string, clean bool) {
	outcome := "failed"
	if clean {
		outcome = "clean"
	}
	serviceExits.WithLabelValues(name, outcome).Inc()
}

// SetState publishes the current state of a service; all sibling states
// are reset to 0 so exactly one series per service reads 1.
func SetState(name, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		currentStates.WithLabelValues(name, s).Set(v)
	}
}

// Handler returns an http.Handler serving Prometheus metrics for the
// default gatherer. The caller wires the route and server.
func Handler() http.Handler { return promhttp.Handler() }

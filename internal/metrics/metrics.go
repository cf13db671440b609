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

	serverStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftd",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of successful server starts.",
		},
	)
	serverStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftd",
			Subsystem: "server",
			Name:      "stops_total",
			Help:      "Number of observed server exits (graceful or crash).",
		},
	)
	serverCrashRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftd",
			Subsystem: "server",
			Name:      "crash_restarts_total",
			Help:      "Number of automatic restarts after a non-zero exit.",
		},
	)
	serverUptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "craftd",
			Subsystem: "server",
			Name:      "uptime_seconds",
			Help:      "Seconds since the current server process was spawned, 0 when stopped.",
		},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "craftd",
			Subsystem: "server",
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	updateChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "craftd",
			Subsystem: "updater",
			Name:      "checks_total",
			Help:      "Update checks by outcome (updated, up-to-date, failed).",
		}, []string{"result"},
	)
	backupsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftd",
			Subsystem: "backup",
			Name:      "snapshots_total",
			Help:      "Number of world snapshots created.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serverStarts, serverStops, serverCrashRestarts, serverUptime, currentStates, updateChecks, backupsCreated}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart() {
	if regOK.Load() {
		serverStarts.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		serverStops.Inc()
	}
}

func IncCrashRestart() {
	if regOK.Load() {
		serverCrashRestarts.Inc()
	}
}

func SetUptime(seconds float64) {
	if regOK.Load() {
		serverUptime.Set(seconds)
	}
}

func IncUpdateCheck(result string) {
	if regOK.Load() {
		updateChecks.WithLabelValues(result).Inc()
	}
}

func IncBackup() {
	if regOK.Load() {
		backupsCreated.Inc()
	}
}

func SetCurrentState(state string, active bool) {
	if regOK.Load() {
		var value float64
		if active {
			value = 1
		}
		currentStates.WithLabelValues(state).Set(value)
	}
}

// Package metrics holds the Prometheus collectors of the record/replay
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "browsetrace"

var (
	EventsCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_captured_total",
		Help:      "Events appended to the event log, by category.",
	}, []string{"category"})
	EventsExcluded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_excluded_total",
		Help:      "Events dropped by the filter because they hit the control surface.",
	})
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dispatched_total",
		Help:      "Events dispatched during playback, by category.",
	}, []string{"category"})
	DispatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_errors_total",
		Help:      "Dispatches or mimic hooks that returned an error.",
	})
	UnresolvedTargets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unresolved_targets_total",
		Help:      "Replayed events whose target selector matched nothing and fell back to the document root.",
	})
	PlaybackRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_runs_total",
		Help:      "Playback runs by outcome (started, finished, stopped).",
	}, []string{"outcome"})
	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_state",
		Help:      "1 for the current session state, 0 otherwise.",
	}, []string{"state"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

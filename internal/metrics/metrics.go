package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultRunning = "running"
	ResultStopped = "stopped"
	ResultError   = "error"
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	statusChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "padwake",
			Subsystem: "guest",
			Name:      "status_checks_total",
			Help:      "Guest status queries by result (running, stopped, error).",
		}, []string{"result"},
	)
	wakeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "padwake",
			Subsystem: "guest",
			Name:      "wake_attempts_total",
			Help:      "Guest start requests by result (success, failure).",
		}, []string{"result"},
	)
	controllerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "padwake",
			Subsystem: "listener",
			Name:      "controller_events_total",
			Help:      "Controller events drained by the listener, by type.",
		}, []string{"type"},
	)
	listenerIterations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "padwake",
			Subsystem: "listener",
			Name:      "iterations_total",
			Help:      "Input poll iterations performed by the listener.",
		},
	)
	supervisorState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "padwake",
			Subsystem: "supervisor",
			Name:      "state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{statusChecks, wakeAttempts, controllerEvents, listenerIterations, supervisorState}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
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

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr and blocks until the server fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}

// Helpers below no-op until Register has succeeded.

func IncStatusCheck(result string) {
	if regOK.Load() {
		statusChecks.WithLabelValues(result).Inc()
	}
}

func IncWake(result string) {
	if regOK.Load() {
		wakeAttempts.WithLabelValues(result).Inc()
	}
}

func IncControllerEvent(typ string) {
	if regOK.Load() {
		controllerEvents.WithLabelValues(typ).Inc()
	}
}

func IncIteration() {
	if regOK.Load() {
		listenerIterations.Inc()
	}
}

// SetState marks state active and every other known state inactive.
func SetState(state string, all ...string) {
	if !regOK.Load() {
		return
	}
	for _, s := range all {
		if s != state {
			supervisorState.WithLabelValues(s).Set(0)
		}
	}
	supervisorState.WithLabelValues(state).Set(1)
}

// Package metrics exposes session dispatch counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/btouchard/recents/internal/session"
)

const namespace = "recents"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Sink is a diagnostic sink that counts transitions, fan-outs and ignored
// signals.
type Sink struct {
	Transitions       *prometheus.CounterVec
	FanOuts           *prometheus.CounterVec
	ListenersNotified *prometheus.CounterVec
	IgnoredSignals    *prometheus.CounterVec
}

// NewSink creates and registers session metrics on the given registry.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by source and target state.",
		}, []string{"from", "to"}),
		FanOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "fanouts_total",
			Help:      "Notification batches delivered to listeners.",
		}, []string{"kind"}),
		ListenersNotified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "listeners_notified_total",
			Help:      "Individual listener invocations.",
		}, []string{"kind"}),
		IgnoredSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ignored_total",
			Help:      "Signals dropped because the session was in the wrong state.",
		}, []string{"event", "state"}),
	}

	reg.MustRegister(s.Transitions, s.FanOuts, s.ListenersNotified, s.IgnoredSignals)
	return s
}

// Transition counts a state change by its endpoints.
func (s *Sink) Transition(_ string, from, to session.State) {
	s.Transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// FanOut counts the batch and the listeners it reached.
func (s *Sink) FanOut(_ string, kind string, listeners int) {
	s.FanOuts.WithLabelValues(kind).Inc()
	s.ListenersNotified.WithLabelValues(kind).Add(float64(listeners))
}

// Ignored counts a dropped signal by the state that rejected it.
func (s *Sink) Ignored(_ string, signal string, state session.State) {
	s.IgnoredSignals.WithLabelValues(signal, state.String()).Inc()
}

// Package metrics exposes authgate activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/goliatone/go-authgate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var sessionStates = []authgate.SessionState{
	authgate.StateUnknown,
	authgate.StateAnonymous,
	authgate.StateAuthenticated,
}

// Collector counts activity events and tracks the current session state.
// It is an authgate.ActivitySink.
type Collector struct {
	events       *prometheus.CounterVec
	sessionState *prometheus.GaugeVec
	redirects    prometheus.Counter
}

var _ authgate.ActivitySink = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_activity_events_total",
			Help: "Activity events by type.",
		}, []string{"event_type"}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "authgate_session_state",
			Help: "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_gate_redirects_total",
			Help: "Navigation redirects issued by the session gate.",
		}),
	}

	reg.MustRegister(c.events, c.sessionState, c.redirects)
	c.setState(authgate.StateUnknown)
	return c
}

// Record implements authgate.ActivitySink.
func (c *Collector) Record(_ context.Context, event authgate.ActivityEvent) error {
	c.events.WithLabelValues(string(event.EventType)).Inc()
	if event.ToState != "" {
		c.setState(event.ToState)
	}
	if redirect, _ := event.Metadata["redirect"].(string); redirect != "" {
		c.redirects.Inc()
	}
	return nil
}

func (c *Collector) setState(current authgate.SessionState) {
	for _, state := range sessionStates {
		value := 0.0
		if state == current {
			value = 1
		}
		c.sessionState.WithLabelValues(string(state)).Set(value)
	}
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

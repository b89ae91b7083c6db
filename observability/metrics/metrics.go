// Package metrics exposes a Prometheus-backed event sink. Wired behind the
// engines' emitter, it counts every emitted settlement event by type so
// operators can watch lock/release/payout volume without parsing logs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"custodia/core/events"
)

// Sink counts emitted events by type. It implements events.Emitter.
type Sink struct {
	emitted *prometheus.CounterVec
}

// NewSink builds a sink and registers its collector with the supplied
// registerer. Passing nil uses the default registerer.
func NewSink(registerer prometheus.Registerer) (*Sink, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	emitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custodia",
		Subsystem: "events",
		Name:      "emitted_total",
		Help:      "Settlement events emitted, labelled by event type.",
	}, []string{"type"})
	if err := registerer.Register(emitted); err != nil {
		return nil, err
	}
	return &Sink{emitted: emitted}, nil
}

// Emit implements the events.Emitter interface.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	s.emitted.WithLabelValues(evt.EventType()).Inc()
}

// Package audit writes every emitted settlement event to the structured log,
// giving operators an append-only audit trail of state transitions. The sink
// only writes; events are never read back.
package audit

import (
	"log/slog"

	"custodia/core/events"
	"custodia/core/types"
)

// Sink logs emitted events. It implements events.Emitter.
type Sink struct {
	logger *slog.Logger
}

// NewSink builds an audit sink over the supplied logger. Passing nil uses the
// process default.
func NewSink(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

// Emit implements the events.Emitter interface.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	s.logger.Info("settlement event", attrs...)
}

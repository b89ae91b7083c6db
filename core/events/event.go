package events

// Event represents a structured state change emitted by the custody engines.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers, audit
// channels). The engines only ever write to it; events are never read back.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans every event out to each configured emitter in order. Nil
// entries are skipped.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter builds a fan-out emitter over the supplied sinks.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	filtered := make([]Emitter, 0, len(emitters))
	for _, emitter := range emitters {
		if emitter != nil {
			filtered = append(filtered, emitter)
		}
	}
	return &MultiEmitter{emitters: filtered}
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(evt Event) {
	if m == nil {
		return
	}
	for _, emitter := range m.emitters {
		emitter.Emit(evt)
	}
}

package events

import "bloomsocial/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves into the
// attribute form persisted in the event log.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder buffers emitted events in order until they are drained. The ledger
// uses one per command so that events of a failed command are discarded.
type Recorder struct {
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if evt == nil {
		return
	}
	r.events = append(r.events, evt)
}

// Events returns the buffered events in emission order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len reports the number of buffered events.
func (r *Recorder) Len() int { return len(r.events) }

// Reset drops all buffered events.
func (r *Recorder) Reset() { r.events = nil }

// ToTypes converts an emitted event into its persisted representation.
func ToTypes(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if payload, ok := evt.(Payload); ok {
		return payload.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

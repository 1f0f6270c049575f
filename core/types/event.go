package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy of the event so buffered copies cannot be mutated
// through the original attribute map.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Type: e.Type, Attributes: attrs}
}

// EventRecord is a committed event with its position in the ledger event log.
// Sequences start at 1 and are gap-free. Digest chains each record to its
// predecessor so consumers can detect a rewritten log.
type EventRecord struct {
	Sequence  uint64   `json:"sequence"`
	Timestamp int64    `json:"timestamp"`
	Digest    [32]byte `json:"-"`
	Event     *Event   `json:"event"`
}

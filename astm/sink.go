package astm

import "sync"

// StatusChange reports a session state transition.
type StatusChange struct {
	From SessionState
	To   SessionState
}

// EventSink receives link-layer events from a session.
//
// The session never assumes the sink is a UI; implementations range from
// operator consoles to the RecordingSink used by tests. Sink methods are
// invoked synchronously from the protocol loop and must not block.
type EventSink interface {
	// OnRaw is called with every chunk of bytes read from the transport.
	OnRaw(data []byte)
	// OnDecoded is called for every record decoded from a complete message.
	OnDecoded(rec Record)
	// OnSent is called with every frame or control byte written during an
	// outbound transfer.
	OnSent(data []byte)
	// OnStatus is called on every session state transition.
	OnStatus(change StatusChange)
}

// NopSink is an EventSink that discards all events.
type NopSink struct{}

var _ EventSink = NopSink{}

func (NopSink) OnRaw([]byte)          {}
func (NopSink) OnDecoded(Record)      {}
func (NopSink) OnSent([]byte)         {}
func (NopSink) OnStatus(StatusChange) {}

// RecordingSink is an EventSink that records every event it receives.
// It is safe for concurrent use and intended for tests.
type RecordingSink struct {
	mu       sync.Mutex
	raw      [][]byte
	decoded  []Record
	sent     [][]byte
	statuses []StatusChange
}

var _ EventSink = (*RecordingSink)(nil)

func (s *RecordingSink) OnRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	s.raw = append(s.raw, cp)
}

func (s *RecordingSink) OnDecoded(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decoded = append(s.decoded, rec)
}

func (s *RecordingSink) OnSent(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	s.sent = append(s.sent, cp)
}

func (s *RecordingSink) OnStatus(change StatusChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses = append(s.statuses, change)
}

// Decoded returns a copy of the recorded decoded records.
func (s *RecordingSink) Decoded() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.decoded))
	copy(out, s.decoded)

	return out
}

// Sent returns a copy of the recorded outbound writes.
func (s *RecordingSink) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.sent))
	copy(out, s.sent)

	return out
}

// Statuses returns a copy of the recorded state transitions.
func (s *RecordingSink) Statuses() []StatusChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StatusChange, len(s.statuses))
	copy(out, s.statuses)

	return out
}

package chanledger

import (
	"sync"

	"github.com/tendermint/tendermint/libs/common"
)

// Event types emitted by the channel ledger.
const (
	EventChannelOpened    = "channel-opened"
	EventChannelFunded    = "channel-funded"
	EventChannelUpdated   = "channel-updated"
	EventDisputeInitiated = "dispute-initiated"
	EventDisputeResolved  = "dispute-resolved"
	EventChannelClosed    = "channel-closed"
	EventEmergencyClose   = "emergency-close"
)

// Event is a notification produced by a successful state transition.
// Attributes are stored as tags so they can be indexed the same way as
// transaction tags.
type Event struct {
	Type       string
	ChannelID  uint64
	Height     int64
	Attributes []common.KVPair
}

// Attr returns the value of the first attribute with given key or nil.
func (e Event) Attr(key string) []byte {
	for _, kv := range e.Attributes {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return nil
}

// EventEmitter is implemented by anything that wants to be notified about
// ledger events. Emit is called only after the state change was persisted.
type EventEmitter interface {
	Emit(Event) error
}

// EventEmitterFunc adapts a function to the EventEmitter interface.
type EventEmitterFunc func(Event) error

// Emit calls the wrapped function.
func (fn EventEmitterFunc) Emit(e Event) error {
	return fn(e)
}

// NopEmitter discards all events.
type NopEmitter struct{}

var _ EventEmitter = NopEmitter{}

// Emit implements EventEmitter.
func (NopEmitter) Emit(Event) error { return nil }

// EventLog is an in memory EventEmitter that records every event. It is safe
// for concurrent use.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

var _ EventEmitter = (*EventLog)(nil)

// NewEventLog returns an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Emit implements EventEmitter.
func (l *EventLog) Emit(e Event) error {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

// Events returns a copy of all recorded events in emission order.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	cpy := make([]Event, len(l.events))
	copy(cpy, l.events)
	return cpy
}

// OfType returns all recorded events of given type.
func (l *EventLog) OfType(typ string) []Event {
	var res []Event
	for _, e := range l.Events() {
		if e.Type == typ {
			res = append(res, e)
		}
	}
	return res
}

// Reset drops all recorded events.
func (l *EventLog) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// Package event provides the streaming event vocabulary emitted by the graph
// driver and the interfaces used to deliver and retain it.
package event

import (
	"encoding/json"
	"time"
)

// Event is one entry of an execution's event stream.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// ThreadID is the thread whose execution produced the event.
	ThreadID string `json:"thread_id"`

	// Type classifies the event.
	Type Type `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Payload contains the event-specific data.
	Payload json.RawMessage `json:"payload"`

	// Sequence is the ordering number within the thread's event stream.
	Sequence uint64 `json:"sequence"`
}

// NewEvent creates a new event with the given type and payload.
func NewEvent(threadID string, eventType Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ThreadID:  threadID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// UnmarshalPayload decodes the event payload into the given value.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// IsTerminal returns true for the last event an execution emits.
func (e Event) IsTerminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

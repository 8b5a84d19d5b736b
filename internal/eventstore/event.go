package eventstore

import (
	"encoding/json"
	"time"
)

// Event is one recorded step in a build's timeline.
type Event interface {
	ID() int64
	BuildID() string
	Type() string
	Timestamp() time.Time
	Payload() []byte
	Metadata() map[string]string
}

// BaseEvent is the stored form of an Event.
type BaseEvent struct {
	EventID        int64
	EventBuildID   string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) BuildID() string             { return e.EventBuildID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }

// MarshalJSON renders the event for `history` output. A payload that is not
// valid JSON is emitted as a string.
func (e *BaseEvent) MarshalJSON() ([]byte, error) {
	var payload any = json.RawMessage(e.EventPayload)
	if len(e.EventPayload) == 0 || !json.Valid(e.EventPayload) {
		payload = string(e.EventPayload)
	}
	return json.Marshal(struct {
		ID        int64             `json:"id"`
		BuildID   string            `json:"buildId"`
		Type      string            `json:"type"`
		Timestamp time.Time         `json:"timestamp"`
		Payload   any               `json:"payload"`
		Metadata  map[string]string `json:"metadata,omitempty"`
	}{e.EventID, e.EventBuildID, e.EventType, e.EventTimestamp, payload, e.EventMetadata})
}

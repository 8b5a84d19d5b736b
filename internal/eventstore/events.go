package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

// Build event types.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeStepCompleted  = "StepCompleted"
	TypeStepFailed     = "StepFailed"
	TypeBuildCompleted = "BuildCompleted"
	TypeBuildFailed    = "BuildFailed"
)

// BuildStarted is the payload of TypeBuildStarted.
type BuildStarted struct {
	Mode  string   `json:"mode"`
	Root  string   `json:"root"`
	Steps []string `json:"steps,omitempty"`
}

// StepFinished is the payload of TypeStepCompleted and TypeStepFailed.
type StepFinished struct {
	Step       string  `json:"step"`
	DurationMS float64 `json:"durationMs"`
	Error      string  `json:"error,omitempty"`
}

// BuildFinished is the payload of TypeBuildCompleted and TypeBuildFailed.
type BuildFinished struct {
	DurationMS float64  `json:"durationMs"`
	CacheKey   string   `json:"cacheKey,omitempty"`
	CacheHit   bool     `json:"cacheHit"`
	Files      []string `json:"files,omitempty"`
	// Step is the step that failed, if any.
	Step  string `json:"step,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewEvent encodes payload into an event stamped now.
func NewEvent(buildID, eventType string, payload any, metadata map[string]string) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal event payload").
			WithCause(err).
			WithContext("build_id", buildID).
			WithContext("event_type", eventType).
			Build()
	}
	return &BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
		EventMetadata:  metadata,
	}, nil
}

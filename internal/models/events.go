package models

import (
	"time"
)

// EventType classifies a telemetry event.
type EventType string

const (
	EventImpression   EventType = "impression"
	EventClick        EventType = "click"
	EventComplete     EventType = "complete"
	EventSessionStart EventType = "session_start"
	EventCustom       EventType = "custom"
)

// IsAdEvent reports whether the event is tracked through /api/sdk/ad-events.
func (t EventType) IsAdEvent() bool {
	switch t {
	case EventImpression, EventClick, EventComplete:
		return true
	}
	return false
}

// TelemetryEvent is a fire-and-forget analytics record.
type TelemetryEvent struct {
	Type     EventType      `json:"type"`
	Name     string         `json:"name,omitempty"` // custom events only
	GameID   string         `json:"gameId"`
	PlayerID string         `json:"playerId"`
	AdID     string         `json:"adId,omitempty"`
	Slot     SlotType       `json:"slot,omitempty"`

	// Timestamp is unix milliseconds.
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Time returns the event timestamp as a time.Time.
func (e TelemetryEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// EventBatch is the body of the ad-events and game-events endpoints.
type EventBatch struct {
	GameID   string           `json:"gameId"`
	PlayerID string           `json:"playerId"`
	Events   []TelemetryEvent `json:"events"`
}

package model

import "time"

type EventType string

const (
	EventTypeLocation EventType = "location"
)

// Event is the closed set of messages a subscriber connection can carry.
// Exactly one payload field matching Type is non-nil. New event kinds must
// be added here and handled at the connection send boundary.
type Event struct {
	Type EventType

	Location *LocationUpdate
}

type LocationUpdate struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Speed      *float64  `json:"speed,omitempty"`
	RecordedAt time.Time `json:"ts"`
}

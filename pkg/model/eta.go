package model

import (
	"encoding/json"
	"time"
)

// EtaEstimate is a cached, TTL-bounded guess at when a vehicle reaches a
// stop. Never authoritative; may be stale or absent.
type EtaEstimate struct {
	VehicleRef string `groups:"basic"`
	StopRef    string `groups:"basic"`

	Duration time.Duration `groups:"basic"`

	ComputedAt time.Time `groups:"basic"`
}

func (e EtaEstimate) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

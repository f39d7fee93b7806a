package model

import "time"

// LocationReport is a single GPS fix for a vehicle. Reports are append-only
// and owned by the store; they are never modified after creation.
type LocationReport struct {
	VehicleRef string `groups:"basic"`

	Location *Location `groups:"basic"`

	Speed *float64 `groups:"basic"`

	RecordedAt time.Time `groups:"basic"`

	// Raw carries the original payload from the reporting device, if any.
	// Opaque, kept for diagnostics only.
	Raw map[string]interface{} `groups:"detailed"`
}

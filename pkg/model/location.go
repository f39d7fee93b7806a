package model

import "math"

// Location is a GeoJSON point. Coordinates are longitude then latitude.
type Location struct {
	Type        string    `json:"-" groups:"basic"`
	Coordinates []float64 `json:"coordinates" groups:"basic"`
}

func NewLocation(lon float64, lat float64) *Location {
	return &Location{
		Type:        "Point",
		Coordinates: []float64{lon, lat},
	}
}

func (l *Location) Longitude() float64 {
	return l.Coordinates[0]
}

func (l *Location) Latitude() float64 {
	return l.Coordinates[1]
}

func (l *Location) Distance(other *Location) float64 {
	dx := l.Coordinates[0] - other.Coordinates[0]
	dy := l.Coordinates[1] - other.Coordinates[1]

	return math.Sqrt(dx*dx + dy*dy)
}

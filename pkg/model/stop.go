package model

type Stop struct {
	PrimaryIdentifier string `groups:"basic" csv:"stop_id"`
	PrimaryName       string `groups:"basic" csv:"name"`

	RouteRef string `groups:"basic" csv:"route_id"`

	// Sequence is the stop's position along its route, ascending from the
	// start of the route.
	Sequence int `groups:"basic" csv:"sequence"`

	Location *Location `groups:"basic" csv:"-"`

	Latitude  float64 `json:"-" bson:"-" groups:"" csv:"lat"`
	Longitude float64 `json:"-" bson:"-" groups:"" csv:"lon"`
}

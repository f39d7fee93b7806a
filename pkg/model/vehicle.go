package model

import "time"

type Vehicle struct {
	PrimaryIdentifier string `groups:"basic"`
	PrimaryName       string `groups:"basic"`

	CreationDateTime time.Time `groups:"detailed"`

	// RouteRefs lists every route this vehicle serves.
	RouteRefs []string `groups:"basic"`

	// ActiveRouteRef, when set, pins next-stop selection to a single route.
	// Vehicles serving multiple routes are ambiguous without it.
	ActiveRouteRef string `groups:"basic"`
}

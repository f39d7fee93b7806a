package store

import (
	"context"
	"errors"

	"github.com/fleetlive/fleetlive/pkg/model"
)

// ErrNotFound is returned for lookups of vehicles, stops, routes or
// locations that do not exist. Callers translate it at their boundary.
var ErrNotFound = errors.New("record not found")

// Store is the persistence seam for the rest of the system. Location
// reports are append-only; reference data (vehicles, routes, stops) is
// upserted by the data importer.
type Store interface {
	GetVehicle(ctx context.Context, identifier string) (*model.Vehicle, error)
	Vehicles(ctx context.Context) ([]*model.Vehicle, error)
	UpsertVehicle(ctx context.Context, vehicle *model.Vehicle) error

	SaveLocation(ctx context.Context, report *model.LocationReport) (string, error)
	LatestLocation(ctx context.Context, vehicleRef string) (*model.LocationReport, error)
	LocationHistory(ctx context.Context, vehicleRef string, limit int64) ([]*model.LocationReport, error)

	GetStop(ctx context.Context, identifier string) (*model.Stop, error)
	Stops(ctx context.Context) ([]*model.Stop, error)
	UpsertStop(ctx context.Context, stop *model.Stop) error

	// NextStop returns the next stop for the vehicle: the lowest sequence
	// stop on the vehicle's active route when one is set, otherwise the
	// lowest sequence stop across every route the vehicle serves.
	NextStop(ctx context.Context, vehicleRef string) (*model.Stop, error)

	GetRoute(ctx context.Context, identifier string) (*model.Route, error)
	RouteStops(ctx context.Context, routeRef string) ([]*model.Stop, error)
	UpsertRoute(ctx context.Context, route *model.Route) error
}

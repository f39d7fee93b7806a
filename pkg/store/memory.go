package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetlive/fleetlive/pkg/model"
	"golang.org/x/exp/slices"
)

// MemoryStore keeps everything in process memory. Used by tests and for
// running the stack without a database.
type MemoryStore struct {
	mutex sync.RWMutex

	vehicles map[string]*model.Vehicle
	stops    map[string]*model.Stop
	routes   map[string]*model.Route
	reports  []*model.LocationReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vehicles: map[string]*model.Vehicle{},
		stops:    map[string]*model.Stop{},
		routes:   map[string]*model.Route{},
	}
}

func (s *MemoryStore) GetVehicle(ctx context.Context, identifier string) (*model.Vehicle, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	vehicle, exists := s.vehicles[identifier]
	if !exists {
		return nil, ErrNotFound
	}

	return vehicle, nil
}

func (s *MemoryStore) Vehicles(ctx context.Context) ([]*model.Vehicle, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var vehicles []*model.Vehicle
	for _, vehicle := range s.vehicles {
		vehicles = append(vehicles, vehicle)
	}

	slices.SortFunc(vehicles, func(a *model.Vehicle, b *model.Vehicle) int {
		if a.PrimaryIdentifier < b.PrimaryIdentifier {
			return -1
		} else if a.PrimaryIdentifier > b.PrimaryIdentifier {
			return 1
		}
		return 0
	})

	return vehicles, nil
}

func (s *MemoryStore) UpsertVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.vehicles[vehicle.PrimaryIdentifier] = vehicle

	return nil
}

func (s *MemoryStore) SaveLocation(ctx context.Context, report *model.LocationReport) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.reports = append(s.reports, report)

	return fmt.Sprintf("memory-%d", len(s.reports)), nil
}

func (s *MemoryStore) LatestLocation(ctx context.Context, vehicleRef string) (*model.LocationReport, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var latest *model.LocationReport
	for _, report := range s.reports {
		if report.VehicleRef != vehicleRef {
			continue
		}

		if latest == nil || report.RecordedAt.After(latest.RecordedAt) {
			latest = report
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}

	return latest, nil
}

func (s *MemoryStore) LocationHistory(ctx context.Context, vehicleRef string, limit int64) ([]*model.LocationReport, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var reports []*model.LocationReport
	for _, report := range s.reports {
		if report.VehicleRef == vehicleRef {
			reports = append(reports, report)
		}
	}

	slices.SortFunc(reports, func(a *model.LocationReport, b *model.LocationReport) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})

	if limit > 0 && int64(len(reports)) > limit {
		reports = reports[:limit]
	}

	return reports, nil
}

func (s *MemoryStore) GetStop(ctx context.Context, identifier string) (*model.Stop, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stop, exists := s.stops[identifier]
	if !exists {
		return nil, ErrNotFound
	}

	return stop, nil
}

func (s *MemoryStore) Stops(ctx context.Context) ([]*model.Stop, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var stops []*model.Stop
	for _, stop := range s.stops {
		stops = append(stops, stop)
	}

	slices.SortFunc(stops, func(a *model.Stop, b *model.Stop) int {
		if a.PrimaryIdentifier < b.PrimaryIdentifier {
			return -1
		} else if a.PrimaryIdentifier > b.PrimaryIdentifier {
			return 1
		}
		return 0
	})

	return stops, nil
}

func (s *MemoryStore) UpsertStop(ctx context.Context, stop *model.Stop) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stops[stop.PrimaryIdentifier] = stop

	return nil
}

func (s *MemoryStore) NextStop(ctx context.Context, vehicleRef string) (*model.Stop, error) {
	vehicle, err := s.GetVehicle(ctx, vehicleRef)
	if err != nil {
		return nil, err
	}

	routeRefs := vehicle.RouteRefs
	if vehicle.ActiveRouteRef != "" {
		routeRefs = []string{vehicle.ActiveRouteRef}
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var next *model.Stop
	for _, stop := range s.stops {
		if !slices.Contains(routeRefs, stop.RouteRef) {
			continue
		}

		if next == nil || stop.Sequence < next.Sequence {
			next = stop
		}
	}

	if next == nil {
		return nil, ErrNotFound
	}

	return next, nil
}

func (s *MemoryStore) GetRoute(ctx context.Context, identifier string) (*model.Route, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	route, exists := s.routes[identifier]
	if !exists {
		return nil, ErrNotFound
	}

	return route, nil
}

func (s *MemoryStore) RouteStops(ctx context.Context, routeRef string) ([]*model.Stop, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var stops []*model.Stop
	for _, stop := range s.stops {
		if stop.RouteRef == routeRef {
			stops = append(stops, stop)
		}
	}

	slices.SortFunc(stops, func(a *model.Stop, b *model.Stop) int {
		return a.Sequence - b.Sequence
	})

	return stops, nil
}

func (s *MemoryStore) UpsertRoute(ctx context.Context, route *model.Route) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.routes[route.PrimaryIdentifier] = route

	return nil
}

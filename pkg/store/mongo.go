package store

import (
	"context"
	"time"

	"github.com/fleetlive/fleetlive/pkg/database"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists everything in the process-wide mongo instance
// managed by pkg/database.
type MongoStore struct{}

func NewMongoStore() *MongoStore {
	return &MongoStore{}
}

func (s *MongoStore) GetVehicle(ctx context.Context, identifier string) (*model.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	var vehicle *model.Vehicle
	err := vehiclesCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&vehicle)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return vehicle, nil
}

func (s *MongoStore) Vehicles(ctx context.Context) ([]*model.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	cursor, err := vehiclesCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	var vehicles []*model.Vehicle
	for cursor.Next(ctx) {
		var vehicle model.Vehicle
		if err := cursor.Decode(&vehicle); err != nil {
			log.Error().Err(err).Msg("Failed to decode Vehicle")
			continue
		}

		vehicles = append(vehicles, &vehicle)
	}

	return vehicles, nil
}

func (s *MongoStore) UpsertVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	if vehicle.CreationDateTime.IsZero() {
		vehicle.CreationDateTime = time.Now()
	}

	vehiclesCollection := database.GetCollection("vehicles")
	_, err := vehiclesCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": vehicle.PrimaryIdentifier},
		bson.M{"$set": vehicle},
		options.Update().SetUpsert(true),
	)

	return err
}

func (s *MongoStore) SaveLocation(ctx context.Context, report *model.LocationReport) (string, error) {
	locationsCollection := database.GetCollection("location_reports")

	result, err := locationsCollection.InsertOne(ctx, report)
	if err != nil {
		return "", err
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		return id.Hex(), nil
	}

	return "", nil
}

func (s *MongoStore) LatestLocation(ctx context.Context, vehicleRef string) (*model.LocationReport, error) {
	locationsCollection := database.GetCollection("location_reports")

	opts := options.FindOne().SetSort(bson.D{{Key: "recordedat", Value: -1}})

	var report *model.LocationReport
	err := locationsCollection.FindOne(ctx, bson.M{"vehicleref": vehicleRef}, opts).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return report, nil
}

func (s *MongoStore) LocationHistory(ctx context.Context, vehicleRef string, limit int64) ([]*model.LocationReport, error) {
	locationsCollection := database.GetCollection("location_reports")

	opts := options.Find().SetSort(bson.D{{Key: "recordedat", Value: -1}}).SetLimit(limit)

	cursor, err := locationsCollection.Find(ctx, bson.M{"vehicleref": vehicleRef}, opts)
	if err != nil {
		return nil, err
	}

	var reports []*model.LocationReport
	for cursor.Next(ctx) {
		var report model.LocationReport
		if err := cursor.Decode(&report); err != nil {
			log.Error().Err(err).Msg("Failed to decode LocationReport")
			continue
		}

		reports = append(reports, &report)
	}

	return reports, nil
}

func (s *MongoStore) GetStop(ctx context.Context, identifier string) (*model.Stop, error) {
	stopsCollection := database.GetCollection("stops")

	var stop *model.Stop
	err := stopsCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&stop)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return stop, nil
}

func (s *MongoStore) Stops(ctx context.Context) ([]*model.Stop, error) {
	stopsCollection := database.GetCollection("stops")

	cursor, err := stopsCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	var stops []*model.Stop
	for cursor.Next(ctx) {
		var stop model.Stop
		if err := cursor.Decode(&stop); err != nil {
			log.Error().Err(err).Msg("Failed to decode Stop")
			continue
		}

		stops = append(stops, &stop)
	}

	return stops, nil
}

func (s *MongoStore) UpsertStop(ctx context.Context, stop *model.Stop) error {
	stopsCollection := database.GetCollection("stops")
	_, err := stopsCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": stop.PrimaryIdentifier},
		bson.M{"$set": stop},
		options.Update().SetUpsert(true),
	)

	return err
}

func (s *MongoStore) NextStop(ctx context.Context, vehicleRef string) (*model.Stop, error) {
	vehicle, err := s.GetVehicle(ctx, vehicleRef)
	if err != nil {
		return nil, err
	}

	routeRefs := vehicle.RouteRefs
	if vehicle.ActiveRouteRef != "" {
		routeRefs = []string{vehicle.ActiveRouteRef}
	}

	if len(routeRefs) == 0 {
		return nil, ErrNotFound
	}

	stopsCollection := database.GetCollection("stops")

	opts := options.FindOne().SetSort(bson.D{{Key: "sequence", Value: 1}})

	var stop *model.Stop
	err = stopsCollection.FindOne(ctx, bson.M{"routeref": bson.M{"$in": routeRefs}}, opts).Decode(&stop)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return stop, nil
}

func (s *MongoStore) GetRoute(ctx context.Context, identifier string) (*model.Route, error) {
	routesCollection := database.GetCollection("routes")

	var route *model.Route
	err := routesCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&route)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return route, nil
}

func (s *MongoStore) RouteStops(ctx context.Context, routeRef string) ([]*model.Stop, error) {
	stopsCollection := database.GetCollection("stops")

	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})

	cursor, err := stopsCollection.Find(ctx, bson.M{"routeref": routeRef}, opts)
	if err != nil {
		return nil, err
	}

	var stops []*model.Stop
	for cursor.Next(ctx) {
		var stop model.Stop
		if err := cursor.Decode(&stop); err != nil {
			log.Error().Err(err).Msg("Failed to decode Stop")
			continue
		}

		stops = append(stops, &stop)
	}

	return stops, nil
}

func (s *MongoStore) UpsertRoute(ctx context.Context, route *model.Route) error {
	routesCollection := database.GetCollection("routes")
	_, err := routesCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": route.PrimaryIdentifier},
		bson.M{"$set": route},
		options.Update().SetUpsert(true),
	)

	return err
}

package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createVehiclesIndexes()
	createLocationsIndexes()
	createRoutesIndexes()
}

func createVehiclesIndexes() {
	vehiclesCollection := GetCollection("vehicles")
	vehiclesIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "routerefs", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := vehiclesCollection.Indexes().CreateMany(context.Background(), vehiclesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createLocationsIndexes() {
	locationsCollection := GetCollection("location_reports")
	locationsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "vehicleref", Value: 1},
				{Key: "recordedat", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "location.coordinates", Value: "2d"}},
		},
	}

	opts := options.CreateIndexes()
	_, err := locationsCollection.Indexes().CreateMany(context.Background(), locationsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createRoutesIndexes() {
	routesCollection := GetCollection("routes")
	_, err := routesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	stopsCollection := GetCollection("stops")
	_, err = stopsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "routeref", Value: 1},
				{Key: "sequence", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "location.coordinates", Value: "2d"}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

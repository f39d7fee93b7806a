package dataimporter

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/fleetlive/fleetlive/pkg/ingest"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

type discardPublisher struct{}

func (discardPublisher) Publish(vehicleRef string, event model.Event) error {
	return nil
}

func vehicleEntity(entityID string, vehicleRef string, lat float32, lon float32, timestamp uint64) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(entityID),
		Vehicle: &gtfs.VehiclePosition{
			Vehicle: &gtfs.VehicleDescriptor{
				Id: proto.String(vehicleRef),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(lat),
				Longitude: proto.Float32(lon),
			},
			Timestamp: proto.Uint64(timestamp),
		},
	}
}

func TestParseRealtime(t *testing.T) {
	ctx := context.Background()

	recordStore := store.NewMemoryStore()
	require.NoError(t, recordStore.UpsertVehicle(ctx, &model.Vehicle{
		PrimaryIdentifier: "bus-42",
	}))

	ingestService := ingest.NewService(recordStore, discardPublisher{}, nil)

	recordedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
		Entity: []*gtfs.FeedEntity{
			vehicleEntity("1", "bus-42", 51.5, -0.25, uint64(recordedAt.Unix())),
			// Regional feeds carry vehicles we do not track
			vehicleEntity("2", "unknown-99", 52.0, -1.0, uint64(recordedAt.Unix())),
			// Entities without a position are skipped
			{Id: proto.String("3")},
		},
	}

	feedBytes, err := proto.Marshal(feed)
	require.NoError(t, err)

	require.NoError(t, ParseRealtime(ctx, bytes.NewReader(feedBytes), ingestService))

	latest, err := recordStore.LatestLocation(ctx, "bus-42")
	require.NoError(t, err)
	assert.Equal(t, 51.5, latest.Location.Latitude())
	assert.Equal(t, -0.25, latest.Location.Longitude())
	assert.Equal(t, recordedAt.Unix(), latest.RecordedAt.Unix())

	_, err = recordStore.LatestLocation(ctx, "unknown-99")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseRealtimeRejectsGarbage(t *testing.T) {
	ingestService := ingest.NewService(store.NewMemoryStore(), discardPublisher{}, nil)

	err := ParseRealtime(context.Background(), bytes.NewReader([]byte("not a protobuf feed")), ingestService)
	assert.Error(t, err)
}

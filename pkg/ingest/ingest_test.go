package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fleetlive/fleetlive/pkg/eta"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	vehicleRefs []string
	events      []model.Event

	err error
}

func (p *recordingPublisher) Publish(vehicleRef string, event model.Event) error {
	p.vehicleRefs = append(p.vehicleRefs, vehicleRef)
	p.events = append(p.events, event)

	return p.err
}

type recordingQueue struct {
	payloads [][]byte
}

func (q *recordingQueue) PublishBytes(payload ...[]byte) error {
	q.payloads = append(q.payloads, payload...)

	return nil
}

func seededStore(t *testing.T) *store.MemoryStore {
	recordStore := store.NewMemoryStore()
	require.NoError(t, recordStore.UpsertVehicle(context.Background(), &model.Vehicle{
		PrimaryIdentifier: "bus-42",
		PrimaryName:       "Bus 42",
	}))

	return recordStore
}

func TestSubmitRejectsInvalidReports(t *testing.T) {
	recordStore := seededStore(t)
	publisher := &recordingPublisher{}
	service := NewService(recordStore, publisher, nil)

	testCases := []struct {
		name      string
		candidate CandidateReport
		field     string
	}{
		{
			name:      "empty vehicle",
			candidate: CandidateReport{Latitude: 51.5, Longitude: -0.1},
			field:     "vehicleId",
		},
		{
			name:      "latitude too large",
			candidate: CandidateReport{VehicleRef: "bus-42", Latitude: 91, Longitude: 0},
			field:     "lat",
		},
		{
			name:      "latitude too small",
			candidate: CandidateReport{VehicleRef: "bus-42", Latitude: -90.5, Longitude: 0},
			field:     "lat",
		},
		{
			name:      "longitude out of range",
			candidate: CandidateReport{VehicleRef: "bus-42", Latitude: 0, Longitude: 180.5},
			field:     "lon",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			report, err := service.Submit(context.Background(), testCase.candidate)
			assert.Nil(t, report)

			var validationError *ValidationError
			require.ErrorAs(t, err, &validationError)
			assert.Equal(t, testCase.field, validationError.Field)
		})
	}

	// Nothing persisted, nothing published
	_, err := recordStore.LatestLocation(context.Background(), "bus-42")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, publisher.events)
}

func TestSubmitUnknownVehicle(t *testing.T) {
	service := NewService(store.NewMemoryStore(), &recordingPublisher{}, nil)

	_, err := service.Submit(context.Background(), CandidateReport{
		VehicleRef: "ghost-1",
		Latitude:   51.5,
		Longitude:  -0.1,
	})

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitPersistsAndPublishes(t *testing.T) {
	recordStore := seededStore(t)
	publisher := &recordingPublisher{}
	queue := &recordingQueue{}
	service := NewService(recordStore, publisher, queue)

	speed := 13.5
	recordedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	report, err := service.Submit(context.Background(), CandidateReport{
		VehicleRef: "bus-42",
		Latitude:   51.5,
		Longitude:  -0.1,
		Speed:      &speed,
		RecordedAt: recordedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "bus-42", report.VehicleRef)
	assert.Equal(t, 51.5, report.Location.Latitude())
	assert.Equal(t, -0.1, report.Location.Longitude())
	assert.Equal(t, recordedAt, report.RecordedAt)

	persisted, err := recordStore.LatestLocation(context.Background(), "bus-42")
	require.NoError(t, err)
	assert.Equal(t, report, persisted)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, []string{"bus-42"}, publisher.vehicleRefs)

	event := publisher.events[0]
	assert.Equal(t, model.EventTypeLocation, event.Type)
	require.NotNil(t, event.Location)
	assert.Equal(t, 51.5, event.Location.Lat)
	assert.Equal(t, -0.1, event.Location.Lon)
	require.NotNil(t, event.Location.Speed)
	assert.Equal(t, speed, *event.Location.Speed)
	assert.Equal(t, recordedAt, event.Location.RecordedAt)

	require.Len(t, queue.payloads, 1)
	var job eta.Job
	require.NoError(t, json.Unmarshal(queue.payloads[0], &job))
	assert.Equal(t, "bus-42", job.VehicleRef)
}

func TestSubmitAssignsServerTimestamp(t *testing.T) {
	service := NewService(seededStore(t), &recordingPublisher{}, nil)

	before := time.Now()
	report, err := service.Submit(context.Background(), CandidateReport{
		VehicleRef: "bus-42",
		Latitude:   51.5,
		Longitude:  -0.1,
	})
	require.NoError(t, err)

	assert.False(t, report.RecordedAt.Before(before))
	assert.False(t, report.RecordedAt.After(time.Now()))
}

func TestSubmitSurvivesPublishFailure(t *testing.T) {
	recordStore := seededStore(t)
	publisher := &recordingPublisher{err: errors.New("fanout exploded")}
	service := NewService(recordStore, publisher, nil)

	report, err := service.Submit(context.Background(), CandidateReport{
		VehicleRef: "bus-42",
		Latitude:   51.5,
		Longitude:  -0.1,
	})
	require.NoError(t, err)
	require.NotNil(t, report)

	// The write is the source of truth and survived
	persisted, err := recordStore.LatestLocation(context.Background(), "bus-42")
	require.NoError(t, err)
	assert.Equal(t, report, persisted)
}

func TestSubmitWithoutQueueSkipsEtaJob(t *testing.T) {
	service := NewService(seededStore(t), &recordingPublisher{}, nil)

	_, err := service.Submit(context.Background(), CandidateReport{
		VehicleRef: "bus-42",
		Latitude:   51.5,
		Longitude:  -0.1,
	})
	assert.NoError(t, err)
}

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetlive/fleetlive/pkg/elastic_client"
	"github.com/fleetlive/fleetlive/pkg/eta"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

// Publisher is the live fan-out seam. Satisfied by broker.Broker.
type Publisher interface {
	Publish(vehicleRef string, event model.Event) error
}

// Queue is the slice of rmq.Queue the ingest path needs for kicking off
// on-demand ETA jobs.
type Queue interface {
	PublishBytes(payload ...[]byte) error
}

// ValidationError rejects a candidate report at the boundary with
// field-level detail. Nothing is persisted for a rejected report.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// CandidateReport is an unvalidated location report as submitted by a
// device or feed.
type CandidateReport struct {
	VehicleRef string                 `json:"vehicleId"`
	Latitude   float64                `json:"lat"`
	Longitude  float64                `json:"lon"`
	Speed      *float64               `json:"speed"`
	Raw        map[string]interface{} `json:"raw"`

	// RecordedAt is optional; the server assigns its own timestamp when
	// the device does not supply one.
	RecordedAt time.Time `json:"ts"`
}

type Service struct {
	store     store.Store
	publisher Publisher
	etaQueue  Queue
}

// NewService wires the ingest path. etaQueue may be nil when no queue
// backend is configured; ETA recomputation then only happens on the
// periodic sweep.
func NewService(recordStore store.Store, publisher Publisher, etaQueue Queue) *Service {
	return &Service{
		store:     recordStore,
		publisher: publisher,
		etaQueue:  etaQueue,
	}
}

// Submit validates, persists and fans out one location report.
//
// The persisted write is the source of truth: once SaveLocation has
// succeeded, nothing on the live delivery side (broker, queue, indexer)
// can fail the request or roll the write back. Clients polling history
// must never see gaps caused by a transient fan-out error.
func (s *Service) Submit(ctx context.Context, candidate CandidateReport) (*model.LocationReport, error) {
	if candidate.VehicleRef == "" {
		return nil, &ValidationError{Field: "vehicleId", Reason: "must not be empty"}
	}

	if candidate.Latitude < -90 || candidate.Latitude > 90 {
		return nil, &ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
	}

	if candidate.Longitude < -180 || candidate.Longitude > 180 {
		return nil, &ValidationError{Field: "lon", Reason: "must be between -180 and 180"}
	}

	vehicle, err := s.store.GetVehicle(ctx, candidate.VehicleRef)
	if err != nil {
		return nil, err
	}

	recordedAt := candidate.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	report := &model.LocationReport{
		VehicleRef: vehicle.PrimaryIdentifier,
		Location:   model.NewLocation(candidate.Longitude, candidate.Latitude),
		Speed:      candidate.Speed,
		RecordedAt: recordedAt,
		Raw:        candidate.Raw,
	}

	if _, err := s.store.SaveLocation(ctx, report); err != nil {
		return nil, err
	}

	s.publish(report)
	s.enqueueEtaJob(report.VehicleRef)
	indexIngestEvent(report)

	return report, nil
}

func (s *Service) publish(report *model.LocationReport) {
	update := &model.LocationUpdate{
		Lat: report.Location.Latitude(),
		Lon: report.Location.Longitude(),
	}
	if err := copier.Copy(update, report); err != nil {
		log.Error().Err(err).Msg("Failed to map location update")
	}

	event := model.Event{
		Type:     model.EventTypeLocation,
		Location: update,
	}

	if err := s.publisher.Publish(report.VehicleRef, event); err != nil {
		// Best effort only. The write already succeeded
		log.Warn().Err(err).Str("vehicle", report.VehicleRef).Msg("Failed to publish location update")
	}
}

func (s *Service) enqueueEtaJob(vehicleRef string) {
	if s.etaQueue == nil {
		return
	}

	jobJSON, _ := json.Marshal(eta.Job{VehicleRef: vehicleRef})

	if err := s.etaQueue.PublishBytes(jobJSON); err != nil {
		log.Warn().Err(err).Str("vehicle", vehicleRef).Msg("Failed to enqueue ETA job")
	}
}

type ingestElasticEvent struct {
	Timestamp time.Time

	Vehicle    string
	RecordedAt time.Time
}

func indexIngestEvent(report *model.LocationReport) {
	currentTime := time.Now()
	yearNumber, weekNumber := currentTime.ISOWeek()
	indexName := fmt.Sprintf("fleetlive-ingest-events-%d-%d", yearNumber, weekNumber)

	elasticEvent, _ := json.Marshal(ingestElasticEvent{
		Timestamp: currentTime,

		Vehicle:    report.VehicleRef,
		RecordedAt: report.RecordedAt,
	})

	elastic_client.IndexRequest(indexName, bytes.NewReader(elasticEvent))
}

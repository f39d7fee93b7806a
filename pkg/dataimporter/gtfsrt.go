package dataimporter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/fleetlive/fleetlive/pkg/ingest"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
)

// ParseRealtime maps the vehicle positions in a GTFS-RT feed onto the
// same ingest path HTTP reports take, so feed-sourced reports get the
// same validation, persistence and fan-out. Entities for vehicles we do
// not know are skipped, not errors: public feeds cover whole regions.
func ParseRealtime(ctx context.Context, reader io.Reader, ingestService *ingest.Service) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	feed := gtfs.FeedMessage{}
	err = proto.Unmarshal(body, &feed)
	if err != nil {
		return err
	}

	submitted := 0
	unknown := 0

	for _, entity := range feed.Entity {
		vehiclePosition := entity.GetVehicle()
		if vehiclePosition == nil || vehiclePosition.Position == nil {
			continue
		}

		vehicleRef := vehiclePosition.GetVehicle().GetId()
		if vehicleRef == "" {
			continue
		}

		candidate := ingest.CandidateReport{
			VehicleRef: vehicleRef,
			Latitude:   float64(vehiclePosition.Position.GetLatitude()),
			Longitude:  float64(vehiclePosition.Position.GetLongitude()),
		}

		if vehiclePosition.Timestamp != nil {
			candidate.RecordedAt = time.Unix(int64(*vehiclePosition.Timestamp), 0)
		}

		if speed := vehiclePosition.Position.Speed; speed != nil {
			speedValue := float64(*speed)
			candidate.Speed = &speedValue
		}

		_, err := ingestService.Submit(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			unknown += 1
			continue
		} else if err != nil {
			log.Error().Err(err).Str("vehicle", vehicleRef).Msg("Failed to ingest feed report")
			continue
		}

		submitted += 1
	}

	pretty.Println(submitted, unknown, len(feed.Entity))
	log.Info().Int("submitted", submitted).Int("unknown", unknown).Int("total", len(feed.Entity)).Msg("Submitted vehicle locations")

	return nil
}

// PollRealtime fetches the feed on an interval until the context ends.
func PollRealtime(ctx context.Context, feedURL string, interval time.Duration, ingestService *ingest.Service) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fetchRealtime(ctx, feedURL, ingestService)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fetchRealtime(ctx context.Context, feedURL string, ingestService *ingest.Service) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build feed request")
		return
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch GTFS-RT feed")
		return
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		log.Error().Int("status", response.StatusCode).Msg("GTFS-RT feed returned error status")
		return
	}

	if err := ParseRealtime(ctx, response.Body, ingestService); err != nil {
		log.Error().Err(err).Msg("Failed to parse GTFS-RT feed")
	}
}

package eta

import (
	"context"
	"errors"
	"time"

	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const defaultRoutingTimeout = 10 * time.Second
const maxConcurrentVehicles = 8

// Worker computes ETA estimates: latest location, next stop, routing
// call, cache write. Vehicles are independent; one stuck routing call is
// bounded by the routing timeout and cannot starve the rest.
type Worker struct {
	store  store.Store
	router Router
	cache  EstimateCache

	routingTimeout time.Duration
}

func NewWorker(recordStore store.Store, router Router, estimateCache EstimateCache) *Worker {
	return &Worker{
		store:  recordStore,
		router: router,
		cache:  estimateCache,

		routingTimeout: defaultRoutingTimeout,
	}
}

// ComputeForVehicle refreshes the cached estimate for one vehicle.
//
// A vehicle with no location history or no upcoming stop exits quietly:
// both are expected steady states, not errors. A routing failure is
// returned so the caller can log it; the next tick retries, there is no
// immediate retry loop.
func (w *Worker) ComputeForVehicle(ctx context.Context, vehicleRef string) error {
	latest, err := w.store.LatestLocation(ctx, vehicleRef)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Str("vehicle", vehicleRef).Msg("No location history, skipping ETA")
		return nil
	} else if err != nil {
		return err
	}

	nextStop, err := w.store.NextStop(ctx, vehicleRef)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Str("vehicle", vehicleRef).Msg("No upcoming stop, skipping ETA")
		return nil
	} else if err != nil {
		return err
	}

	routingCtx, cancel := context.WithTimeout(ctx, w.routingTimeout)
	defer cancel()

	duration, err := w.router.Eta(routingCtx, latest.Location, nextStop.Location)
	if err != nil {
		return err
	}

	estimate := &model.EtaEstimate{
		VehicleRef: vehicleRef,
		StopRef:    nextStop.PrimaryIdentifier,

		Duration: duration,

		ComputedAt: time.Now(),
	}

	return w.cache.Set(ctx, estimate)
}

// Sweep recomputes estimates for every known vehicle.
func (w *Worker) Sweep(ctx context.Context) {
	vehicles, err := w.store.Vehicles(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list vehicles for ETA sweep")
		return
	}

	p := pool.New().WithMaxGoroutines(maxConcurrentVehicles)

	for _, vehicle := range vehicles {
		vehicleRef := vehicle.PrimaryIdentifier

		p.Go(func() {
			if err := w.ComputeForVehicle(ctx, vehicleRef); err != nil {
				log.Warn().Err(err).Str("vehicle", vehicleRef).Msg("ETA computation failed")
			}
		})
	}

	p.Wait()
}

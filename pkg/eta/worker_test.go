package eta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRouter struct {
	duration time.Duration
	err      error

	calls int
}

func (r *fixedRouter) Eta(ctx context.Context, origin *model.Location, destination *model.Location) (time.Duration, error) {
	r.calls += 1

	return r.duration, r.err
}

func etaTestStore(t *testing.T) *store.MemoryStore {
	ctx := context.Background()
	recordStore := store.NewMemoryStore()

	require.NoError(t, recordStore.UpsertVehicle(ctx, &model.Vehicle{
		PrimaryIdentifier: "bus-42",
		RouteRefs:         []string{"route-1"},
	}))
	require.NoError(t, recordStore.UpsertStop(ctx, &model.Stop{
		PrimaryIdentifier: "stop-a",
		RouteRef:          "route-1",
		Sequence:          1,
		Location:          model.NewLocation(-0.1, 51.5),
	}))
	require.NoError(t, recordStore.UpsertStop(ctx, &model.Stop{
		PrimaryIdentifier: "stop-b",
		RouteRef:          "route-1",
		Sequence:          2,
		Location:          model.NewLocation(-0.2, 51.6),
	}))

	return recordStore
}

func reportLocation(t *testing.T, recordStore *store.MemoryStore, vehicleRef string) {
	_, err := recordStore.SaveLocation(context.Background(), &model.LocationReport{
		VehicleRef: vehicleRef,
		Location:   model.NewLocation(-0.05, 51.45),
		RecordedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestComputeForVehicleWritesEstimate(t *testing.T) {
	recordStore := etaTestStore(t)
	reportLocation(t, recordStore, "bus-42")

	router := &fixedRouter{duration: 4 * time.Minute}
	estimateCache := NewMemoryEstimateCache()
	worker := NewWorker(recordStore, router, estimateCache)

	require.NoError(t, worker.ComputeForVehicle(context.Background(), "bus-42"))

	estimate, err := estimateCache.Get(context.Background(), "bus-42", "stop-a")
	require.NoError(t, err)
	assert.Equal(t, "bus-42", estimate.VehicleRef)
	assert.Equal(t, "stop-a", estimate.StopRef)
	assert.Equal(t, 4*time.Minute, estimate.Duration)
	assert.False(t, estimate.ComputedAt.IsZero())

	latest, err := estimateCache.Latest(context.Background(), "bus-42")
	require.NoError(t, err)
	assert.Equal(t, estimate, latest)
}

func TestComputeForVehicleNoHistory(t *testing.T) {
	recordStore := etaTestStore(t)

	router := &fixedRouter{duration: time.Minute}
	estimateCache := NewMemoryEstimateCache()
	worker := NewWorker(recordStore, router, estimateCache)

	assert.NoError(t, worker.ComputeForVehicle(context.Background(), "bus-42"))

	assert.Equal(t, 0, router.calls)
	_, err := estimateCache.Latest(context.Background(), "bus-42")
	assert.ErrorIs(t, err, ErrEstimateMiss)
}

func TestComputeForVehicleNoUpcomingStop(t *testing.T) {
	ctx := context.Background()
	recordStore := store.NewMemoryStore()

	require.NoError(t, recordStore.UpsertVehicle(ctx, &model.Vehicle{
		PrimaryIdentifier: "bus-7",
		RouteRefs:         []string{"route-without-stops"},
	}))
	reportLocation(t, recordStore, "bus-7")

	router := &fixedRouter{duration: time.Minute}
	estimateCache := NewMemoryEstimateCache()
	worker := NewWorker(recordStore, router, estimateCache)

	assert.NoError(t, worker.ComputeForVehicle(ctx, "bus-7"))
	assert.Equal(t, 0, router.calls)
}

func TestComputeForVehicleRoutingFailure(t *testing.T) {
	recordStore := etaTestStore(t)
	reportLocation(t, recordStore, "bus-42")

	router := &fixedRouter{err: errors.New("routing unavailable: backend down")}
	estimateCache := NewMemoryEstimateCache()
	worker := NewWorker(recordStore, router, estimateCache)

	err := worker.ComputeForVehicle(context.Background(), "bus-42")
	assert.Error(t, err)

	_, err = estimateCache.Latest(context.Background(), "bus-42")
	assert.ErrorIs(t, err, ErrEstimateMiss)
}

func TestComputeForVehicleUsesActiveRoute(t *testing.T) {
	ctx := context.Background()
	recordStore := etaTestStore(t)

	// A stop with a lower sequence on another route the vehicle serves
	require.NoError(t, recordStore.UpsertStop(ctx, &model.Stop{
		PrimaryIdentifier: "stop-z",
		RouteRef:          "route-2",
		Sequence:          0,
		Location:          model.NewLocation(-0.3, 51.7),
	}))
	require.NoError(t, recordStore.UpsertVehicle(ctx, &model.Vehicle{
		PrimaryIdentifier: "bus-42",
		RouteRefs:         []string{"route-1", "route-2"},
		ActiveRouteRef:    "route-1",
	}))
	reportLocation(t, recordStore, "bus-42")

	estimateCache := NewMemoryEstimateCache()
	worker := NewWorker(recordStore, &fixedRouter{duration: time.Minute}, estimateCache)

	require.NoError(t, worker.ComputeForVehicle(ctx, "bus-42"))

	latest, err := estimateCache.Latest(ctx, "bus-42")
	require.NoError(t, err)
	assert.Equal(t, "stop-a", latest.StopRef)
}

func TestSweepCoversAllVehicles(t *testing.T) {
	ctx := context.Background()
	recordStore := etaTestStore(t)

	require.NoError(t, recordStore.UpsertVehicle(ctx, &model.Vehicle{
		PrimaryIdentifier: "bus-43",
		RouteRefs:         []string{"route-1"},
	}))
	reportLocation(t, recordStore, "bus-42")
	reportLocation(t, recordStore, "bus-43")

	estimateCache := NewMemoryEstimateCache()
	worker := NewWorker(recordStore, &fixedRouter{duration: 2 * time.Minute}, estimateCache)

	worker.Sweep(ctx)

	for _, vehicleRef := range []string{"bus-42", "bus-43"} {
		estimate, err := estimateCache.Latest(ctx, vehicleRef)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, estimate.Duration)
	}
}

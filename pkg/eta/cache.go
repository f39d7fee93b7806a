package eta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	gocachestore "github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/redis_client"
)

// EstimateTTL bounds how stale a cached estimate can get before it
// self-expires.
const EstimateTTL = 5 * time.Minute

var ErrEstimateMiss = errors.New("no cached estimate")

// EstimateCache holds ephemeral ETA estimates keyed by vehicle and stop.
// Entries expire on their own; a miss is the normal answer for a vehicle
// nobody computed recently. Set also records the estimate as the
// vehicle's latest, so callers that do not know the upcoming stop can
// still read one.
type EstimateCache interface {
	Set(ctx context.Context, estimate *model.EtaEstimate) error
	Get(ctx context.Context, vehicleRef string, stopRef string) (*model.EtaEstimate, error)
	Latest(ctx context.Context, vehicleRef string) (*model.EtaEstimate, error)
}

func estimateKey(vehicleRef string, stopRef string) string {
	return fmt.Sprintf("eta/%s/%s", vehicleRef, stopRef)
}

func latestKey(vehicleRef string) string {
	return fmt.Sprintf("eta/%s/latest", vehicleRef)
}

// RedisEstimateCache stores estimates in redis with the fixed TTL.
type RedisEstimateCache struct {
	cache *cache.Cache[string]
}

func NewRedisEstimateCache() *RedisEstimateCache {
	redisStore := redisstore.NewRedis(redis_client.Client, gocachestore.WithExpiration(EstimateTTL))

	return &RedisEstimateCache{
		cache: cache.New[string](redisStore),
	}
}

func (c *RedisEstimateCache) Set(ctx context.Context, estimate *model.EtaEstimate) error {
	estimateJSON, err := json.Marshal(estimate)
	if err != nil {
		return err
	}

	if err := c.cache.Set(ctx, estimateKey(estimate.VehicleRef, estimate.StopRef), string(estimateJSON)); err != nil {
		return err
	}

	return c.cache.Set(ctx, latestKey(estimate.VehicleRef), string(estimateJSON))
}

func (c *RedisEstimateCache) Get(ctx context.Context, vehicleRef string, stopRef string) (*model.EtaEstimate, error) {
	return c.get(ctx, estimateKey(vehicleRef, stopRef))
}

func (c *RedisEstimateCache) Latest(ctx context.Context, vehicleRef string) (*model.EtaEstimate, error) {
	return c.get(ctx, latestKey(vehicleRef))
}

func (c *RedisEstimateCache) get(ctx context.Context, key string) (*model.EtaEstimate, error) {
	estimateJSON, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, ErrEstimateMiss
	}

	var estimate *model.EtaEstimate
	if err := json.Unmarshal([]byte(estimateJSON), &estimate); err != nil {
		return nil, err
	}

	return estimate, nil
}

// MemoryEstimateCache is the in-process equivalent, used by tests and
// database-free runs.
type MemoryEstimateCache struct {
	mutex   sync.RWMutex
	entries map[string]memoryEstimateEntry
}

type memoryEstimateEntry struct {
	estimate  *model.EtaEstimate
	expiresAt time.Time
}

func NewMemoryEstimateCache() *MemoryEstimateCache {
	return &MemoryEstimateCache{
		entries: map[string]memoryEstimateEntry{},
	}
}

func (c *MemoryEstimateCache) Set(ctx context.Context, estimate *model.EtaEstimate) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry := memoryEstimateEntry{
		estimate:  estimate,
		expiresAt: time.Now().Add(EstimateTTL),
	}

	c.entries[estimateKey(estimate.VehicleRef, estimate.StopRef)] = entry
	c.entries[latestKey(estimate.VehicleRef)] = entry

	return nil
}

func (c *MemoryEstimateCache) Get(ctx context.Context, vehicleRef string, stopRef string) (*model.EtaEstimate, error) {
	return c.get(estimateKey(vehicleRef, stopRef))
}

func (c *MemoryEstimateCache) Latest(ctx context.Context, vehicleRef string) (*model.EtaEstimate, error) {
	return c.get(latestKey(vehicleRef))
}

func (c *MemoryEstimateCache) get(key string) (*model.EtaEstimate, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, ErrEstimateMiss
	}

	return entry.estimate, nil
}

package suggest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Bucket keys historical utilization by weekday (Sunday = 0) and hour.
type Bucket struct {
	Weekday int
	Hour    int
}

// DemandSource exposes the read-only historical-demand feed produced by the
// external aggregation job. The engine never writes to it.
type DemandSource interface {
	Buckets(ctx context.Context) (map[Bucket]float64, error)
}

// demandKey is the redis hash holding "<weekday>-<hour>" -> utilization
// fields, maintained by the aggregation job.
const demandKey = "roomspace:demand:hourly"

// RedisDemand reads utilization buckets from redis.
type RedisDemand struct {
	client *redis.Client
}

// NewRedisDemand creates a redis-backed demand source.
func NewRedisDemand(client *redis.Client) *RedisDemand {
	return &RedisDemand{client: client}
}

// Buckets fetches the full utilization map.
func (d *RedisDemand) Buckets(ctx context.Context) (map[Bucket]float64, error) {
	fields, err := d.client.HGetAll(ctx, demandKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read demand feed: %w", err)
	}

	buckets := make(map[Bucket]float64, len(fields))
	for field, raw := range fields {
		parts := strings.SplitN(field, "-", 2)
		if len(parts) != 2 {
			continue
		}
		weekday, err1 := strconv.Atoi(parts[0])
		hour, err2 := strconv.Atoi(parts[1])
		value, err3 := strconv.ParseFloat(raw, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		buckets[Bucket{Weekday: weekday, Hour: hour}] = value
	}
	return buckets, nil
}

// StaticDemand is an in-memory demand source for tests and for running
// without redis.
type StaticDemand map[Bucket]float64

// Buckets returns the static map.
func (d StaticDemand) Buckets(ctx context.Context) (map[Bucket]float64, error) {
	return d, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// reportGenerationKey is bumped by every write that changes report figures.
	reportGenerationKey = "report:generation"
	// reportPrefix is the Redis key prefix for cached report payloads.
	reportPrefix = "report:v"
)

// ReportGeneration returns the current report cache generation (0 if unset).
func (c *Cache) ReportGeneration(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, reportGenerationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get report generation: %w", err)
	}
	return gen, nil
}

// BumpReportGeneration orphans every cached report. Old entries age out by TTL.
func (c *Cache) BumpReportGeneration(ctx context.Context) error {
	return c.client.Incr(ctx, reportGenerationKey).Err()
}

// GetReport returns a cached payload. The bool is false on a miss.
func (c *Cache) GetReport(ctx context.Context, generation int64, params string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, reportKey(generation, params)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached report: %w", err)
	}
	return data, true, nil
}

// SetReport caches a payload under the given generation.
func (c *Cache) SetReport(ctx context.Context, generation int64, params string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, reportKey(generation, params), data, ttl).Err()
}

func reportKey(generation int64, params string) string {
	return fmt.Sprintf("%s%d:%s", reportPrefix, generation, params)
}

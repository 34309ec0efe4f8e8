package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"appointly/backend/internal/domain"
)

const keyPrefix = "appointly:availability:"

// AvailabilityCache stores resolved availability as JSON, keyed by staff
// member so every entry of one staff member can be dropped at once.
type AvailabilityCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewAvailabilityCache(client redis.Cmdable, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

type Key struct {
	StaffID uuid.UUID
	// Generation is the staff generation read before the result was computed.
	// InvalidateStaff bumps it, so results computed earlier are never read
	// back under the new generation.
	Generation  int64
	Granularity domain.Granularity
	// Day is the first calendar day of the resolved window, formatted in the
	// schedule location.
	Day         string
	MinDuration time.Duration
}

func (k Key) String() string {
	return fmt.Sprintf("%s%s:%d:%s:%s:%d", keyPrefix, k.StaffID, k.Generation, k.Granularity, k.Day, int64(k.MinDuration/time.Minute))
}

func staffPattern(staffID uuid.UUID) string {
	return keyPrefix + staffID.String() + ":*"
}

func generationKey(staffID uuid.UUID) string {
	return keyPrefix + "gen:" + staffID.String()
}

// Generation returns the current cache generation of a staff member. A staff
// member that was never invalidated is at generation 0.
func (c *AvailabilityCache) Generation(ctx context.Context, staffID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(staffID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cache generation: %w", err)
	}
	return gen, nil
}

// Get loads a cached result. A miss returns false and no error.
func (c *AvailabilityCache) Get(ctx context.Context, key Key) (domain.AvailabilityResult, bool, error) {
	raw, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AvailabilityResult{}, false, nil
	}
	if err != nil {
		return domain.AvailabilityResult{}, false, fmt.Errorf("get cache value: %w", err)
	}

	var res domain.AvailabilityResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.AvailabilityResult{}, false, fmt.Errorf("unmarshal cache value: %w", err)
	}
	return res, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, key Key, res domain.AvailabilityResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cache value: %w", err)
	}
	return nil
}

// InvalidateStaff moves the given staff members to a new generation and drops
// their cached results.
func (c *AvailabilityCache) InvalidateStaff(ctx context.Context, staffIDs ...uuid.UUID) error {
	for _, id := range staffIDs {
		if err := c.client.Incr(ctx, generationKey(id)).Err(); err != nil {
			return fmt.Errorf("bump cache generation: %w", err)
		}
		iter := c.client.Scan(ctx, 0, staffPattern(id), 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete cache values: %w", err)
		}
	}
	return nil
}

// Package cache stores the latest cycle result per facility in Redis and
// publishes executed actions to a Redis Stream for downstream consumers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	cycleKeyPrefix     = "hospitai:cycle:"
	actionStreamKey    = "hospitai:actions:executed"
	actionStreamMaxLen = 1000
)

// CycleCache caches cycle results and publishes action events.
type CycleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCycleCache creates a cycle cache with the given result TTL.
func NewCycleCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CycleCache {
	return &CycleCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// StoreResult caches the serialized cycle result for the facility.
func (c *CycleCache) StoreResult(ctx context.Context, facilityID string, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle result: %w", err)
	}

	key := cycleKeyPrefix + facilityID
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache cycle result: %w", err)
	}
	return nil
}

// GetResult returns the cached cycle result JSON for the facility, or
// redis.Nil when no cycle has run within the TTL.
func (c *CycleCache) GetResult(ctx context.Context, facilityID string) ([]byte, error) {
	data, err := c.client.Get(ctx, cycleKeyPrefix+facilityID).Bytes()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PublishAction appends one executed-action event to the action stream. The
// stream is capped so slow consumers cannot grow it without bound.
func (c *CycleCache) PublishAction(ctx context.Context, facilityID string, actionType, description string, auto bool) (string, error) {
	id, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: actionStreamKey,
		MaxLen: actionStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"facility_id": facilityID,
			"action_type": actionType,
			"description": description,
			"auto":        fmt.Sprintf("%t", auto),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish action event: %w", err)
	}

	c.logger.Debug("Published action event",
		zap.String("facility_id", facilityID),
		zap.String("action_type", actionType),
		zap.String("stream_id", id),
	)
	return id, nil
}

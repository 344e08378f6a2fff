package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// DefaultTTL is how long a mirrored failure record is kept.
const DefaultTTL = 7 * 24 * time.Hour

// FailureRepo mirrors failure records into Redis: one JSON value per record
// and one sorted set per entity type, scored by failure time.
type FailureRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFailureRepo creates a new Redis-backed failure repository.
func NewFailureRepo(client *Client, ttl time.Duration) *FailureRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FailureRepo{
		rdb: client.rdb,
		ttl: ttl,
	}
}

// Key helpers
func indexKey(entity domain.EntityType) string {
	return fmt.Sprintf("bulkdelete:failures:%s", entity)
}

func recordKey(runID, id string) string {
	return fmt.Sprintf("bulkdelete:failure:%s:%s", runID, id)
}

func member(runID, id string) string {
	return runID + ":" + id
}

// Name identifies the mirror in logs and metrics.
func (r *FailureRepo) Name() string {
	return "redis"
}

// Add stores a failure record.
func (r *FailureRepo) Add(ctx context.Context, rec *domain.FailureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, recordKey(rec.RunID, rec.ID), data, r.ttl)
	pipe.ZAdd(ctx, indexKey(rec.EntityType), redis.Z{
		Score:  float64(rec.FailedAt.UnixMilli()),
		Member: member(rec.RunID, rec.ID),
	})
	pipe.Expire(ctx, indexKey(rec.EntityType), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add failure record: %w", err)
	}
	return nil
}

// GetAll returns the mirrored failures for entity, oldest first.
func (r *FailureRepo) GetAll(ctx context.Context, entity domain.EntityType) ([]*domain.FailureRecord, error) {
	members, err := r.rdb.ZRange(ctx, indexKey(entity), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	records := make([]*domain.FailureRecord, 0, len(members))
	for _, m := range members {
		data, err := r.rdb.Get(ctx, "bulkdelete:failure:"+m).Bytes()
		if errors.Is(err, redis.Nil) {
			// Data expired but member still indexed, remove it
			r.rdb.ZRem(ctx, indexKey(entity), m)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failure record: %w", err)
		}

		var rec domain.FailureRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	return records, nil
}

// Count returns the number of mirrored failures for entity.
func (r *FailureRepo) Count(ctx context.Context, entity domain.EntityType) (int, error) {
	count, err := r.rdb.ZCard(ctx, indexKey(entity)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

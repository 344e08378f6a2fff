package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

func TestKeys(t *testing.T) {
	if got := indexKey(domain.EntityClientGrants); got != "bulkdelete:failures:client-grants" {
		t.Errorf("indexKey = %q", got)
	}
	// GetAll rebuilds the record key from the index member
	if got, want := "bulkdelete:failure:"+member("run-1", "auth0|abc"), recordKey("run-1", "auth0|abc"); got != want {
		t.Errorf("member key %q does not match record key %q", got, want)
	}
}

func TestNewFailureRepo_DefaultTTL(t *testing.T) {
	r := NewFailureRepo(&Client{}, 0)
	if r.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", r.ttl, DefaultTTL)
	}
	if r.Name() != "redis" {
		t.Errorf("Name = %q", r.Name())
	}
}

// Set BULKDELETE_TEST_REDIS_URL to run against a live Redis, e.g.
// redis://localhost:6379/15
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("BULKDELETE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BULKDELETE_TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("Failed to parse redis URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to test redis: %v", err)
	}
	t.Cleanup(func() {
		_ = rdb.Close()
	})
	return rdb
}

func TestFailureRepo_AddAndGetAll(t *testing.T) {
	rdb := setupTestRedis(t)
	repo := NewFailureRepo(NewClientFromRedis(rdb), time.Minute)
	ctx := context.Background()
	entity := domain.EntityDeviceCredentials
	runID := uuid.NewString()

	base := time.Now().Truncate(time.Millisecond)
	recs := []*domain.FailureRecord{
		{ID: "dc_2", StatusCode: 429, EntityType: entity, Attempts: 4, RunID: runID, FailedAt: base.Add(time.Millisecond)},
		{ID: "dc_1", StatusCode: 500, EntityType: entity, Attempts: 1, RunID: runID, FailedAt: base},
	}
	t.Cleanup(func() {
		for _, r := range recs {
			rdb.ZRem(context.Background(), indexKey(entity), member(runID, r.ID))
			rdb.Del(context.Background(), recordKey(runID, r.ID))
		}
	})

	before, err := repo.Count(ctx, entity)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	for _, rec := range recs {
		if err := repo.Add(ctx, rec); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if ttl := rdb.TTL(ctx, recordKey(runID, "dc_1")).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("record ttl = %v, want within 1m", ttl)
	}
	if ttl := rdb.TTL(ctx, indexKey(entity)).Val(); ttl <= 0 {
		t.Errorf("index ttl = %v, want positive", ttl)
	}

	got, err := repo.GetAll(ctx, entity)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	var mine []*domain.FailureRecord
	for _, r := range got {
		if r.RunID == runID {
			mine = append(mine, r)
		}
	}
	if len(mine) != 2 {
		t.Fatalf("records for run = %d, want 2", len(mine))
	}
	// ordered by failure time, not insertion
	if mine[0].Line() != "dc_1,500" || mine[1].Line() != "dc_2,429" {
		t.Errorf("records = %s, %s", mine[0].Line(), mine[1].Line())
	}
	if mine[1].Attempts != 4 || mine[1].EntityType != entity || !mine[1].FailedAt.Equal(recs[0].FailedAt) {
		t.Errorf("record = %+v", mine[1])
	}

	if after, _ := repo.Count(ctx, entity); after-before != 2 {
		t.Errorf("count grew by %d, want 2", after-before)
	}
}

func TestFailureRepo_GetAllDropsExpiredRecords(t *testing.T) {
	rdb := setupTestRedis(t)
	repo := NewFailureRepo(NewClientFromRedis(rdb), time.Minute)
	ctx := context.Background()
	entity := domain.EntityClientGrants
	runID := uuid.NewString()

	rec := &domain.FailureRecord{ID: "cgr_1", StatusCode: 404, EntityType: entity, Attempts: 1, RunID: runID, FailedAt: time.Now()}
	if err := repo.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	t.Cleanup(func() {
		rdb.ZRem(context.Background(), indexKey(entity), member(runID, rec.ID))
	})

	// the record value expires before the index entry
	if err := rdb.Del(ctx, recordKey(runID, rec.ID)).Err(); err != nil {
		t.Fatalf("Del failed: %v", err)
	}

	got, err := repo.GetAll(ctx, entity)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	for _, r := range got {
		if r.RunID == runID {
			t.Errorf("expired record returned: %+v", r)
		}
	}

	err = rdb.ZScore(ctx, indexKey(entity), member(runID, rec.ID)).Err()
	if !errors.Is(err, redis.Nil) {
		t.Errorf("index member still present after GetAll, err = %v", err)
	}
}

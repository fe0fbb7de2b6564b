package bulksync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/pkg/logger"
)

const (
	jobKeyPrefix = "syncjob:"
	jobIndexKey  = "syncjobs"
)

// RedisJobStore persists job snapshots as JSON in Redis so any instance
// can answer a poll, with a TTL so finished jobs age out on their own.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJobStore creates a Redis-backed job store. ttl <= 0 defaults
// to 24 hours.
func NewRedisJobStore(client *redis.Client, ttl time.Duration) *RedisJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobStore{client: client, ttl: ttl}
}

func (s *RedisJobStore) Save(ctx context.Context, job *domain.BulkSyncJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, body, s.ttl)
	pipe.SAdd(ctx, jobIndexKey, job.ID)
	pipe.Expire(ctx, jobIndexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*domain.BulkSyncJob, error) {
	body, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	var job domain.BulkSyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisJobStore) List(ctx context.Context) ([]*domain.BulkSyncJob, error) {
	ids, err := s.client.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*domain.BulkSyncJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err == ErrJobNotFound {
			// expired body, stale index entry
			logger.Debug("pruning expired job from index", "job_id", id)
			s.client.SRem(ctx, jobIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/analysisctl/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	RecordJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, bool, error)
	GetJobStatus(ctx context.Context, jobID string) (string, bool, error)
}

// recordJobScript writes the status and snapshot keys unless the stored
// status is already completed or failed. ARGV[3] is the TTL in
// milliseconds; zero keeps the keys forever.
var recordJobScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == 'completed' or cur == 'failed' then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// RedisCache implements the Cache interface using go-redis/v9. It also
// satisfies jobs.Recorder so pollers and the monitor can publish the last
// observed state of every job they touch.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new RedisCache from a Redis URL. ttl bounds how long
// a recorded job stays visible; zero keeps entries forever.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetJobStatus(ctx context.Context, jobID string) (string, bool, error) {
	val, err := c.client.Get(ctx, JobStatusKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// RecordJob stores the job's status and a JSON snapshot of the full record
// atomically. A job already recorded as completed or failed is left as is, so
// a later timeout from another process cannot hide a real outcome.
func (c *RedisCache) RecordJob(ctx context.Context, job models.Job) error {
	if job.ID == "" {
		return errors.New("record job: empty job id")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	keys := []string{JobStatusKey(job.ID), JobKey(job.ID)}
	if err := recordJobScript.Run(ctx, c.client, keys, job.Status, data, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the last recorded snapshot of a job.
func (c *RedisCache) GetJob(ctx context.Context, jobID string) (*models.Job, bool, error) {
	data, err := c.client.Get(ctx, JobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, false, fmt.Errorf("decode cached job %s: %w", jobID, err)
	}
	return &job, true, nil
}

// Compile-time check that RedisCache implements Cache.
var _ Cache = (*RedisCache)(nil)

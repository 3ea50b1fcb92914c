package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "matchflow/pkg/domain"
)

const cacheKeyPrefix = "matchflow:directory:"

// Reader is the lookup surface the cache decorates.
type Reader interface {
	Candidate(ctx context.Context, candidateID id.CandidateID) (*Candidate, error)
	Job(ctx context.Context, jobID id.JobID) (*Job, error)
	Company(ctx context.Context, companyID id.CompanyID) (*Company, error)
}

// RedisCache is a read-through cache in front of a Reader. Redis failures
// fall through to the inner reader; not-found results are never cached.
type RedisCache struct {
	inner  Reader
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a RedisCache instance.
type CacheOption func(*RedisCache)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

// NewRedisCache wraps inner. A non-positive ttl defaults to five minutes.
func NewRedisCache(inner Reader, client *redis.Client, ttl time.Duration, opts ...CacheOption) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &RedisCache{inner: inner, client: client, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *RedisCache) Candidate(ctx context.Context, candidateID id.CandidateID) (*Candidate, error) {
	return readThrough(ctx, c, candidateKey(candidateID), func() (*Candidate, error) {
		return c.inner.Candidate(ctx, candidateID)
	})
}

func (c *RedisCache) Job(ctx context.Context, jobID id.JobID) (*Job, error) {
	return readThrough(ctx, c, jobKey(jobID), func() (*Job, error) {
		return c.inner.Job(ctx, jobID)
	})
}

func (c *RedisCache) Company(ctx context.Context, companyID id.CompanyID) (*Company, error) {
	return readThrough(ctx, c, companyKey(companyID), func() (*Company, error) {
		return c.inner.Company(ctx, companyID)
	})
}

// Forget drops the cached projections of every record in seed, so a freshly
// loaded directory is not shadowed by entries cached from an earlier load.
func (c *RedisCache) Forget(ctx context.Context, seed Seed) error {
	keys := make([]string, 0, len(seed.Companies)+len(seed.Candidates)+len(seed.Jobs))
	for _, co := range seed.Companies {
		keys = append(keys, companyKey(co.ID))
	}
	for _, ca := range seed.Candidates {
		keys = append(keys, candidateKey(ca.ID))
	}
	for _, j := range seed.Jobs {
		keys = append(keys, jobKey(j.ID))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("forget directory cache entries: %w", err)
	}
	return nil
}

func candidateKey(candidateID id.CandidateID) string {
	return cacheKeyPrefix + "candidate:" + candidateID.String()
}

func jobKey(jobID id.JobID) string {
	return cacheKeyPrefix + "job:" + jobID.String()
}

func companyKey(companyID id.CompanyID) string {
	return cacheKeyPrefix + "company:" + companyID.String()
}

func readThrough[T any](ctx context.Context, c *RedisCache, key string, load func() (*T, error)) (*T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return &v, nil
		}
		c.logger.WarnContext(ctx, "directory cache entry unreadable", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "directory cache read failed", "key", key, "error", err)
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(v); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "directory cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}

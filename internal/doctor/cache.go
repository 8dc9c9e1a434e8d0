package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/backend"
)

const cacheKey = "cache:doctors"

// Cache holds the last doctor list. Misses and failures are silent; the
// directory falls back to the backend.
type Cache interface {
	Get(ctx context.Context) ([]backend.DoctorRecord, bool)
	Set(ctx context.Context, records []backend.DoctorRecord)
	Invalidate(ctx context.Context)
}

type NopCache struct{}

func (NopCache) Get(context.Context) ([]backend.DoctorRecord, bool) { return nil, false }
func (NopCache) Set(context.Context, []backend.DoctorRecord)        {}
func (NopCache) Invalidate(context.Context)                         {}

// RedisCache shares the list between portal replicas and the warmer.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context) ([]backend.DoctorRecord, bool) {
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("read doctor cache")
		}
		return nil, false
	}

	var records []backend.DoctorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.Warn().Err(err).Msg("decode doctor cache")
		return nil, false
	}
	return records, true
}

func (c *RedisCache) Set(ctx context.Context, records []backend.DoctorRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		c.logger.Warn().Err(err).Msg("encode doctor cache")
		return
	}
	if err := c.client.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("write doctor cache")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("invalidate doctor cache")
	}
}

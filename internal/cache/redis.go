package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sportify/worker/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const teamKeyPrefix = "sportify:team:remote:"

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache maps provider team ids to local team ids
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func teamKey(remoteID int) string {
	return teamKeyPrefix + strconv.Itoa(remoteID)
}

// GetTeamID returns the local id cached for a provider team id.
// Redis errors are logged and reported as a miss.
func (c *RedisCache) GetTeamID(ctx context.Context, remoteID int) (int, bool) {
	start := time.Now()
	val, err := c.client.Get(ctx, teamKey(remoteID)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.RecordCacheOperation("get", time.Since(start).Seconds())
		metrics.RecordCacheMiss()
		return 0, false
	case err != nil:
		metrics.RecordCacheOperation("get", time.Since(start).Seconds())
		metrics.RecordError("cache", "get")
		log.Warn().Err(err).Int("remote_id", remoteID).Msg("Team cache lookup failed")
		return 0, false
	}

	metrics.RecordCacheOperation("get", time.Since(start).Seconds())
	metrics.RecordCacheHit()
	return val, true
}

// SetTeamID caches the local id of a provider team id
func (c *RedisCache) SetTeamID(ctx context.Context, remoteID, teamID int) {
	start := time.Now()
	if err := c.client.Set(ctx, teamKey(remoteID), teamID, c.ttl).Err(); err != nil {
		metrics.RecordCacheOperation("set", time.Since(start).Seconds())
		metrics.RecordError("cache", "set")
		log.Warn().Err(err).Int("remote_id", remoteID).Msg("Team cache write failed")
		return
	}
	metrics.RecordCacheOperation("set", time.Since(start).Seconds())
}

// DeleteTeamID drops the cached id of a provider team
func (c *RedisCache) DeleteTeamID(ctx context.Context, remoteID int) {
	start := time.Now()
	err := c.client.Del(ctx, teamKey(remoteID)).Err()
	metrics.RecordCacheOperation("delete", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordError("cache", "delete")
		log.Warn().Err(err).Int("remote_id", remoteID).Msg("Team cache delete failed")
	}
}

// InvalidateTeams drops every cached team id
func (c *RedisCache) InvalidateTeams(ctx context.Context) (int, error) {
	var deleted int
	iter := c.client.Scan(ctx, 0, teamKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan team keys: %w", err)
	}
	return deleted, nil
}

// Health checks the Redis connection
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

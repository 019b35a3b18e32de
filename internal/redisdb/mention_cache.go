// Package redisdb keeps the mention lookup cache in Redis so that several
// server instances share it.
package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"threadline/internal/logger"
	"threadline/internal/services"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "threadline:mention:"
	opTimeout = 200 * time.Millisecond
)

// MentionCache implements services.MentionCache. Redis failures degrade to
// cache misses.
type MentionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string, ttl time.Duration) (*MentionCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisdb.Connect: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redisdb.Connect: ping: %w", err)
	}
	return &MentionCache{rdb: rdb, ttl: ttl}, nil
}

func (c *MentionCache) Get(key string) (services.MentionTarget, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Mention cache read failed", zap.String("key", key), zap.Error(err))
		}
		return services.MentionTarget{}, false
	}
	target, err := decodeTarget(raw)
	if err != nil {
		logger.Warn("Mention cache entry unreadable", zap.String("key", key), zap.Error(err))
		return services.MentionTarget{}, false
	}
	return target, true
}

func (c *MentionCache) Set(key string, target services.MentionTarget) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := json.Marshal(target)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		logger.Warn("Mention cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *MentionCache) Close() error {
	return c.rdb.Close()
}

func decodeTarget(raw []byte) (services.MentionTarget, error) {
	var t services.MentionTarget
	if err := json.Unmarshal(raw, &t); err != nil {
		return services.MentionTarget{}, err
	}
	return t, nil
}

var _ services.MentionCache = (*MentionCache)(nil)

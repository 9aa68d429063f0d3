package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streamforge/resolver/internal/core/domain"
)

const redisKeyPrefix = "streamforge:resolve:"

// RedisTier is the remote tier. Every operation is bounded by OpTimeout so
// a slow or unreachable Redis never stalls a resolution; its failures are
// swallowed by the hierarchy as per-tier misses.
type RedisTier struct {
	cfg RedisConfig
	rdb *redis.Client
}

// NewRedisTier connects and pings the server.
func NewRedisTier(cfg RedisConfig) (*RedisTier, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisTier{cfg: cfg, rdb: rdb}, nil
}

func (r *RedisTier) Name() string          { return "redis" }
func (r *RedisTier) Remote() bool          { return true }
func (r *RedisTier) MaxTTL() time.Duration { return r.cfg.MaxTTL }

func (r *RedisTier) key(key string) string { return redisKeyPrefix + key }

func (r *RedisTier) Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("malformed redis entry: %w", err)
	}

	if !usable(r, &entry, time.Now()) {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, entry *domain.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	// Let Redis expire the key itself; the envelope TTL still governs
	// validity on read.
	expiry := entry.TTL
	if expiry > r.cfg.MaxTTL {
		expiry = r.cfg.MaxTTL
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	if err := r.rdb.Set(ctx, r.key(key), raw, expiry).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisTier) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisTier) Close() error {
	return r.rdb.Close()
}

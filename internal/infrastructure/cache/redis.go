package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Auremas/voxanalyze-mvp/pkg/config"
)

// RedisClient wraps Redis operations used by the upload dedup guard
type RedisClient struct {
	client      *redis.Client
	dedupWindow time.Duration
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Println("✅ Redis connected successfully")

	return &RedisClient{
		client:      client,
		dedupWindow: cfg.Redis.DedupWindow,
	}, nil
}

// ClaimUpload atomically claims a content hash for an upload. It
// returns false when another upload already claimed the same hash
// within the dedup window.
func (r *RedisClient) ClaimUpload(ctx context.Context, contentHash string, callID string) (bool, error) {
	key := dedupKey(contentHash)
	ok, err := r.client.SetNX(ctx, key, callID, r.dedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim upload: %w", err)
	}
	return ok, nil
}

// ReleaseUpload releases a claimed content hash so the same content can
// be uploaded again, used when the claiming upload fails before the
// record is durably stored.
func (r *RedisClient) ReleaseUpload(ctx context.Context, contentHash string) error {
	return r.client.Del(ctx, dedupKey(contentHash)).Err()
}

// Close closes the underlying connection pool
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func dedupKey(contentHash string) string {
	return "calls:dedup:" + contentHash
}

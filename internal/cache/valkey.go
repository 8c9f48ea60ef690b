package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// ValkeyClient guards idempotent handlers such as payment confirmation and
// webhook delivery against concurrent duplicates.
type ValkeyClient struct {
	client *redis.Client
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{client: rdb}, nil
}

// NewValkeyClientFromRedis wraps an existing client.
func NewValkeyClientFromRedis(rdb *redis.Client) *ValkeyClient {
	return &ValkeyClient{client: rdb}
}

// AcquireIdempotencyKey claims key for ttl. It returns false when another
// caller already holds it.
func (v *ValkeyClient) AcquireIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := v.client.SetNX(ctx, "idem:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency key lookup error: %w", err)
	}
	return ok, nil
}

// ReleaseIdempotencyKey frees key so a failed attempt can be retried.
func (v *ValkeyClient) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, "idem:"+key).Err(); err != nil {
		return fmt.Errorf("idempotency key release error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}

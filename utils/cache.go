package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// WebhookEventPrefix namespaces processed gateway event ids.
	WebhookEventPrefix = "webhook:event:"
	// WebhookEventTTL outlives the gateway's retry window.
	WebhookEventTTL = 72 * time.Hour
)

// NewRedisClient connects to Redis and pings it once.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis (db %d): %w", db, err)
	}
	return client, nil
}

// RedisEventDeduper remembers processed webhook events in Redis.
type RedisEventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventDeduper(client *redis.Client, ttl time.Duration) *RedisEventDeduper {
	if ttl <= 0 {
		ttl = WebhookEventTTL
	}
	return &RedisEventDeduper{client: client, ttl: ttl}
}

func (d *RedisEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, WebhookEventPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisEventDeduper) Remember(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, WebhookEventPrefix+eventID, 1, d.ttl).Err()
}

package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SiteChannel is the pub/sub channel the dashboard relay subscribes to for a site
func SiteChannel(siteID uint) string {
	return fmt.Sprintf("plant:site:%d:orders", siteID)
}

// RedisNotifier publishes order events on per-site Redis channels
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier connects to Redis and verifies the connection
func NewRedisNotifier(ctx context.Context, addr, password string, db int) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisNotifier{rdb: rdb}, nil
}

// NewRedisNotifierFromClient wraps an existing client
func NewRedisNotifierFromClient(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Publish sends the event as JSON to the order's site channel
func (n *RedisNotifier) Publish(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}
	if err := n.rdb.Publish(ctx, SiteChannel(event.SiteID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish order event to redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}

package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"matchflow/internal/pipeline/models"
)

// DefaultRedisChannel is the pub/sub channel chat relays subscribe to.
const DefaultRedisChannel = "matchflow:notifications"

// RedisSink publishes requests as JSON on a pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Notify(ctx context.Context, req models.NotificationRequest) error {
	payload, err := encode(req)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

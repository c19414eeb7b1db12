package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
)

const defaultOutboundStream = "pacer:events:outbound"

// RedisStream appends outbound events to a Redis Stream for external
// consumers (delivery adapters, analytics).
type RedisStream struct {
	rdb    *redis.Client
	stream string
}

func NewRedisStream(rdb *redis.Client, stream string) *RedisStream {
	if rdb == nil {
		panic("publish: redis client is required")
	}
	if strings.TrimSpace(stream) == "" {
		stream = defaultOutboundStream
	}
	return &RedisStream{rdb: rdb, stream: stream}
}

func (p *RedisStream) Publish(ctx context.Context, envelope events.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"envelope": string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("append outbound event: %w", err)
	}
	return nil
}

// Name lets a RedisStream sit inside a Fanout next to other subscribers.
func (p *RedisStream) Name() string { return "redis-stream" }

// Handle implements subscribers.Subscriber.
func (p *RedisStream) Handle(ctx context.Context, envelope events.Envelope) error {
	return p.Publish(ctx, envelope)
}

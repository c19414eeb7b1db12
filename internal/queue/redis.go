package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix       = "pacer"
	defaultShards       = 4
	defaultGroup        = "release"
	defaultBlock        = 2 * time.Second
	defaultReclaimIdle  = 30 * time.Second
	promoteBatchSize    = 128
	busyGroupErrMessage = "BUSYGROUP Consumer Group name already exists"
)

// RedisQueue implements the queue contract on Redis: a delayed ZSET holds
// not-yet-visible messages, and a mover promotes due messages into per-shard
// Streams. A group key always hashes to the same shard, so per-group FIFO
// holds as long as each shard is read by one consumer at a time. Unacked
// stream entries are reclaimed after an idle period, giving at-least-once
// delivery.
type RedisQueue struct {
	rdb      *redis.Client
	logger   *log.Logger
	prefix   string
	shards   int
	group    string
	consumer string

	dedupWindow time.Duration
	reclaimIdle time.Duration
	block       time.Duration
	now         func() time.Time
}

type RedisOption func(*RedisQueue)

func WithPrefix(prefix string) RedisOption {
	return func(q *RedisQueue) {
		if strings.TrimSpace(prefix) != "" {
			q.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithShards(n int) RedisOption {
	return func(q *RedisQueue) {
		if n > 0 {
			q.shards = n
		}
	}
}

func WithDedupWindow(window time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if window > 0 {
			q.dedupWindow = window
		}
	}
}

func NewRedisQueue(rdb *redis.Client, consumer string, logger *log.Logger, opts ...RedisOption) *RedisQueue {
	if rdb == nil {
		panic("queue: redis client is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if strings.TrimSpace(consumer) == "" {
		consumer = "release-1"
	}
	q := &RedisQueue{
		rdb:         rdb,
		logger:      logger,
		prefix:      defaultPrefix,
		shards:      defaultShards,
		group:       defaultGroup,
		consumer:    consumer,
		dedupWindow: defaultDedupWindow,
		reclaimIdle: defaultReclaimIdle,
		block:       defaultBlock,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// EnsureGroups creates the consumer group on every shard stream. Call once at
// startup.
func (q *RedisQueue) EnsureGroups(ctx context.Context) error {
	for shard := 0; shard < q.shards; shard++ {
		err := q.rdb.XGroupCreateMkStream(ctx, q.streamKey(shard), q.group, "0").Err()
		if err != nil && err.Error() != busyGroupErrMessage {
			return fmt.Errorf("create consumer group on shard %d: %w", shard, err)
		}
	}
	return nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	if msg.Delay < 0 {
		msg.Delay = 0
	}
	if msg.Delay > MaxDelay {
		return fmt.Errorf("delay %s exceeds queue maximum %s", msg.Delay, MaxDelay)
	}

	if msg.DedupKey != "" {
		fresh, err := q.rdb.SetNX(ctx, q.key("dedup", msg.DedupKey), 1, q.dedupWindow).Result()
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if !fresh {
			return nil
		}
	}

	seq, err := q.rdb.Incr(ctx, q.key("seq")).Result()
	if err != nil {
		return fmt.Errorf("allocate sequence: %w", err)
	}
	member := fmt.Sprintf("%020d", seq)
	readyAt := q.now().Add(msg.Delay)

	if err := q.rdb.HSet(ctx, q.key("msg", member), "body", string(msg.Body), "group", msg.GroupKey).Err(); err != nil {
		return fmt.Errorf("store message body: %w", err)
	}
	err = q.rdb.ZAdd(ctx, q.key("delayed"), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule message: %w", err)
	}
	return nil
}

// promote moves due messages from the delayed set into their shard streams.
// ZSET iteration is score-ordered with sequence-ordered tie-break, so stream
// append order preserves enqueue order within a group.
func (q *RedisQueue) promote(ctx context.Context) {
	nowMS := strconv.FormatInt(q.now().UnixMilli(), 10)
	members, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   nowMS,
		Count: promoteBatchSize,
	}).Result()
	if err != nil {
		q.logger.Printf("promote: range delayed set: %v", err)
		return
	}

	for _, member := range members {
		fields, err := q.rdb.HGetAll(ctx, q.key("msg", member)).Result()
		if err != nil {
			q.logger.Printf("promote: load message %s: %v", member, err)
			continue
		}
		if len(fields) > 0 {
			shard := q.shardFor(fields["group"])
			err = q.rdb.XAdd(ctx, &redis.XAddArgs{
				Stream: q.streamKey(shard),
				Values: map[string]any{"body": fields["body"], "group": fields["group"]},
			}).Err()
			if err != nil {
				q.logger.Printf("promote: append message %s: %v", member, err)
				continue
			}
		}
		if err := q.rdb.ZRem(ctx, q.key("delayed"), member).Err(); err != nil {
			q.logger.Printf("promote: remove member %s: %v", member, err)
		}
		if err := q.rdb.Del(ctx, q.key("msg", member)).Err(); err != nil {
			q.logger.Printf("promote: delete body %s: %v", member, err)
		}
	}
}

func (q *RedisQueue) Receive(ctx context.Context, max int) ([]Record, error) {
	if max <= 0 {
		max = 1
	}

	q.promote(ctx)

	records := q.reclaim(ctx, max)
	if len(records) >= max {
		return records[:max], nil
	}

	streams := make([]string, 0, q.shards*2)
	for shard := 0; shard < q.shards; shard++ {
		streams = append(streams, q.streamKey(shard))
	}
	for shard := 0; shard < q.shards; shard++ {
		streams = append(streams, ">")
	}

	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  streams,
		Count:    int64(max - len(records)),
		Block:    q.block,
	}).Result()
	if err == redis.Nil {
		return records, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		return records, fmt.Errorf("read ready streams: %w", err)
	}

	for _, stream := range res {
		shard := q.shardFromStream(stream.Stream)
		for _, msg := range stream.Messages {
			records = append(records, recordFromStreamMessage(shard, msg))
		}
	}
	return records, nil
}

// reclaim takes over stream entries another consumer received but never
// acknowledged.
func (q *RedisQueue) reclaim(ctx context.Context, max int) []Record {
	var records []Record
	for shard := 0; shard < q.shards && len(records) < max; shard++ {
		msgs, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.streamKey(shard),
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  q.reclaimIdle,
			Start:    "0-0",
			Count:    int64(max - len(records)),
		}).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				q.logger.Printf("reclaim shard %d: %v", shard, err)
			}
			continue
		}
		for _, msg := range msgs {
			records = append(records, recordFromStreamMessage(shard, msg))
		}
	}
	return records
}

func (q *RedisQueue) Ack(ctx context.Context, ids []string) error {
	for _, id := range ids {
		shard, streamID, err := splitRecordID(id)
		if err != nil {
			return err
		}
		stream := q.streamKey(shard)
		if err := q.rdb.XAck(ctx, stream, q.group, streamID).Err(); err != nil {
			return fmt.Errorf("ack %s: %w", id, err)
		}
		if err := q.rdb.XDel(ctx, stream, streamID).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return nil
}

func (q *RedisQueue) key(parts ...string) string {
	return q.prefix + ":" + strings.Join(parts, ":")
}

func (q *RedisQueue) streamKey(shard int) string {
	return fmt.Sprintf("%s:ready:%d", q.prefix, shard)
}

func (q *RedisQueue) shardFor(groupKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(groupKey))
	return int(h.Sum32() % uint32(q.shards))
}

func (q *RedisQueue) shardFromStream(stream string) int {
	idx := strings.LastIndex(stream, ":")
	if idx < 0 {
		return 0
	}
	shard, err := strconv.Atoi(stream[idx+1:])
	if err != nil {
		return 0
	}
	return shard
}

func recordFromStreamMessage(shard int, msg redis.XMessage) Record {
	body, _ := msg.Values["body"].(string)
	group, _ := msg.Values["group"].(string)
	return Record{
		ID:       fmt.Sprintf("%d/%s", shard, msg.ID),
		Body:     []byte(body),
		GroupKey: group,
	}
}

func splitRecordID(id string) (int, string, error) {
	idx := strings.Index(id, "/")
	if idx < 0 {
		return 0, "", fmt.Errorf("malformed record id %q", id)
	}
	shard, err := strconv.Atoi(id[:idx])
	if err != nil {
		return 0, "", fmt.Errorf("malformed record id %q", id)
	}
	return shard, id[idx+1:], nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cdp/internal/stream"

	"github.com/redis/go-redis/v9"
)

// StreamLog implements stream.Log on Redis Streams. One instance is shared by
// all workers in the process; go-redis serializes command issuance on the
// underlying connection pool, so no extra locking is needed here.
type StreamLog struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewStreamLog(rdb *redis.Client, logger *slog.Logger) *StreamLog {
	return &StreamLog{rdb: rdb, logger: logger}
}

func (s *StreamLog) Append(ctx context.Context, topic string, fields map[string]string, maxLen int64) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		s.logger.Error("xadd failed", "topic", topic, "error", err)
		return "", fmt.Errorf("xadd %s: %w", topic, err)
	}
	return id, nil
}

func (s *StreamLog) ReadNew(ctx context.Context, topic, group, consumer string, block time.Duration, count int64) ([]stream.Entry, error) {
	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// Block timeout with no data.
		return nil, nil
	}
	if err != nil {
		s.logger.Error("xreadgroup failed", "topic", topic, "group", group, "error", err)
		return nil, fmt.Errorf("xreadgroup %s/%s: %w", topic, group, err)
	}

	var entries []stream.Entry
	for _, st := range res {
		for _, msg := range st.Messages {
			entries = append(entries, toEntry(msg))
		}
	}
	return entries, nil
}

func (s *StreamLog) Ack(ctx context.Context, topic, group string, ids ...string) error {
	if err := s.rdb.XAck(ctx, topic, group, ids...).Err(); err != nil {
		s.logger.Error("xack failed", "topic", topic, "group", group, "error", err)
		return fmt.Errorf("xack %s/%s: %w", topic, group, err)
	}
	return nil
}

func (s *StreamLog) ListPending(ctx context.Context, topic, group string, count int64) ([]stream.PendingEntry, error) {
	res, err := s.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: topic,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		s.logger.Error("xpending failed", "topic", topic, "group", group, "error", err)
		return nil, fmt.Errorf("xpending %s/%s: %w", topic, group, err)
	}

	pending := make([]stream.PendingEntry, 0, len(res))
	for _, p := range res {
		pending = append(pending, stream.PendingEntry{
			ID:            p.ID,
			Consumer:      p.Consumer,
			Idle:          p.Idle,
			DeliveryCount: p.RetryCount,
		})
	}
	return pending, nil
}

func (s *StreamLog) Claim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, ids []string) ([]stream.Entry, error) {
	msgs, err := s.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   topic,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("xclaim failed", "topic", topic, "group", group, "error", err)
		return nil, fmt.Errorf("xclaim %s/%s: %w", topic, group, err)
	}

	entries := make([]stream.Entry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, toEntry(msg))
	}
	return entries, nil
}

func (s *StreamLog) CreateGroup(ctx context.Context, topic, group string) error {
	err := s.rdb.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err == nil {
		return nil
	}
	if isBusyGroup(err) {
		return stream.ErrGroupExists
	}
	s.logger.Error("xgroup create failed", "topic", topic, "group", group, "error", err)
	return fmt.Errorf("xgroup create %s/%s: %w", topic, group, err)
}

func (s *StreamLog) Info(ctx context.Context, topic string) (stream.Info, error) {
	length, err := s.rdb.XLen(ctx, topic).Result()
	if err != nil {
		s.logger.Error("xlen failed", "topic", topic, "error", err)
		return stream.Info{}, fmt.Errorf("xlen %s: %w", topic, err)
	}
	info := stream.Info{Length: length}
	if length == 0 {
		// Missing streams report zero length rather than failing.
		return info, nil
	}

	first, err := s.rdb.XRangeN(ctx, topic, "-", "+", 1).Result()
	if err != nil {
		return stream.Info{}, fmt.Errorf("xrange %s: %w", topic, err)
	}
	if len(first) > 0 {
		e := toEntry(first[0])
		info.First = &e
	}
	last, err := s.rdb.XRevRangeN(ctx, topic, "+", "-", 1).Result()
	if err != nil {
		return stream.Info{}, fmt.Errorf("xrevrange %s: %w", topic, err)
	}
	if len(last) > 0 {
		e := toEntry(last[0])
		info.Last = &e
	}
	return info, nil
}

func (s *StreamLog) Range(ctx context.Context, topic, start string, count int64) ([]stream.Entry, error) {
	msgs, err := s.rdb.XRangeN(ctx, topic, start, "+", count).Result()
	if err != nil {
		s.logger.Error("xrange failed", "topic", topic, "error", err)
		return nil, fmt.Errorf("xrange %s: %w", topic, err)
	}
	entries := make([]stream.Entry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, toEntry(msg))
	}
	return entries, nil
}

// isBusyGroup matches the BUSYGROUP reply XGROUP CREATE returns for a group
// that already exists; only that specific failure is treated as idempotent.
func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func toEntry(msg redis.XMessage) stream.Entry {
	fields := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		switch s := v.(type) {
		case string:
			fields[k] = s
		default:
			fields[k] = fmt.Sprint(v)
		}
	}
	return stream.Entry{ID: msg.ID, Fields: fields}
}

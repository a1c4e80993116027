package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamJobs carries on-demand job triggers between API instances and workers.
const StreamJobs = "jobtrack:jobs"

// maxLen caps the stream; triggers are tiny and only the latest matter.
const maxLen = 1000

type RedisStream struct {
	client *redis.Client
	group  string
	log    zerolog.Logger
}

func NewRedisStream(client *redis.Client, group string, log zerolog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		group:  group,
		log:    log.With().Str("component", "redis_stream").Logger(),
	}
}

func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// Consume reads until ctx is cancelled. A message is acknowledged once handler
// returns nil; failed messages stay pending in the group.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, handler func(id string, data []byte) error) {
	for ctx.Err() == nil {
		if _, err := s.read(ctx, stream, consumer, 5*time.Second, handler); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Str("stream", stream).Msg("stream read error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// read does one XREADGROUP round. A negative block returns immediately.
func (s *RedisStream) read(ctx context.Context, stream, consumer string, block time.Duration, handler func(id string, data []byte) error) (int, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    10,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, st := range streams {
		for _, msg := range st.Messages {
			data, ok := msg.Values["data"].(string)
			if !ok {
				// Unreadable entries would be redelivered forever.
				s.log.Warn().Str("id", msg.ID).Msg("dropping stream entry without data field")
				_ = s.Ack(ctx, st.Stream, msg.ID)
				continue
			}
			if err := handler(msg.ID, []byte(data)); err != nil {
				s.log.Error().Err(err).Str("id", msg.ID).Msg("stream handler failed")
				continue
			}
			if err := s.Ack(ctx, st.Stream, msg.ID); err != nil {
				return handled, err
			}
			handled++
		}
	}
	return handled, nil
}

func (s *RedisStream) Ack(ctx context.Context, stream, id string) error {
	return s.client.XAck(ctx, stream, s.group, id).Err()
}

func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"solderbot/internal/events"
)

// StreamAdder is the part of a Redis client the stream sink needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends every event to a Redis stream. Process samples go
// to a separate "<stream>:samples" stream.
type RedisStreamSink struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink on stream, trimming it approximately to
// maxLen entries when maxLen > 0.
func NewRedisStreamSink(client StreamAdder, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStreamSink) Write(ctx context.Context, e events.Event) error {
	values, err := streamValues(e)
	if err != nil {
		return err
	}
	stream := s.stream
	if e.Kind == events.ProcessSampleRecorded {
		stream += ":samples"
	}
	args := &redis.XAddArgs{Stream: stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

func streamValues(e events.Event) (map[string]interface{}, error) {
	values := map[string]interface{}{
		"kind":      string(e.Kind),
		"severity":  e.Severity.String(),
		"source":    e.Source,
		"timestamp": strconv.FormatInt(e.Time.UnixMilli(), 10),
	}
	if e.JobID != "" {
		values["job_id"] = e.JobID
	}
	if e.Message != "" {
		values["message"] = e.Message
	}
	if e.Data != nil {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", e.Kind, err)
		}
		values["data"] = string(data)
	}
	return values, nil
}

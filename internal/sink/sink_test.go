package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"solderbot/internal/events"
	"solderbot/pkg/geometry"
)

var (
	_ events.Sink = (*LogSink)(nil)
	_ events.Sink = (*RedisStreamSink)(nil)
	_ events.Sink = (*MQTTSink)(nil)
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestLogSink_SeverityMapping(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewLogSink(zap.New(core))
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, events.Event{Kind: events.EmergencyStop, Severity: events.SeverityCritical, Message: "smoke"}))
	require.NoError(t, s.Write(ctx, events.Event{Kind: events.JobError, Severity: events.SeverityError, JobID: "j1"}))
	require.NoError(t, s.Write(ctx, events.Event{Kind: events.CollisionWarning, Severity: events.SeverityWarning}))
	require.NoError(t, s.Write(ctx, events.Event{Kind: events.JobStarted}))
	require.NoError(t, s.Write(ctx, events.Event{Kind: events.TemperatureChanged, Data: 320.0}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "smoke", entries[0].Message)
	assert.Equal(t, true, entries[0].ContextMap()["critical"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "job_error", entries[1].Message)
	assert.Equal(t, "j1", entries[1].ContextMap()["job_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[3].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[4].Level)
}

type fakeStream struct {
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestRedisStreamSink(t *testing.T) {
	client := &fakeStream{}
	s := NewRedisStreamSink(client, "solderbot:events", 500)

	err := s.Write(context.Background(), events.Event{
		Kind:     events.JobError,
		Severity: events.SeverityError,
		Source:   "jobs",
		JobID:    "job-1",
		Message:  "too few fiducials",
		Time:     epoch,
	})
	require.NoError(t, err)
	require.Len(t, client.calls, 1)

	args := client.calls[0]
	assert.Equal(t, "solderbot:events", args.Stream)
	assert.Equal(t, int64(500), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]interface{})
	assert.Equal(t, "job_error", values["kind"])
	assert.Equal(t, "error", values["severity"])
	assert.Equal(t, "job-1", values["job_id"])
	assert.Equal(t, "too few fiducials", values["message"])
	assert.NotContains(t, values, "data")
}

func TestRedisStreamSink_SamplesStream(t *testing.T) {
	client := &fakeStream{}
	s := NewRedisStreamSink(client, "solderbot:events", 0)

	sample := events.ProcessSample{Temperature: 348.5, Position: geometry.NewPoint3D(1, 2, 3), Program: "ctrl", Cycle: 4}
	require.NoError(t, s.Write(context.Background(), events.Event{Kind: events.ProcessSampleRecorded, Data: sample, Time: epoch}))

	args := client.calls[0]
	assert.Equal(t, "solderbot:events:samples", args.Stream)
	assert.Zero(t, args.MaxLen)

	var decoded events.ProcessSample
	require.NoError(t, json.Unmarshal([]byte(args.Values.(map[string]interface{})["data"].(string)), &decoded))
	assert.Equal(t, sample, decoded)
}

func TestRedisStreamSink_Error(t *testing.T) {
	s := NewRedisStreamSink(&fakeStream{err: errors.New("connection refused")}, "s", 0)
	assert.Error(t, s.Write(context.Background(), events.Event{Kind: events.JobStarted}))
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	msgs []published
	err  error
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.msgs = append(f.msgs, published{topic, qos, retained, payload.([]byte)})
	return newToken(f.err)
}

func TestMQTTSink(t *testing.T) {
	client := &fakeMQTT{}
	s := NewMQTTSink(client, "solderbot", 1)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, events.Event{Kind: events.TemperatureChanged, Source: "thermal", Data: 330.0, Time: epoch}))
	require.NoError(t, s.Write(ctx, events.Event{Kind: events.JobCompleted, JobID: "job-2", Time: epoch}))
	require.Len(t, client.msgs, 2)

	assert.Equal(t, "solderbot/temperature_changed", client.msgs[0].topic)
	assert.True(t, client.msgs[0].retained)
	assert.Equal(t, byte(1), client.msgs[0].qos)

	assert.Equal(t, "solderbot/job_completed", client.msgs[1].topic)
	assert.False(t, client.msgs[1].retained)

	var e events.Event
	require.NoError(t, json.Unmarshal(client.msgs[1].payload, &e))
	assert.Equal(t, events.JobCompleted, e.Kind)
	assert.Equal(t, "job-2", e.JobID)
}

func TestMQTTSink_PublishError(t *testing.T) {
	s := NewMQTTSink(&fakeMQTT{err: errors.New("not connected")}, "p", 0)
	assert.EqualError(t, s.Write(context.Background(), events.Event{Kind: events.JobStarted}), "not connected")
}

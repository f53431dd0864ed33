// Package sink forwards events to durable or remote stores: the process log,
// Redis Streams and MQTT telemetry.
package sink

import (
	"context"

	"go.uber.org/zap"

	"solderbot/internal/events"
)

// LogSink writes every event to a zap logger at the level matching its
// severity. Temperature and position updates go to debug.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("events")}
}

func (s *LogSink) Write(_ context.Context, e events.Event) error {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("source", e.Source),
		zap.Time("time", e.Time),
	}
	if e.JobID != "" {
		fields = append(fields, zap.String("job_id", e.JobID))
	}
	if e.Data != nil {
		fields = append(fields, zap.Any("data", e.Data))
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}

	switch e.Severity {
	case events.SeverityCritical:
		s.logger.Error(msg, append(fields, zap.Bool("critical", true))...)
	case events.SeverityError:
		s.logger.Error(msg, fields...)
	case events.SeverityWarning:
		s.logger.Warn(msg, fields...)
	default:
		if chatty(e.Kind) {
			s.logger.Debug(msg, fields...)
		} else {
			s.logger.Info(msg, fields...)
		}
	}
	return nil
}

func chatty(k events.Kind) bool {
	switch k {
	case events.TemperatureChanged, events.PositionChanged, events.ProcessSampleRecorded, events.ProgressUpdated:
		return true
	}
	return false
}

// Package thermal drives the soldering-iron heater with a PID controller
// against a periodically sampled temperature sensor.
package thermal

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"solderbot/internal/events"
	"solderbot/internal/pid"
)

const (
	// MaxTarget is the upper bound applied to every target temperature (°C).
	MaxTarget = 450.0
	// MinTarget is the lower bound applied to every target temperature (°C).
	MinTarget = 0.0
	// MaxPower is the heater power ceiling in percent.
	MaxPower = 100.0
	// DefaultPeriod is the control loop sampling period.
	DefaultPeriod = 100 * time.Millisecond
)

// Sensor reads the current tip temperature in °C.
type Sensor interface {
	ReadTemperature() (float64, error)
}

// Heater applies heating power in percent [0,100].
type Heater interface {
	ApplyPower(percent float64) error
}

// Status is a snapshot of the loop state.
type Status struct {
	Target         float64 `json:"target"`
	Current        float64 `json:"current"`
	Power          float64 `json:"power"`
	HeatingEnabled bool    `json:"heating_enabled"`
}

// Loop is the temperature control loop. Tick is meant to be driven by the
// shared reactor every Period.
type Loop struct {
	mu      sync.Mutex
	pid     *pid.Controller
	sensor  Sensor
	heater  Heater
	target  float64
	current float64
	power   float64
	enabled bool

	events events.Publisher
	logger *zap.Logger
}

// NewLoop creates a loop with heating disabled and a zero target.
func NewLoop(gains pid.Gains, sensor Sensor, heater Heater, pub events.Publisher, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		pid:    pid.New(gains),
		sensor: sensor,
		heater: heater,
		events: events.OrDiscard(pub),
		logger: logger.Named("thermal"),
	}
}

// SetTarget sets the target temperature, clamped to [0,450] °C, and returns
// the value actually applied.
func (l *Loop) SetTarget(celsius float64) float64 {
	clamped := clamp(celsius, MinTarget, MaxTarget)
	l.mu.Lock()
	l.target = clamped
	l.mu.Unlock()
	l.logger.Debug("target temperature set", zap.Float64("target", clamped))
	return clamped
}

// EnableHeating turns the PID output on or off. Disabling forces the applied
// power to zero immediately, independent of the PID state.
func (l *Loop) EnableHeating(enable bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enable
	if enable {
		return nil
	}
	l.power = 0
	if err := l.heater.ApplyPower(0); err != nil {
		return fmt.Errorf("heater off: %w", err)
	}
	return nil
}

// Tick reads the sensor and, when heating is enabled, applies the clamped PID
// output. A sensor or heater failure switches heating off.
func (l *Loop) Tick() {
	measured, err := l.sensor.ReadTemperature()
	if err != nil {
		l.fault(fmt.Errorf("read sensor: %w", err))
		return
	}

	l.mu.Lock()
	if l.enabled {
		power := clamp(l.pid.Calculate(l.target, measured), 0, MaxPower)
		if err := l.heater.ApplyPower(power); err != nil {
			l.mu.Unlock()
			l.fault(fmt.Errorf("apply power: %w", err))
			return
		}
		l.power = power
	}
	l.current = measured
	l.mu.Unlock()

	l.events.Publish(events.Event{
		Kind:   events.TemperatureChanged,
		Source: "thermal",
		Data:   measured,
	})
}

func (l *Loop) fault(err error) {
	l.mu.Lock()
	l.enabled = false
	l.power = 0
	_ = l.heater.ApplyPower(0)
	l.mu.Unlock()

	l.logger.Error("temperature loop fault, heating disabled", zap.Error(err))
	l.events.Publish(events.Event{
		Kind:     events.TemperatureFault,
		Severity: events.SeverityError,
		Source:   "thermal",
		Message:  err.Error(),
	})
}

// Current returns the last published temperature.
func (l *Loop) Current() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Ready reports whether the last published temperature is within tolerance
// of the given point temperature.
func (l *Loop) Ready(target, tolerance float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return math.Abs(l.current-target) <= tolerance
}

// Status returns a snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Target:         l.target,
		Current:        l.current,
		Power:          l.power,
		HeatingEnabled: l.enabled,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

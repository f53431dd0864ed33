package thermal

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solderbot/internal/events"
	"solderbot/internal/pid"
)

type fakeSensor struct {
	temp float64
	err  error
}

func (f *fakeSensor) ReadTemperature() (float64, error) { return f.temp, f.err }

type fakeHeater struct {
	mu      sync.Mutex
	applied []float64
}

func (f *fakeHeater) ApplyPower(p float64) error {
	f.mu.Lock()
	f.applied = append(f.applied, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeHeater) last() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.applied) == 0 {
		return -1
	}
	return f.applied[len(f.applied)-1]
}

func TestSetTarget_Clamps(t *testing.T) {
	l := NewLoop(pid.DefaultGains(), &fakeSensor{}, &fakeHeater{}, nil, nil)

	tests := []struct {
		in, want float64
	}{
		{-10, 0},
		{0, 0},
		{350, 350},
		{450, 450},
		{600, 450},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.SetTarget(tt.in))
		assert.Equal(t, tt.want, l.Status().Target)
	}
}

func TestTick_ClampsPowerToPercentRange(t *testing.T) {
	sensor := &fakeSensor{temp: 25}
	heater := &fakeHeater{}
	l := NewLoop(pid.DefaultGains(), sensor, heater, nil, nil)
	l.SetTarget(400)
	require.NoError(t, l.EnableHeating(true))

	l.Tick()
	assert.Equal(t, 100.0, heater.last())

	sensor.temp = 500
	l.SetTarget(0)
	for i := 0; i < 5; i++ {
		l.Tick()
	}
	assert.Equal(t, 0.0, heater.last())
	assert.Equal(t, 500.0, l.Current())
}

func TestTick_DisabledHeatingOnlyPublishesTemperature(t *testing.T) {
	sensor := &fakeSensor{temp: 42}
	heater := &fakeHeater{}
	rec := &events.Recorder{}
	l := NewLoop(pid.DefaultGains(), sensor, heater, rec, nil)

	l.Tick()

	assert.Equal(t, -1.0, heater.last())
	assert.Equal(t, 42.0, l.Current())
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, events.TemperatureChanged, rec.Events()[0].Kind)
	assert.Equal(t, 42.0, rec.Events()[0].Data)
}

func TestEnableHeating_FalseForcesZeroPower(t *testing.T) {
	heater := &fakeHeater{}
	l := NewLoop(pid.DefaultGains(), &fakeSensor{temp: 25}, heater, nil, nil)
	l.SetTarget(350)
	require.NoError(t, l.EnableHeating(true))
	l.Tick()
	require.Greater(t, l.Status().Power, 0.0)

	require.NoError(t, l.EnableHeating(false))
	assert.Equal(t, 0.0, heater.last())
	assert.Equal(t, 0.0, l.Status().Power)
	assert.False(t, l.Status().HeatingEnabled)
}

func TestTick_SensorFaultDisablesHeating(t *testing.T) {
	sensor := &fakeSensor{temp: 25}
	heater := &fakeHeater{}
	rec := &events.Recorder{}
	l := NewLoop(pid.DefaultGains(), sensor, heater, rec, nil)
	l.SetTarget(300)
	require.NoError(t, l.EnableHeating(true))

	sensor.err = errors.New("thermocouple open")
	l.Tick()

	assert.False(t, l.Status().HeatingEnabled)
	assert.Equal(t, 0.0, heater.last())
	assert.True(t, rec.Has(events.TemperatureFault))
}

func TestReady(t *testing.T) {
	l := NewLoop(pid.DefaultGains(), &fakeSensor{temp: 347}, &fakeHeater{}, nil, nil)
	l.Tick()
	assert.True(t, l.Ready(350, 5))
	assert.False(t, l.Ready(360, 5))
}

func TestSimulator_ConvergesTowardTarget(t *testing.T) {
	var l *Loop
	sim := NewSimulator(func() float64 { return l.Status().Target })
	l = NewLoop(pid.DefaultGains(), sim, sim, nil, nil)
	l.SetTarget(350)
	require.NoError(t, l.EnableHeating(true))

	for i := 0; i < 200; i++ {
		l.Tick()
	}
	assert.True(t, l.Ready(350, 1), "current=%.2f", l.Current())

	require.NoError(t, l.EnableHeating(false))
	for i := 0; i < 10; i++ {
		l.Tick()
	}
	assert.Less(t, l.Current(), 350.0)
}

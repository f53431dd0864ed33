package thermal

import (
	"math"
	"sync"
)

const (
	simAmbient     = 25.0
	simHeatingRate = 0.1  // fraction of the gap closed per tick while heating
	simCoolingRate = 0.05 // °C lost per tick while idle
)

// Simulator is a first-order heater model that implements both Sensor and
// Heater, used when no hardware is attached.
type Simulator struct {
	mu     sync.Mutex
	temp   float64
	power  float64
	target func() float64
}

// NewSimulator creates a simulator at ambient temperature. target reports the
// loop's current setpoint; the tip approaches it while power is applied.
func NewSimulator(target func() float64) *Simulator {
	return &Simulator{temp: simAmbient, target: target}
}

// ReadTemperature advances the model by one tick and returns the new temperature.
func (s *Simulator) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.power > 0 && s.target != nil {
		s.temp += (s.target() - s.temp) * simHeatingRate
	} else {
		s.temp = math.Max(simAmbient, s.temp-simCoolingRate)
	}
	return s.temp, nil
}

// ApplyPower records the applied power.
func (s *Simulator) ApplyPower(percent float64) error {
	s.mu.Lock()
	s.power = percent
	s.mu.Unlock()
	return nil
}

// Power returns the last applied power.
func (s *Simulator) Power() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}

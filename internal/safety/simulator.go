package safety

import (
	"math/rand"
	"sync"
	"time"
)

const (
	simSmokeNoise    = 0.1    // peak background smoke reading
	simClearDistance = 1000.0 // mm to the nearest obstacle
)

// Simulator implements SmokeSensor and ProximitySensor for benches without
// an environment sensor board. It reports background smoke noise and an
// unobstructed workspace until a reading is forced.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	smoke    float64
	distance float64
}

// NewSimulator creates a simulator with a clean atmosphere and no obstacle.
func NewSimulator() *Simulator {
	return &Simulator{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		distance: simClearDistance,
	}
}

// ReadSmokeLevel returns the forced level plus background noise.
func (s *Simulator) ReadSmokeLevel() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smoke + simSmokeNoise*s.rng.Float64(), nil
}

// ReadDistance returns the obstacle distance in mm.
func (s *Simulator) ReadDistance() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distance, nil
}

// SetSmokeLevel forces the base smoke reading.
func (s *Simulator) SetSmokeLevel(v float64) {
	s.mu.Lock()
	s.smoke = v
	s.mu.Unlock()
}

// SetDistance forces the obstacle distance.
func (s *Simulator) SetDistance(mm float64) {
	s.mu.Lock()
	s.distance = mm
	s.mu.Unlock()
}

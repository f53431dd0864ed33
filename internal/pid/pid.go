// Package pid implements a discrete single-input PID controller.
package pid

import "sync"

// Default gains used by the temperature loop.
const (
	DefaultKp = 2.0
	DefaultKi = 0.5
	DefaultKd = 1.0
)

// Gains holds the proportional, integral and derivative coefficients.
type Gains struct {
	Kp float64 `yaml:"kp" json:"kp"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`
}

// DefaultGains returns Kp=2.0, Ki=0.5, Kd=1.0.
func DefaultGains() Gains {
	return Gains{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd}
}

// Controller computes output = Kp*e + Ki*sum(e) + Kd*(e - e_prev) where
// e = setpoint - measured. The integral is not clamped.
type Controller struct {
	mu        sync.Mutex
	gains     Gains
	integral  float64
	lastError float64
}

// New creates a controller with the given gains and zeroed state.
func New(g Gains) *Controller {
	return &Controller{gains: g}
}

// Calculate advances the controller by one sample and returns the control output.
func (c *Controller) Calculate(setpoint, measured float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := setpoint - measured
	c.integral += e
	derivative := e - c.lastError
	c.lastError = e

	return c.gains.Kp*e + c.gains.Ki*c.integral + c.gains.Kd*derivative
}

// Reset clears the accumulated integral and the previous error.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.integral = 0
	c.lastError = 0
	c.mu.Unlock()
}

// Gains returns the current coefficients.
func (c *Controller) Gains() Gains {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gains
}

// SetGains replaces the coefficients without touching accumulated state.
func (c *Controller) SetGains(g Gains) {
	c.mu.Lock()
	c.gains = g
	c.mu.Unlock()
}

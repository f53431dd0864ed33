package motion

import (
	"context"
	"math"
	"sync"
	"time"

	"solderbot/internal/events"
	"solderbot/pkg/geometry"
)

// Simulator is an in-memory Driver that acknowledges every command
// immediately. Fail, when set, is returned by the next hardware call.
type Simulator struct {
	mu          sync.Mutex
	initialized bool
	position    geometry.Point3D
	conveyor    float64
	commands    []string
	fail        error
	events      events.Publisher
}

// NewSimulator returns an uninitialized simulator.
func NewSimulator(pub events.Publisher) *Simulator {
	return &Simulator{events: events.OrDiscard(pub)}
}

// FailNext makes the next hardware call return err and uninitialize.
func (s *Simulator) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Simulator) takeFailure() error {
	err := s.fail
	s.fail = nil
	if err != nil {
		s.initialized = false
	}
	return err
}

func (s *Simulator) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.commands = append(s.commands, "G21", "G90", "G28")
	s.initialized = true
	s.position = geometry.Point3D{}
	return nil
}

func (s *Simulator) MoveTo(ctx context.Context, p geometry.Point3D, feed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.commands = append(s.commands, FormatMove(p, feed))
	s.position = p
	s.events.Publish(events.Event{Kind: events.PositionChanged, Source: "motion", Time: time.Now(), Data: p})
	return nil
}

func (s *Simulator) SetConveyorSpeed(ctx context.Context, percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	percent = math.Max(0, math.Min(100, percent))
	s.commands = append(s.commands, FormatConveyor(percent))
	s.conveyor = percent
	return nil
}

func (s *Simulator) EmergencyStop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, "M112", "M18")
	s.initialized = false
	s.conveyor = 0
	return nil
}

func (s *Simulator) Position() geometry.Point3D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Simulator) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Conveyor returns the last conveyor speed in percent.
func (s *Simulator) Conveyor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conveyor
}

// Commands returns the G-code lines the simulator has accepted.
func (s *Simulator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Simulator) Close() error { return nil }

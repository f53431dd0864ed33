// Package controller runs solder jobs: it moves the tool point by point under
// the safety monitor's admission, waits for the tip temperature, dwells, and
// owns the emergency stop that ties the collaborators together.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"solderbot/internal/events"
	"solderbot/internal/job"
	"solderbot/internal/motion"
	"solderbot/internal/program"
	"solderbot/internal/reactor"
	"solderbot/internal/safety"
	"solderbot/internal/thermal"
	"solderbot/pkg/geometry"
)

var (
	ErrHeatTimeout = errors.New("controller: tip did not reach temperature")
	ErrBusy        = errors.New("controller: a job is running")
	ErrNoPrograms  = errors.New("controller: no program store configured")
)

// Config tunes job execution. FeedRate is in mm/min.
type Config struct {
	FeedRate       float64
	ReadyTolerance float64
	HeatTimeout    time.Duration
	PollInterval   time.Duration

	ThermalPeriod     time.Duration
	SafetyPeriod      time.Duration
	SamplePeriod      time.Duration
	MaintenancePeriod time.Duration
}

// DefaultConfig returns 3000 mm/min, ±5 °C within 30 s, and the standard
// reactor periods.
func DefaultConfig() Config {
	return Config{
		FeedRate:          3000,
		ReadyTolerance:    5,
		HeatTimeout:       30 * time.Second,
		PollInterval:      20 * time.Millisecond,
		ThermalPeriod:     thermal.DefaultPeriod,
		SafetyPeriod:      safety.DefaultPeriod,
		SamplePeriod:      time.Second,
		MaintenancePeriod: time.Hour,
	}
}

// Controller owns one job store, temperature loop, motion driver and safety
// monitor.
type Controller struct {
	cfg      Config
	jobs     *job.Store
	thermal  *thermal.Loop
	motion   motion.Driver
	safety   *safety.Monitor
	programs *program.Store
	recorder *program.Recorder

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	running  string
	stopped  bool
	cycles   int
	lastStop string

	events events.Publisher
	logger *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithPrograms enables program storage and playback.
func WithPrograms(s *program.Store) Option {
	return func(c *Controller) { c.programs = s }
}

// New wires the collaborators. The safety monitor's sensor trips are routed
// to EmergencyStop.
func New(cfg Config, jobs *job.Store, loop *thermal.Loop, drv motion.Driver, mon *safety.Monitor,
	pub events.Publisher, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	c := &Controller{
		cfg:      cfg,
		jobs:     jobs,
		thermal:  loop,
		motion:   drv,
		safety:   mon,
		recorder: program.NewRecorder(),
		events:   events.OrDiscard(pub),
		logger:   logger.Named("controller"),
	}
	for _, o := range opts {
		o(c)
	}
	mon.OnEmergencyStop(func(reason string) {
		c.EmergencyStop(context.Background(), reason)
	})
	return c
}

func (c *Controller) Jobs() *job.Store            { return c.jobs }
func (c *Controller) Thermal() *thermal.Loop      { return c.thermal }
func (c *Controller) Motion() motion.Driver       { return c.motion }
func (c *Controller) Safety() *safety.Monitor     { return c.safety }
func (c *Controller) Recorder() *program.Recorder { return c.recorder }
func (c *Controller) Programs() *program.Store    { return c.programs }

// Initialize homes the motion controller.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := c.motion.Initialize(ctx); err != nil {
		c.logger.Error("motion initialization failed", zap.Error(err))
		return err
	}
	c.logger.Info("motion initialized")
	return nil
}

// Register schedules the periodic work on r: the temperature loop, the
// safety sensors, process samples and the maintenance check.
func (c *Controller) Register(r *reactor.Reactor) error {
	tasks := []struct {
		name     string
		interval time.Duration
		run      reactor.Task
	}{
		{"thermal", c.cfg.ThermalPeriod, func(time.Time) { c.thermal.Tick() }},
		{"safety", c.cfg.SafetyPeriod, c.safety.Tick},
		{"samples", c.cfg.SamplePeriod, c.Sample},
		{"maintenance", c.cfg.MaintenancePeriod, c.maintenance},
	}
	for _, t := range tasks {
		if err := r.Every(t.name, t.interval, t.run); err != nil {
			return err
		}
	}
	return nil
}

// Sample publishes the current process state.
func (c *Controller) Sample(now time.Time) {
	sample := events.ProcessSample{
		Temperature: c.thermal.Current(),
		Position:    c.motion.Position(),
	}
	var jobID string
	if id, ok := c.jobs.Active(); ok {
		jobID = id
		if j, err := c.jobs.Get(id); err == nil {
			sample.Program = j.Name
		}
	}
	c.mu.Lock()
	sample.Cycle = c.cycles
	c.mu.Unlock()

	c.events.Publish(events.Event{
		Kind:   events.ProcessSampleRecorded,
		Source: "controller",
		JobID:  jobID,
		Time:   now,
		Data:   sample,
	})
}

func (c *Controller) maintenance(time.Time) {
	st := c.safety.Status()
	if !st.OK {
		c.logger.Warn("safety status degraded", zap.Strings("reasons", st.Reasons))
		return
	}
	c.logger.Info("maintenance check",
		zap.Int("cycles", c.Cycles()),
		zap.Int("zones", st.Zones),
		zap.Float64("smoke", st.SmokeLevel))
}

// Cycles returns the number of jobs completed since startup.
func (c *Controller) Cycles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles
}

// Status is a snapshot of the machine.
type Status struct {
	ActiveJob     string           `json:"active_job,omitempty"`
	EmergencyStop bool             `json:"emergency_stop"`
	StopReason    string           `json:"stop_reason,omitempty"`
	Cycles        int              `json:"cycles"`
	Initialized   bool             `json:"motion_initialized"`
	Thermal       thermal.Status   `json:"thermal"`
	Safety        safety.Status    `json:"safety"`
	Position      geometry.Point3D `json:"position"`
}

func (c *Controller) Status() Status {
	pos := c.motion.Position()
	active, _ := c.jobs.Active()

	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ActiveJob:     active,
		EmergencyStop: c.stopped,
		StopReason:    c.lastStop,
		Cycles:        c.cycles,
		Initialized:   c.motion.Initialized(),
		Thermal:       c.thermal.Status(),
		Safety:        c.safety.Status(),
		Position:      pos,
	}
}

// EmergencyStop switches the heater off, halts the motors, aborts the active
// job and cancels its execution. Further starts are refused until
// ResetEmergencyStop. Repeated calls repeat the hardware actions but log and
// publish only once.
func (c *Controller) EmergencyStop(ctx context.Context, reason string) {
	c.mu.Lock()
	already := c.stopped
	c.stopped = true
	if !already {
		c.lastStop = reason
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if err := c.thermal.EnableHeating(false); err != nil {
		c.logger.Error("heater off failed during emergency stop", zap.Error(err))
	}
	if cancel != nil {
		cancel()
	}
	jobID, _ := c.jobs.EmergencyStop(reason)

	stopCtx, stopCancel := context.WithTimeout(ctx, motion.DefaultAckTimeout)
	defer stopCancel()
	if err := c.motion.EmergencyStop(stopCtx); err != nil {
		c.logger.Error("motion emergency stop failed", zap.Error(err))
	}
	if already {
		return
	}

	c.logger.Error("emergency stop", zap.String("reason", reason), zap.String("job", jobID))
	c.safety.LogEvent("emergency_stop", events.SeverityCritical, reason)
	c.events.Publish(events.Event{
		Kind:     events.EmergencyStop,
		Severity: events.SeverityCritical,
		Source:   "controller",
		JobID:    jobID,
		Message:  reason,
		Time:     time.Now(),
	})
}

// ResetEmergencyStop re-initializes the motion driver and releases the latch.
// The latch stays set if initialization fails.
func (c *Controller) ResetEmergencyStop(ctx context.Context) error {
	if err := c.motion.Initialize(ctx); err != nil {
		return err
	}
	c.jobs.ResetEmergencyStop()

	c.mu.Lock()
	c.stopped = false
	c.lastStop = ""
	c.mu.Unlock()

	c.logger.Info("emergency stop reset")
	c.safety.LogEvent("emergency_stop_reset", events.SeverityInfo, "emergency stop released")
	return nil
}

// Stopped reports whether the emergency stop is latched.
func (c *Controller) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Shutdown cancels a running job, switches the heater off and waits for the
// executor to exit.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	id := c.running
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		if err := c.jobs.Abort(id); err != nil && !errors.Is(err, job.ErrNotActive) {
			c.logger.Warn("abort on shutdown failed", zap.String("job", id), zap.Error(err))
		}
	}
	if err := c.thermal.EnableHeating(false); err != nil {
		c.logger.Warn("heater off on shutdown failed", zap.Error(err))
	}
	return c.Wait(ctx)
}

// Wait blocks until the executor, if any, has exited.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

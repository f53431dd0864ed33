package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"solderbot/internal/job"
	"solderbot/internal/safety"
	"solderbot/pkg/geometry"
)

// Start prepares the job in the store (registration, sequencing, validation),
// switches heating on and executes the points in the background.
func (c *Controller) Start(ctx context.Context, id string) error {
	c.mu.Lock()
	switch {
	case c.stopped:
		c.mu.Unlock()
		return job.ErrEmergencyStopped
	case c.running != "":
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	if !c.motion.Initialized() {
		if err := c.motion.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize motion: %w", err)
		}
	}
	if err := c.jobs.Start(id); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	if c.stopped {
		// the store already aborted the job
		c.mu.Unlock()
		cancel()
		return job.ErrStartCancelled
	}
	if err := c.thermal.EnableHeating(true); err != nil {
		c.mu.Unlock()
		cancel()
		c.fail(id, err)
		return err
	}
	c.cancel = cancel
	c.done = done
	c.running = id
	c.mu.Unlock()

	c.logger.Info("executing job", zap.String("job", id))
	go c.execute(runCtx, cancel, id, done)
	return nil
}

// Pause holds the job before its next point.
func (c *Controller) Pause(id string) error {
	return c.jobs.Pause(id)
}

func (c *Controller) Resume(id string) error {
	return c.jobs.Resume(id)
}

// Abort ends the job and cancels the point in progress. Heating is left as is.
func (c *Controller) Abort(id string) error {
	if err := c.jobs.Abort(id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.running == id && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) execute(ctx context.Context, cancel context.CancelFunc, id string, done chan struct{}) {
	defer func() {
		cancel()
		c.mu.Lock()
		if c.running == id {
			c.running = ""
			c.cancel = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	err := c.run(ctx, id)
	switch {
	case err == nil:
		if err := c.jobs.Complete(id); err != nil {
			c.logger.Warn("job could not be completed", zap.String("job", id), zap.Error(err))
			return
		}
		c.mu.Lock()
		c.cycles++
		c.mu.Unlock()
	case ctx.Err() != nil, errors.Is(err, job.ErrNotActive):
		// stopped or aborted elsewhere
	case errors.Is(err, safety.ErrCollisionRisk),
		errors.Is(err, safety.ErrSpeedLimit),
		errors.Is(err, safety.ErrOutsideZones):
		c.EmergencyStop(context.Background(), err.Error())
	default:
		c.fail(id, err)
	}
}

func (c *Controller) run(ctx context.Context, id string) error {
	j, err := c.jobs.Get(id)
	if err != nil {
		return err
	}
	for i, pt := range j.Points {
		if pt.Completed {
			continue
		}
		if err := c.awaitRunnable(ctx, id); err != nil {
			return err
		}
		if err := c.solder(ctx, id, i, pt); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

// awaitRunnable returns once the job is in progress, waiting out a pause.
func (c *Controller) awaitRunnable(ctx context.Context, id string) error {
	for {
		j, err := c.jobs.Get(id)
		if err != nil {
			return err
		}
		switch j.Status {
		case job.StatusInProgress:
			return nil
		case job.StatusPaused:
		default:
			return job.ErrNotActive
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (c *Controller) solder(ctx context.Context, id string, idx int, pt job.SolderPoint) error {
	start := c.motion.Position()
	feed, duration := c.plan(start, pt.Position)

	if err := c.safety.AdmitMovement(start, pt.Position, duration); err != nil {
		return err
	}
	if err := c.safety.ValidateTarget(pt.Position); err != nil {
		return err
	}
	if err := c.motion.MoveTo(ctx, pt.Position, feed); err != nil {
		return err
	}
	if err := c.awaitTemperature(ctx, pt.Temperature); err != nil {
		return err
	}
	if err := sleep(ctx, pt.Dwell); err != nil {
		return err
	}
	return c.jobs.CompletePoint(id, idx)
}

// plan returns the feed (mm/min) for a move, capped by the zone limit, and the
// time the move takes at that feed, rounded up.
func (c *Controller) plan(start, end geometry.Point3D) (float64, time.Duration) {
	feed := c.cfg.FeedRate
	if limit, ok := c.safety.SpeedLimit(start, end); ok {
		feed = math.Min(feed, limit*60)
	}
	dist := start.Distance(end)
	if dist == 0 || feed <= 0 {
		return feed, 0
	}
	secs := dist / (feed / 60)
	return feed, time.Duration(math.Ceil(secs*float64(time.Second))) + time.Nanosecond
}

func (c *Controller) awaitTemperature(ctx context.Context, target float64) error {
	if c.thermal.Ready(target, c.cfg.ReadyTolerance) {
		return nil
	}
	timeout := c.cfg.HeatTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().HeatTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %.0f °C not reached within %s (at %.1f °C)",
				ErrHeatTimeout, target, timeout, c.thermal.Current())
		case <-ticker.C:
			if c.thermal.Ready(target, c.cfg.ReadyTolerance) {
				return nil
			}
		}
	}
}

// fail moves the job to error and switches the heater off.
func (c *Controller) fail(id string, cause error) {
	if err := c.thermal.EnableHeating(false); err != nil {
		c.logger.Error("heater off failed", zap.Error(err))
	}
	if err := c.jobs.Fail(id, cause); err != nil && !errors.Is(err, job.ErrNotActive) {
		c.logger.Warn("job could not be failed", zap.String("job", id), zap.Error(err))
	}
}

// Jog moves the tool to p outside any job, e.g. while teaching a program, on
// behalf of user. The target must not lie in a restricted zone user is not
// allowed into, and the move is admitted by the safety monitor like any job
// move.
func (c *Controller) Jog(ctx context.Context, p geometry.Point3D, user string) error {
	if err := c.idle(); err != nil {
		return err
	}
	if err := c.safety.Authorize(p, user); err != nil {
		return err
	}
	start := c.motion.Position()
	feed, duration := c.plan(start, p)
	if err := c.safety.AdmitMovement(start, p, duration); err != nil {
		return err
	}
	if err := c.safety.ValidateTarget(p); err != nil {
		return err
	}
	return c.motion.MoveTo(ctx, p, feed)
}

// SetConveyorSpeed sets the conveyor output in percent.
func (c *Controller) SetConveyorSpeed(ctx context.Context, percent float64) error {
	if c.Stopped() {
		return job.ErrEmergencyStopped
	}
	return c.motion.SetConveyorSpeed(ctx, percent)
}

// SetTemperature sets the loop target and returns the clamped value.
func (c *Controller) SetTemperature(celsius float64) float64 {
	return c.thermal.SetTarget(celsius)
}

// EnableHeating switches the heater. Enabling is refused during an emergency
// stop.
func (c *Controller) EnableHeating(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on && c.stopped {
		return job.ErrEmergencyStopped
	}
	return c.thermal.EnableHeating(on)
}

func (c *Controller) idle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return job.ErrEmergencyStopped
	}
	if c.running != "" {
		return ErrBusy
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

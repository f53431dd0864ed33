package controller

import (
	"time"

	"go.uber.org/zap"

	"solderbot/internal/job"
	"solderbot/internal/program"
)

// StartRecording begins teaching a program for the given board.
func (c *Controller) StartRecording(name string, pcb job.PCBDocument) error {
	return c.recorder.Start(name, pcb)
}

// RecordPoint adds the current tool position to the program being taught.
func (c *Controller) RecordPoint(temperature float64, dwell time.Duration, kind job.PointKind) error {
	return c.recorder.Add(c.motion.Position(), temperature, dwell, kind)
}

// StopRecording ends teaching and stores the program when a program store is
// configured.
func (c *Controller) StopRecording() (*program.Program, error) {
	p, err := c.recorder.Stop()
	if err != nil {
		return nil, err
	}
	if c.programs != nil {
		if err := c.programs.Save(p); err != nil {
			return p, err
		}
	}
	return p, nil
}

// PlayProgram creates a waiting job from a stored program and returns its ID.
func (c *Controller) PlayProgram(name string, priority int, deadline time.Time) (string, error) {
	if c.programs == nil {
		return "", ErrNoPrograms
	}
	p, err := c.programs.Load(name)
	if err != nil {
		return "", err
	}
	id, err := c.jobs.Create(p.Job(priority, deadline))
	if err != nil {
		return "", err
	}
	c.logger.Info("program queued", zap.String("program", name), zap.String("job", id))
	return id, nil
}

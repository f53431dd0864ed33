package controller

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"solderbot/internal/events"
	"solderbot/internal/job"
)

// RecordInspection publishes the inspection result of point idx of job id.
// The point position is filled in from the job. A rejected joint is
// published as a warning.
func (c *Controller) RecordInspection(id string, idx int, r events.JointInspection) (events.JointInspection, error) {
	j, err := c.jobs.Get(id)
	if err != nil {
		return r, err
	}
	if idx < 0 || idx >= len(j.Points) {
		return r, fmt.Errorf("%w: %d of %d", job.ErrPointIndex, idx, len(j.Points))
	}
	r.Point = idx
	r.Position = j.Points[idx].Position

	sev := events.SeverityInfo
	msg := "joint accepted"
	if !r.Acceptable {
		sev = events.SeverityWarning
		msg = "joint rejected: " + r.Defect
	}
	c.logger.Info("joint inspected",
		zap.String("job_id", id),
		zap.Int("point", idx),
		zap.String("defect", r.Defect),
		zap.Float64("quality", r.Quality),
		zap.Bool("acceptable", r.Acceptable))
	c.events.Publish(events.Event{
		Kind:     events.JointInspected,
		Severity: sev,
		Source:   "controller",
		JobID:    id,
		Message:  msg,
		Time:     time.Now(),
		Data:     r,
	})
	return r, nil
}

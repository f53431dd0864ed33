package job

import (
	"strings"
	"time"
)

// Point parameter limits.
const (
	MinTemperature = 200.0
	MaxTemperature = 450.0
	MinDwell       = 100 * time.Millisecond
	MaxDwell       = 5000 * time.Millisecond
	MinPriority    = 1
	MaxPriority    = 5
)

// ValidateJob checks the fields required to create or replace a job.
func ValidateJob(j SolderJob) error {
	if strings.TrimSpace(j.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if len(j.Points) == 0 {
		return invalid("points", "must not be empty")
	}
	if j.Priority < MinPriority || j.Priority > MaxPriority {
		return invalid("priority", "%d outside [%d,%d]", j.Priority, MinPriority, MaxPriority)
	}
	if j.Deadline.IsZero() {
		return invalid("deadline", "missing")
	}
	return nil
}

// ValidatePoints checks every point against the board size and the
// temperature and dwell limits.
func ValidatePoints(j SolderJob) error {
	for i, p := range j.Points {
		if !j.PCB.Size.Contains(p.Position.XY()) {
			return invalid("points", "point %d at (%.3f, %.3f) outside board %.1fx%.1f mm",
				i, p.Position.X, p.Position.Y, j.PCB.Size.Width, j.PCB.Size.Height)
		}
		if p.Temperature < MinTemperature || p.Temperature > MaxTemperature {
			return invalid("points", "point %d temperature %.1f outside [%.0f,%.0f]",
				i, p.Temperature, MinTemperature, MaxTemperature)
		}
		if p.Dwell < MinDwell || p.Dwell > MaxDwell {
			return invalid("points", "point %d dwell %s outside [%s,%s]",
				i, p.Dwell, MinDwell, MaxDwell)
		}
	}
	return nil
}

// Package program records teach-in solder programs, keeps them on disk and
// plays them back as jobs.
package program

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"solderbot/internal/job"
	"solderbot/pkg/geometry"
)

var (
	ErrNotRecording = errors.New("program: not recording")
	ErrRecording    = errors.New("program: already recording")
	ErrNotFound     = errors.New("program: not found")
	ErrInvalid      = errors.New("program: invalid")
)

// Program is a recorded point sequence for one board type. Points use the
// job document layout so programs and exported jobs share a format.
type Program struct {
	Version     int                 `json:"version"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Created     time.Time           `json:"created"`
	Modified    time.Time           `json:"modified"`
	PCB         job.PCBDocument     `json:"pcb"`
	Points      []job.PointDocument `json:"points"`
}

// Validate checks the name and every point. Temperatures may be anywhere in
// [0,450] °C; job validation is stricter at start.
func (p *Program) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if strings.ContainsAny(p.Name, `/\`) || p.Name == "." || p.Name == ".." {
		return fmt.Errorf("%w: name %q is not a file name", ErrInvalid, p.Name)
	}
	if len(p.Points) == 0 {
		return fmt.Errorf("%w: no points", ErrInvalid)
	}
	for i, pt := range p.Points {
		if pt.Temperature < 0 || pt.Temperature > 450 {
			return fmt.Errorf("%w: point %d temperature %.1f outside [0,450]", ErrInvalid, i, pt.Temperature)
		}
		if pt.DwellTime < 0 {
			return fmt.Errorf("%w: point %d negative dwell", ErrInvalid, i)
		}
	}
	return nil
}

// Job turns the program into a new job for the job store.
func (p *Program) Job(priority int, deadline time.Time) job.SolderJob {
	doc := &job.Document{
		Name:     p.Name,
		Priority: priority,
		Deadline: deadline,
		PCB:      p.PCB,
		Points:   p.Points,
	}
	j := doc.Job()
	for i := range j.Points {
		j.Points[i].Completed = false
	}
	return j
}

// FromJob captures a job's board and points as a program.
func FromJob(name string, j job.SolderJob) *Program {
	doc := job.NewDocument(j)
	for i := range doc.Points {
		doc.Points[i].Completed = false
	}
	now := time.Now()
	return &Program{
		Version:  job.DocumentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		PCB:      doc.PCB,
		Points:   doc.Points,
	}
}

func pointDocument(pos geometry.Point3D, temperature float64, dwell time.Duration, kind job.PointKind) job.PointDocument {
	return job.PointDocument{
		X:           pos.X,
		Y:           pos.Y,
		Z:           pos.Z,
		Temperature: temperature,
		DwellTime:   dwell.Milliseconds(),
		Type:        kind.String(),
	}
}

package program

import (
	"sync"
	"time"

	"solderbot/internal/job"
	"solderbot/pkg/geometry"
)

// Recorder collects points while an operator teaches a program.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	current   *Program
}

// NewRecorder returns an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start begins a new program for the given board.
func (r *Recorder) Start(name string, pcb job.PCBDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrRecording
	}
	now := time.Now()
	r.current = &Program{
		Version:  job.DocumentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		PCB:      pcb,
	}
	r.recording = true
	return nil
}

// Add appends a taught point.
func (r *Recorder) Add(pos geometry.Point3D, temperature float64, dwell time.Duration, kind job.PointKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.current.Points = append(r.current.Points, pointDocument(pos, temperature, dwell, kind))
	r.current.Modified = time.Now()
	return nil
}

// Clear drops the points taught so far and keeps recording.
func (r *Recorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.current.Points = nil
	return nil
}

// Recording reports whether a program is being taught and how many points it
// has.
func (r *Recorder) Recording() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return false, 0
	}
	return true, len(r.current.Points)
}

// Stop ends recording and returns the validated program. An invalid program
// is discarded.
func (r *Recorder) Stop() (*Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, ErrNotRecording
	}
	p := r.current
	r.current = nil
	r.recording = false
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

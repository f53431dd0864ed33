// Package job owns solder jobs, their points and PCB data, and the job
// lifecycle state machine.
package job

import (
	"fmt"
	"image"
	"strings"
	"time"

	"solderbot/pkg/geometry"
)

// Status is the lifecycle state of a job.
type Status int

const (
	StatusWaiting Status = iota
	StatusInProgress
	StatusPaused
	StatusCompleted
	StatusAborted
	StatusError
)

var statusNames = [...]string{
	StatusWaiting:    "waiting",
	StatusInProgress: "in_progress",
	StatusPaused:     "paused",
	StatusCompleted:  "completed",
	StatusAborted:    "aborted",
	StatusError:      "error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ParseStatus converts a status name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("job: unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted || s == StatusError
}

// PointKind classifies a solder point.
type PointKind int

const (
	KindThroughHole PointKind = iota
	KindSurfaceMount
	KindOther
)

func (k PointKind) String() string {
	switch k {
	case KindThroughHole:
		return "PTH"
	case KindSurfaceMount:
		return "SMD"
	default:
		return "other"
	}
}

// ParsePointKind accepts the short and long spellings used by exported
// documents and recorded programs. Anything unrecognized is KindOther.
func ParsePointKind(s string) PointKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pth", "through-hole", "through_hole", "tht":
		return KindThroughHole
	case "smd", "smt", "surface-mount", "surface_mount":
		return KindSurfaceMount
	default:
		return KindOther
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k PointKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PointKind) UnmarshalText(text []byte) error {
	*k = ParsePointKind(string(text))
	return nil
}

// Defaults applied to points created from vision candidates.
const (
	DefaultTemperature = 350.0
	DefaultDwell       = 1000 * time.Millisecond
	DefaultKind        = KindThroughHole
)

// SolderPoint is a single solder location in machine coordinates (mm).
type SolderPoint struct {
	Position    geometry.Point3D `json:"position"`
	Temperature float64          `json:"temperature"`
	Dwell       time.Duration    `json:"dwell"`
	Kind        PointKind        `json:"kind"`
	Completed   bool             `json:"completed"`
	ExecutedAt  time.Time        `json:"executed_at,omitempty"`
}

// NewCandidatePoint builds a point with default parameters at (x, y, 0). The
// height is calibrated later.
func NewCandidatePoint(x, y float64) SolderPoint {
	return SolderPoint{
		Position:    geometry.NewPoint3D(x, y, 0),
		Temperature: DefaultTemperature,
		Dwell:       DefaultDwell,
		Kind:        DefaultKind,
	}
}

// PCBData describes the board a job runs on. Image is treated as immutable and
// shared between copies of the job; replace it rather than drawing into it.
type PCBData struct {
	Name         string             `json:"name"`
	Size         geometry.Size      `json:"size"`
	Origin       geometry.Point2D   `json:"origin"`
	FiducialKind string             `json:"fiducial_kind,omitempty"`
	Fiducials    []geometry.Point2D `json:"fiducials,omitempty"`
	ImagePath    string             `json:"image_path,omitempty"`
	Image        image.Image        `json:"-"`
}

// SolderJob is a board plus the ordered points to solder on it.
type SolderJob struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	PCB      PCBData       `json:"pcb"`
	Points   []SolderPoint `json:"points"`
	Priority int           `json:"priority"`
	Created  time.Time     `json:"created"`
	Deadline time.Time     `json:"deadline"`
	Status   Status        `json:"status"`
	Cause    string        `json:"cause,omitempty"`
}

// Clone returns a copy that shares no mutable slices with j.
func (j SolderJob) Clone() SolderJob {
	c := j
	c.Points = append([]SolderPoint(nil), j.Points...)
	c.PCB.Fiducials = append([]geometry.Point2D(nil), j.PCB.Fiducials...)
	return c
}

// Positions returns the point positions in order.
func (j SolderJob) Positions() []geometry.Point3D {
	out := make([]geometry.Point3D, len(j.Points))
	for i, p := range j.Points {
		out[i] = p.Position
	}
	return out
}

// Progress returns the number of completed points and the total.
func (j SolderJob) Progress() (done, total int) {
	for _, p := range j.Points {
		if p.Completed {
			done++
		}
	}
	return done, len(j.Points)
}

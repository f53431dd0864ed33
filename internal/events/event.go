// Package events provides the ordered, bounded event fan-out used by the core
// to notify loggers, sinks and operator surfaces without depending on them.
package events

import (
	"context"
	"time"

	"solderbot/pkg/geometry"
)

// Kind identifies an event.
type Kind string

const (
	JobCreated            Kind = "job_created"
	JobUpdated            Kind = "job_updated"
	JobStarted            Kind = "job_started"
	JobCompleted          Kind = "job_completed"
	JobAborted            Kind = "job_aborted"
	JobError              Kind = "job_error"
	PointCompleted        Kind = "point_completed"
	JointInspected        Kind = "joint_inspected"
	ProgressUpdated       Kind = "progress_updated"
	PCBDetected           Kind = "pcb_detected"
	CalibrationRequired   Kind = "calibration_required"
	TemperatureChanged    Kind = "temperature_changed"
	TemperatureFault      Kind = "temperature_fault"
	PositionChanged       Kind = "position_changed"
	ConveyorSpeedChanged  Kind = "conveyor_speed_changed"
	MotionFault           Kind = "motion_fault"
	SecurityEvent         Kind = "security_event"
	CollisionWarning      Kind = "collision_warning"
	EmergencyStop         Kind = "emergency_stop"
	ProcessSampleRecorded Kind = "process_sample"
	ProgramRecorded       Kind = "program_recorded"
)

// Severity tags an event for the log sink.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is a single notification. Data carries an optional typed payload
// (Progress, ProcessSample, geometry.Point3D, float64, ...).
type Event struct {
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Source   string    `json:"source"`
	JobID    string    `json:"job_id,omitempty"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
	Data     any       `json:"data,omitempty"`
}

// Progress is the payload of ProgressUpdated.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// JointInspection is the payload of JointInspected.
type JointInspection struct {
	Point      int              `json:"point"`
	Position   geometry.Point3D `json:"position"`
	Defect     string           `json:"defect"`
	Quality    float64          `json:"quality"`
	Diameter   float64          `json:"diameter"`
	Acceptable bool             `json:"acceptable"`
}

// ProcessSample is the periodic process record handed to the log sink.
type ProcessSample struct {
	Temperature float64          `json:"temperature"`
	Position    geometry.Point3D `json:"position"`
	Flow        float64          `json:"flow"`
	Energy      float64          `json:"energy"`
	Program     string           `json:"program,omitempty"`
	Cycle       int              `json:"cycle"`
}

// Publisher accepts events. Publishing never blocks the caller.
type Publisher interface {
	Publish(e Event)
}

// Sink durably stores or forwards events. Sinks are best-effort.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

// OrDiscard returns p, or Discard when p is nil.
func OrDiscard(p Publisher) Publisher {
	if p == nil {
		return Discard
	}
	return p
}

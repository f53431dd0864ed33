package job

import (
	"errors"
	"fmt"

	"solderbot/internal/registration"
)

var (
	ErrJobNotFound       = errors.New("job: not found")
	ErrJobActive         = errors.New("job: another job is active")
	ErrNotActive         = errors.New("job: not the active job")
	ErrInvalidState      = errors.New("job: invalid state transition")
	ErrValidation        = errors.New("job: validation failed")
	ErrNoImage           = errors.New("job: pcb has no image")
	ErrNoDetector        = errors.New("job: no vision detector configured")
	ErrNoCandidates      = errors.New("job: no solder candidates found")
	ErrStartCancelled    = errors.New("job: start cancelled by emergency stop")
	ErrPointIndex        = errors.New("job: point index out of range")
	ErrUnsupportedFormat = errors.New("job: unsupported import format")
	ErrEmergencyStopped  = errors.New("job: emergency stop latched")
	ErrTooFewFiducials   = registration.ErrTooFewFiducials
)

// ValidationError describes why a job or point was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("job: invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) match every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

package job

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solderbot/internal/events"
	"solderbot/internal/registration"
	"solderbot/internal/sequence"
	"solderbot/pkg/geometry"
)

// Detector finds fiducial marks and solder candidates in a board image.
// Coordinates are returned in the board frame (mm).
type Detector interface {
	DetectFiducials(img image.Image) ([]geometry.Point2D, error)
	DetectSolderCandidates(img image.Image) ([]geometry.Point2D, error)
}

// Labeler reads the silkscreen label of a board.
type Labeler interface {
	ReadLabel(img image.Image) (string, error)
}

// Store holds every job and enforces the single-active-job rule.
type Store struct {
	mu       sync.Mutex
	jobs     map[string]*SolderJob
	active   string
	starting string
	stopped  bool

	detector Detector
	labeler  Labeler
	events   events.Publisher
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithDetector sets the vision detector used at start and for candidate
// detection.
func WithDetector(d Detector) Option {
	return func(s *Store) { s.detector = d }
}

// WithLabeler sets the label reader used to name unnamed boards at start.
func WithLabeler(l Labeler) Option {
	return func(s *Store) { s.labeler = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an empty store.
func NewStore(pub events.Publisher, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		jobs:   make(map[string]*SolderJob),
		events: events.OrDiscard(pub),
		logger: logger.Named("jobs"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates j, assigns an ID and creation time, and stores it as
// waiting. The caller's ID, status and cause are ignored.
func (s *Store) Create(j SolderJob) (string, error) {
	if err := ValidateJob(j); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := j.Clone()
	stored.ID = s.newID()
	stored.Created = s.now()
	stored.Status = StatusWaiting
	stored.Cause = ""
	for i := range stored.Points {
		stored.Points[i].Completed = false
		stored.Points[i].ExecutedAt = time.Time{}
	}
	s.jobs[stored.ID] = &stored

	s.logger.Info("job created", zap.String("job", stored.ID), zap.String("name", stored.Name),
		zap.Int("points", len(stored.Points)), zap.Int("priority", stored.Priority))
	s.emit(events.JobCreated, events.SeverityInfo, stored.ID, stored.Name, nil)
	return stored.ID, nil
}

// Update replaces the editable fields of a job that is not active.
func (s *Store) Update(id string, j SolderJob) error {
	if err := ValidateJob(j); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.lookup(id)
	if err != nil {
		return err
	}
	if s.busy(id) {
		return ErrJobActive
	}
	next := j.Clone()
	next.ID = cur.ID
	next.Created = cur.Created
	next.Status = cur.Status
	next.Cause = cur.Cause
	*cur = next

	s.emit(events.JobUpdated, events.SeverityInfo, id, "job updated", nil)
	return nil
}

// Delete removes a job unless it is the active job.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id); err != nil {
		return err
	}
	if s.busy(id) {
		return ErrJobActive
	}
	delete(s.jobs, id)
	s.logger.Info("job deleted", zap.String("job", id))
	return nil
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (SolderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.lookup(id)
	if err != nil {
		return SolderJob{}, err
	}
	return j.Clone(), nil
}

// List returns copies of every job ordered by creation time.
func (s *Store) List() []SolderJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SolderJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Created.Equal(out[b].Created) {
			return out[a].Created.Before(out[b].Created)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Pending returns the waiting, in-progress and paused jobs ordered by
// priority descending, then deadline ascending.
func (s *Store) Pending() []SolderJob {
	all := s.List()
	out := all[:0]
	for _, j := range all {
		switch j.Status {
		case StatusWaiting, StatusInProgress, StatusPaused:
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Priority != out[b].Priority {
			return out[a].Priority > out[b].Priority
		}
		return out[a].Deadline.Before(out[b].Deadline)
	})
	return out
}

// Active returns the ID of the job currently executing, if any.
func (s *Store) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != ""
}

// Start registers the board, sequences the points and makes the job active.
// Vision and registration run outside the lock; the slot is reserved so no
// other job can start meanwhile, and an emergency stop cancels the
// reservation. A registration or validation failure moves the job to error.
func (s *Store) Start(id string) error {
	s.mu.Lock()
	j, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrEmergencyStopped
	}
	if s.active != "" || s.starting != "" {
		s.mu.Unlock()
		return ErrJobActive
	}
	if j.Status != StatusWaiting {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start %s job", ErrInvalidState, j.Status)
	}
	s.starting = id
	snapshot := j.Clone()
	s.mu.Unlock()

	prepared, transform, prepErr := s.prepare(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.starting != id {
		s.logger.Warn("start cancelled", zap.String("job", id))
		return ErrStartCancelled
	}
	s.starting = ""

	j = s.jobs[id]
	if prepErr != nil {
		j.Status = StatusError
		j.Cause = prepErr.Error()
		s.logger.Error("job start failed", zap.String("job", id), zap.Error(prepErr))
		s.emit(events.JobError, events.SeverityError, id, j.Cause, nil)
		if errors.Is(prepErr, ErrTooFewFiducials) {
			s.emit(events.CalibrationRequired, events.SeverityWarning, id, "board registration failed", nil)
		}
		return prepErr
	}

	j.PCB.Name = prepared.PCB.Name
	j.PCB.Fiducials = prepared.PCB.Fiducials
	j.Points = prepared.Points
	j.Status = StatusInProgress
	j.Cause = ""
	s.active = id

	s.logger.Info("job started", zap.String("job", id),
		zap.Float64("rotation_deg", transform.AngleDegrees()),
		zap.Int("points", len(j.Points)))
	s.emit(events.PCBDetected, events.SeverityInfo, id, j.PCB.Name, j.PCB.Fiducials)
	s.emit(events.JobStarted, events.SeverityInfo, id, j.Name, events.Progress{Current: 0, Total: len(j.Points)})
	return nil
}

// prepare runs fiducial detection, registration, sequencing and point
// validation on a private copy of the job.
func (s *Store) prepare(j SolderJob) (SolderJob, registration.Transform, error) {
	fiducials := j.PCB.Fiducials
	if j.PCB.Image != nil && s.detector != nil {
		found, err := s.detector.DetectFiducials(j.PCB.Image)
		if err != nil {
			return j, registration.Transform{}, fmt.Errorf("job: fiducial detection: %w", err)
		}
		fiducials = found
	}

	transform, err := registration.Compute(fiducials)
	if err != nil {
		return j, registration.Transform{}, fmt.Errorf("job: %d fiducials: %w", len(fiducials), err)
	}
	j.PCB.Fiducials = fiducials

	if j.PCB.Name == "" && j.PCB.Image != nil && s.labeler != nil {
		if label, err := s.labeler.ReadLabel(j.PCB.Image); err == nil && label != "" {
			j.PCB.Name = label
		} else if err != nil {
			s.logger.Debug("label read failed", zap.String("job", j.ID), zap.Error(err))
		}
	}

	for i := range j.Points {
		j.Points[i].Position = transform.Apply(j.Points[i].Position)
	}
	order := sequence.NearestNeighbor(j.Positions())
	j.Points = sequence.Reorder(j.Points, order)

	if err := ValidatePoints(j); err != nil {
		return j, transform, err
	}
	return j, transform, nil
}

// Pause suspends the active job.
func (s *Store) Pause(id string) error {
	return s.transition(id, StatusInProgress, StatusPaused, events.JobUpdated, "job paused")
}

// Resume continues a paused active job.
func (s *Store) Resume(id string) error {
	return s.transition(id, StatusPaused, StatusInProgress, events.JobUpdated, "job resumed")
}

func (s *Store) transition(id string, from, to Status, kind events.Kind, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.lookup(id)
	if err != nil {
		return err
	}
	if s.active != id {
		return ErrNotActive
	}
	if j.Status != from {
		return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
	}
	j.Status = to
	s.logger.Info(msg, zap.String("job", id))
	s.emit(kind, events.SeverityInfo, id, msg, nil)
	return nil
}

// Abort stops the active job at the operator's request.
func (s *Store) Abort(id string) error {
	return s.finish(id, StatusAborted, "aborted by operator")
}

// Complete marks the active job finished.
func (s *Store) Complete(id string) error {
	return s.finish(id, StatusCompleted, "")
}

// Fail moves the active job to error with the given cause.
func (s *Store) Fail(id string, cause error) error {
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(id, StatusError, msg)
}

func (s *Store) finish(id string, to Status, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.lookup(id)
	if err != nil {
		return err
	}
	if s.active != id {
		return ErrNotActive
	}
	if to == StatusCompleted && j.Status != StatusInProgress {
		return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
	}
	j.Status = to
	j.Cause = cause
	s.active = ""

	switch to {
	case StatusCompleted:
		s.logger.Info("job completed", zap.String("job", id))
		s.emit(events.JobCompleted, events.SeverityInfo, id, j.Name, nil)
	case StatusAborted:
		s.logger.Warn("job aborted", zap.String("job", id), zap.String("cause", cause))
		s.emit(events.JobAborted, events.SeverityWarning, id, cause, nil)
	default:
		s.logger.Error("job failed", zap.String("job", id), zap.String("cause", cause))
		s.emit(events.JobError, events.SeverityError, id, cause, nil)
	}
	return nil
}

// CompletePoint marks point idx of the active job as soldered.
func (s *Store) CompletePoint(id string, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.lookup(id)
	if err != nil {
		return err
	}
	if s.active != id {
		return ErrNotActive
	}
	if idx < 0 || idx >= len(j.Points) {
		return ErrPointIndex
	}
	j.Points[idx].Completed = true
	j.Points[idx].ExecutedAt = s.now()

	done, total := j.Progress()
	s.emit(events.PointCompleted, events.SeverityInfo, id, "", j.Points[idx].Position)
	s.emit(events.ProgressUpdated, events.SeverityInfo, id, "", events.Progress{Current: done, Total: total})
	return nil
}

// AdjustPoints translates every point by offset and revalidates. The
// translation is kept even when validation fails.
func (s *Store) AdjustPoints(id string, offset geometry.Point3D) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.lookup(id)
	if err != nil {
		return err
	}
	if s.starting == id {
		return ErrJobActive
	}
	for i := range j.Points {
		j.Points[i].Position = j.Points[i].Position.Add(offset)
	}
	s.emit(events.JobUpdated, events.SeverityInfo, id, "points adjusted", offset)
	return ValidatePoints(*j)
}

// ValidatePoints checks the stored job's points against the board and the
// process limits.
func (s *Store) ValidatePoints(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	return ValidatePoints(j)
}

// DetectSolderPoints replaces the job's points with vision candidates at the
// default parameters. Finding none moves the job to error; a later successful
// detection returns it to waiting.
func (s *Store) DetectSolderPoints(id string) error {
	s.mu.Lock()
	j, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.busy(id) {
		s.mu.Unlock()
		return ErrJobActive
	}
	if j.Status != StatusWaiting && j.Status != StatusError {
		s.mu.Unlock()
		return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
	}
	if j.PCB.Image == nil {
		s.mu.Unlock()
		return ErrNoImage
	}
	if s.detector == nil {
		s.mu.Unlock()
		return ErrNoDetector
	}
	img := j.PCB.Image
	s.mu.Unlock()

	candidates, detErr := s.detector.DetectSolderCandidates(img)

	s.mu.Lock()
	defer s.mu.Unlock()

	j, err = s.lookup(id)
	if err != nil {
		return err
	}
	if detErr == nil && len(candidates) == 0 {
		detErr = ErrNoCandidates
	}
	if detErr != nil {
		j.Status = StatusError
		j.Cause = detErr.Error()
		s.logger.Warn("solder point detection failed", zap.String("job", id), zap.Error(detErr))
		s.emit(events.JobError, events.SeverityError, id, j.Cause, nil)
		return detErr
	}

	points := make([]SolderPoint, len(candidates))
	for i, c := range candidates {
		points[i] = NewCandidatePoint(c.X, c.Y)
	}
	j.Points = points
	j.Status = StatusWaiting
	j.Cause = ""
	s.logger.Info("solder points detected", zap.String("job", id), zap.Int("points", len(points)))
	s.emit(events.JobUpdated, events.SeverityInfo, id, "solder points detected", events.Progress{Total: len(points)})
	return nil
}

// SetImage attaches a board image to a job that is not active. Fiducial and
// solder point detection run against it.
func (s *Store) SetImage(id string, img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.lookup(id)
	if err != nil {
		return err
	}
	if s.busy(id) {
		return ErrJobActive
	}
	j.PCB.Image = img
	j.PCB.ImagePath = ""
	s.emit(events.JobUpdated, events.SeverityInfo, id, "board image captured", nil)
	return nil
}

// Requeue returns a job in error to waiting so it can be started again.
func (s *Store) Requeue(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.lookup(id)
	if err != nil {
		return err
	}
	if j.Status != StatusError {
		return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
	}
	j.Status = StatusWaiting
	j.Cause = ""
	s.emit(events.JobUpdated, events.SeverityInfo, id, "job requeued", nil)
	return nil
}

// Offset returns the board origin of the job as a 3D offset.
func (s *Store) Offset(id string) (geometry.Point3D, error) {
	j, err := s.Get(id)
	if err != nil {
		return geometry.Point3D{}, err
	}
	return geometry.NewPoint3D(j.PCB.Origin.X, j.PCB.Origin.Y, 0), nil
}

// RequestCalibration announces that the job's board needs recalibration.
func (s *Store) RequestCalibration(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id); err != nil {
		return err
	}
	s.logger.Info("calibration requested", zap.String("job", id))
	s.emit(events.CalibrationRequired, events.SeverityWarning, id, "calibration requested", nil)
	return nil
}

// EmergencyStop aborts the active job, cancels a pending start and refuses
// new starts until ResetEmergencyStop. It returns the aborted job, if any.
// Calling it again is a no-op.
func (s *Store) EmergencyStop(reason string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.starting = ""

	id := s.active
	if id == "" {
		return "", false
	}
	j := s.jobs[id]
	j.Status = StatusAborted
	j.Cause = "emergency stop"
	if reason != "" {
		j.Cause += ": " + reason
	}
	s.active = ""
	s.logger.Warn("job aborted by emergency stop", zap.String("job", id), zap.String("reason", reason))
	s.emit(events.JobAborted, events.SeverityCritical, id, j.Cause, nil)
	return id, true
}

// ResetEmergencyStop allows jobs to start again.
func (s *Store) ResetEmergencyStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}

// Stopped reports whether an emergency stop is latched.
func (s *Store) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Store) lookup(id string) (*SolderJob, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, nil
}

// busy reports whether id is active or being started. Callers hold mu.
func (s *Store) busy(id string) bool {
	return s.active == id || s.starting == id
}

func (s *Store) emit(kind events.Kind, sev events.Severity, id, msg string, data any) {
	s.events.Publish(events.Event{
		Kind:     kind,
		Severity: sev,
		Source:   "jobs",
		JobID:    id,
		Message:  msg,
		Time:     s.now(),
		Data:     data,
	})
}

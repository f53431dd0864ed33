package safety

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"solderbot/internal/events"
	"solderbot/pkg/geometry"
)

var (
	ErrCollisionRisk = errors.New("safety: collision risk")
	ErrSpeedLimit    = errors.New("safety: speed limit exceeded")
	ErrOutsideZones  = errors.New("safety: position outside every safe zone")
	ErrSmoke         = errors.New("safety: smoke level above threshold")
	ErrUnknownZone   = errors.New("safety: unknown zone")
	ErrDuplicateZone = errors.New("safety: duplicate zone id")
	ErrUnauthorized  = errors.New("safety: user not authorized for zone")
)

// StepSize is the spacing of collision checks along a path, in mm.
const StepSize = 1.0

// Defaults for Config.
const (
	DefaultSmokeThreshold   = 50.0
	DefaultClearanceWarning = 50.0
	DefaultPeriod           = 100 * time.Millisecond
)

// criticalWindow is how long a critical event keeps Status not-ok.
const criticalWindow = time.Hour

// SmokeSensor reports the environmental smoke level.
type SmokeSensor interface {
	ReadSmokeLevel() (float64, error)
}

// ProximitySensor reports the distance to the nearest obstacle in mm.
type ProximitySensor interface {
	ReadDistance() (float64, error)
}

// Config holds the monitor thresholds.
type Config struct {
	SmokeEnabled     bool
	SmokeThreshold   float64
	ClearanceWarning float64
}

// DefaultConfig returns smoke monitoring enabled at the default threshold.
func DefaultConfig() Config {
	return Config{
		SmokeEnabled:     true,
		SmokeThreshold:   DefaultSmokeThreshold,
		ClearanceWarning: DefaultClearanceWarning,
	}
}

// Status summarizes the safety state.
type Status struct {
	OK         bool     `json:"ok"`
	SmokeLevel float64  `json:"smoke_level"`
	Zones      int      `json:"zones"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Monitor owns the zone list, the access lists and the security log.
type Monitor struct {
	mu     sync.RWMutex
	zones  []Zone
	access map[string]map[string]struct{}

	cfg       Config
	smoke     SmokeSensor
	proximity ProximitySensor

	sampleMu   sync.Mutex
	smokeLevel float64
	smokeAlarm bool
	nearAlarm  bool

	stopMu sync.Mutex
	stop   func(reason string)

	log    securityLog
	events events.Publisher
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSmokeSensor attaches the smoke sensor sampled by Tick.
func WithSmokeSensor(s SmokeSensor) Option {
	return func(m *Monitor) { m.smoke = s }
}

// WithProximitySensor attaches the obstacle distance sensor sampled by Tick.
func WithProximitySensor(s ProximitySensor) Option {
	return func(m *Monitor) { m.proximity = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a monitor with no zones. Until a zone is added every
// position is unsafe.
func NewMonitor(cfg Config, pub events.Publisher, logger *zap.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		access: make(map[string]map[string]struct{}),
		cfg:    cfg,
		events: events.OrDiscard(pub),
		logger: logger.Named("safety"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnEmergencyStop sets the action taken when a sensor trips.
func (m *Monitor) OnEmergencyStop(fn func(reason string)) {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()
	m.stop = fn
}

// AddZone declares a new safe zone.
func (m *Monitor) AddZone(z Zone) error {
	if err := z.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.zones {
		if existing.ID == z.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateZone, z.ID)
		}
	}
	z.Boundary = append([]geometry.Point3D(nil), z.Boundary...)
	m.zones = append(m.zones, z)
	m.logger.Info("zone added", zap.String("zone", z.ID), zap.Float64("max_speed", z.MaxSpeed))
	return nil
}

// RemoveZone deletes a zone and its access list.
func (m *Monitor) RemoveZone(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, z := range m.zones {
		if z.ID == id {
			m.zones = append(m.zones[:i], m.zones[i+1:]...)
			delete(m.access, id)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownZone, id)
}

// Zones returns a copy of the declared zones.
func (m *Monitor) Zones() []Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Zone, len(m.zones))
	for i, z := range m.zones {
		z.Boundary = append([]geometry.Point3D(nil), z.Boundary...)
		out[i] = z
	}
	return out
}

// IsSafe reports whether p lies inside at least one zone.
func (m *Monitor) IsSafe(p geometry.Point3D) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.containedLocked(p)
}

func (m *Monitor) containedLocked(p geometry.Point3D) bool {
	for _, z := range m.zones {
		if z.Contains(p) {
			return true
		}
	}
	return false
}

// CheckPath samples the segment every StepSize mm, both endpoints included,
// and returns ErrCollisionRisk at the first sample outside every zone.
func (m *Monitor) CheckPath(start, end geometry.Point3D) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dist := start.Distance(end)
	steps := int(math.Ceil(dist / StepSize))
	delta := end.Sub(start)
	for i := 0; i <= steps; i++ {
		p := start
		if steps > 0 {
			p = start.Add(delta.Scale(float64(i) / float64(steps)))
		}
		if !m.containedLocked(p) {
			return fmt.Errorf("%w at (%.3f, %.3f, %.3f)", ErrCollisionRisk, p.X, p.Y, p.Z)
		}
	}
	return nil
}

// MinDistance returns the distance from p to the nearest zone boundary
// vertex, or +Inf with no zones.
func (m *Monitor) MinDistance(p geometry.Point3D) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := math.Inf(1)
	for _, z := range m.zones {
		best = math.Min(best, geometry.NearestVertex(p, z.Boundary))
	}
	return best
}

// SpeedLimit returns the most restrictive max speed over the zones containing
// either endpoint. ok is false when no zone contains them.
func (m *Monitor) SpeedLimit(start, end geometry.Point3D) (limit float64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = math.Inf(1)
	for _, z := range m.zones {
		if z.Contains(start) || z.Contains(end) {
			limit = math.Min(limit, z.MaxSpeed)
			ok = true
		}
	}
	return limit, ok
}

// AdmitMovement allows a move only if its path stays inside the zones and
// the average speed is within every applicable zone limit.
func (m *Monitor) AdmitMovement(start, end geometry.Point3D, duration time.Duration) error {
	if err := m.CheckPath(start, end); err != nil {
		m.record("collision_risk", events.SeverityCritical, err.Error(), "", "")
		return err
	}

	dist := start.Distance(end)
	if dist == 0 {
		return nil
	}
	limit, ok := m.SpeedLimit(start, end)
	if !ok {
		return nil
	}
	var speed float64
	if duration <= 0 {
		speed = math.Inf(1)
	} else {
		speed = dist / duration.Seconds()
	}
	if speed > limit {
		err := fmt.Errorf("%w: %.1f mm/s > %.1f mm/s", ErrSpeedLimit, speed, limit)
		m.record("speed_limit", events.SeverityCritical, err.Error(), "", "")
		return err
	}
	return nil
}

// ValidateTarget checks a single target position. A position closer to a
// zone vertex than the clearance is allowed but logged as a warning.
func (m *Monitor) ValidateTarget(p geometry.Point3D) error {
	if !m.IsSafe(p) {
		err := fmt.Errorf("%w: (%.3f, %.3f, %.3f)", ErrOutsideZones, p.X, p.Y, p.Z)
		m.record("zone_violation", events.SeverityCritical, err.Error(), "", "")
		return err
	}
	if d := m.MinDistance(p); d < m.cfg.ClearanceWarning {
		m.record("clearance", events.SeverityWarning,
			fmt.Sprintf("target %.1f mm from zone boundary", d), "", "")
	}
	return nil
}

// GrantAccess adds user to the zone's allow-list. Granting twice is a no-op.
func (m *Monitor) GrantAccess(zoneID, user string) error {
	m.mu.Lock()
	if !m.hasZoneLocked(zoneID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownZone, zoneID)
	}
	users, ok := m.access[zoneID]
	if !ok {
		users = make(map[string]struct{})
		m.access[zoneID] = users
	}
	_, had := users[user]
	users[user] = struct{}{}
	m.mu.Unlock()

	if !had {
		m.record("access_granted", events.SeverityInfo, "access granted", zoneID, user)
	}
	return nil
}

// RevokeAccess removes user from the zone's allow-list. Revoking an absent
// user is a no-op.
func (m *Monitor) RevokeAccess(zoneID, user string) error {
	m.mu.Lock()
	if !m.hasZoneLocked(zoneID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownZone, zoneID)
	}
	_, had := m.access[zoneID][user]
	delete(m.access[zoneID], user)
	m.mu.Unlock()

	if had {
		m.record("access_revoked", events.SeverityInfo, "access revoked", zoneID, user)
	}
	return nil
}

// HasAccess reports whether user is on the zone's allow-list.
func (m *Monitor) HasAccess(zoneID, user string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.access[zoneID][user]
	return ok
}

// Authorize checks that user may move to p. Every zone containing p that
// requires authorization must list user. A refusal is logged as an
// unauthorized_access security event.
func (m *Monitor) Authorize(p geometry.Point3D, user string) error {
	m.mu.RLock()
	var denied string
	for _, z := range m.zones {
		if !z.RequiresAuth || !z.Contains(p) {
			continue
		}
		if _, ok := m.access[z.ID][user]; !ok || user == "" {
			denied = z.ID
			break
		}
	}
	m.mu.RUnlock()

	if denied == "" {
		return nil
	}
	err := fmt.Errorf("%w: %s", ErrUnauthorized, denied)
	m.record("unauthorized_access", events.SeverityWarning,
		fmt.Sprintf("unauthorized move to (%.3f, %.3f, %.3f)", p.X, p.Y, p.Z), denied, user)
	return err
}

func (m *Monitor) hasZoneLocked(id string) bool {
	for _, z := range m.zones {
		if z.ID == id {
			return true
		}
	}
	return false
}

// Tick samples the smoke and proximity sensors. A smoke level above the
// threshold logs a critical event and triggers the emergency stop once per
// excursion; a proximity reading under the clearance raises a collision
// warning once per approach.
func (m *Monitor) Tick(time.Time) {
	m.sampleSmoke()
	m.sampleProximity()
}

func (m *Monitor) sampleSmoke() {
	if !m.cfg.SmokeEnabled || m.smoke == nil {
		return
	}
	level, err := m.smoke.ReadSmokeLevel()
	if err != nil {
		m.logger.Warn("smoke sensor read failed", zap.Error(err))
		return
	}

	m.sampleMu.Lock()
	m.smokeLevel = level
	over := level > m.cfg.SmokeThreshold
	trip := over && !m.smokeAlarm
	m.smokeAlarm = over
	m.sampleMu.Unlock()

	if !trip {
		return
	}
	reason := fmt.Sprintf("smoke level %.1f above threshold %.1f", level, m.cfg.SmokeThreshold)
	m.record("smoke", events.SeverityCritical, reason, "", "")
	m.triggerStop(reason)
}

func (m *Monitor) sampleProximity() {
	if m.proximity == nil {
		return
	}
	dist, err := m.proximity.ReadDistance()
	if err != nil {
		m.logger.Warn("proximity sensor read failed", zap.Error(err))
		return
	}

	m.sampleMu.Lock()
	near := dist < m.cfg.ClearanceWarning
	warn := near && !m.nearAlarm
	m.nearAlarm = near
	m.sampleMu.Unlock()

	if !warn {
		return
	}
	msg := fmt.Sprintf("obstacle at %.1f mm", dist)
	m.logger.Warn("collision warning", zap.Float64("distance", dist))
	m.events.Publish(events.Event{
		Kind:     events.CollisionWarning,
		Severity: events.SeverityWarning,
		Source:   "safety",
		Message:  msg,
		Time:     m.now(),
		Data:     dist,
	})
}

func (m *Monitor) triggerStop(reason string) {
	m.stopMu.Lock()
	stop := m.stop
	m.stopMu.Unlock()
	if stop != nil {
		stop(reason)
	}
}

// Status is not OK while smoke is above threshold or a critical event was
// logged in the last hour.
func (m *Monitor) Status() Status {
	m.sampleMu.Lock()
	level := m.smokeLevel
	m.sampleMu.Unlock()

	st := Status{OK: true, SmokeLevel: level, Zones: len(m.Zones())}
	if m.cfg.SmokeEnabled && level > m.cfg.SmokeThreshold {
		st.OK = false
		st.Reasons = append(st.Reasons, "smoke above threshold")
	}
	if m.log.criticalSince(m.now().Add(-criticalWindow)) {
		st.OK = false
		st.Reasons = append(st.Reasons, "critical event in the last hour")
	}
	return st
}

// SecurityEvents returns the log entries with from <= time <= to. Zero
// bounds are open.
func (m *Monitor) SecurityEvents(from, to time.Time) []SecurityEvent {
	return m.log.between(from, to)
}

// LogEvent records an externally observed security event.
func (m *Monitor) LogEvent(kind string, sev events.Severity, msg string) {
	m.record(kind, sev, msg, "", "")
}

func (m *Monitor) record(kind string, sev events.Severity, msg, zone, user string) {
	e := SecurityEvent{
		Time:     m.now(),
		Kind:     kind,
		Severity: sev,
		Message:  msg,
		Zone:     zone,
		User:     user,
	}
	m.log.add(e)

	fields := []zap.Field{zap.String("kind", kind), zap.String("zone", zone), zap.String("user", user)}
	switch sev {
	case events.SeverityCritical, events.SeverityError:
		m.logger.Error(msg, append(fields, zap.Bool("critical", sev == events.SeverityCritical))...)
	case events.SeverityWarning:
		m.logger.Warn(msg, fields...)
	default:
		m.logger.Info(msg, fields...)
	}

	m.events.Publish(events.Event{
		Kind:     events.SecurityEvent,
		Severity: sev,
		Source:   "safety",
		Message:  msg,
		Time:     e.Time,
		Data:     e,
	})
}

package motion

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"solderbot/internal/events"
	"solderbot/pkg/geometry"
)

// DefaultAckTimeout bounds the wait for a controller acknowledgement.
const DefaultAckTimeout = 1000 * time.Millisecond

// GCodeDriver speaks G-code over a serial handle it owns. Commands are sent
// one at a time and each waits for "ok" or "error".
type GCodeDriver struct {
	port       io.ReadWriteCloser
	lines      chan string
	ackTimeout time.Duration

	mu          sync.Mutex
	initialized bool
	position    geometry.Point3D
	conveyor    float64

	closeOnce sync.Once
	events    events.Publisher
	logger    *zap.Logger
}

// GCodeOption configures a GCodeDriver.
type GCodeOption func(*GCodeDriver)

// WithAckTimeout overrides DefaultAckTimeout.
func WithAckTimeout(d time.Duration) GCodeOption {
	return func(g *GCodeDriver) { g.ackTimeout = d }
}

// NewGCodeDriver takes ownership of port and starts reading replies from it.
func NewGCodeDriver(port io.ReadWriteCloser, pub events.Publisher, logger *zap.Logger, opts ...GCodeOption) *GCodeDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &GCodeDriver{
		port:       port,
		lines:      make(chan string, 64),
		ackTimeout: DefaultAckTimeout,
		events:     events.OrDiscard(pub),
		logger:     logger.Named("motion"),
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.readLoop()
	return g
}

func (g *GCodeDriver) readLoop() {
	defer close(g.lines)
	sc := bufio.NewScanner(g.port)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		g.lines <- line
	}
	if err := sc.Err(); err != nil {
		g.logger.Debug("serial reader stopped", zap.Error(err))
	}
}

// Initialize sends G21 (mm), G90 (absolute) and G28 (home).
func (g *GCodeDriver) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, cmd := range []string{"G21", "G90", "G28"} {
		if err := g.send(ctx, cmd); err != nil {
			return g.hardwareError(err)
		}
	}
	g.initialized = true
	g.position = geometry.Point3D{}
	g.logger.Info("motion initialized")
	return nil
}

// MoveTo sends a linear move. The position is updated only after the
// controller acknowledges.
func (g *GCodeDriver) MoveTo(ctx context.Context, p geometry.Point3D, feed float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return ErrNotInitialized
	}
	if err := g.send(ctx, FormatMove(p, feed)); err != nil {
		return g.hardwareError(err)
	}
	g.position = p
	g.publish(events.PositionChanged, events.SeverityInfo, "", p)
	return nil
}

// SetConveyorSpeed clamps percent to [0,100] and sends M106.
func (g *GCodeDriver) SetConveyorSpeed(ctx context.Context, percent float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return ErrNotInitialized
	}
	percent = math.Max(0, math.Min(100, percent))
	if err := g.send(ctx, FormatConveyor(percent)); err != nil {
		return g.hardwareError(err)
	}
	g.conveyor = percent
	g.publish(events.ConveyorSpeedChanged, events.SeverityInfo, "", percent)
	return nil
}

// EmergencyStop sends M112 and M18 and marks the driver uninitialized
// whether or not the controller acknowledges.
func (g *GCodeDriver) EmergencyStop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.initialized = false
	g.conveyor = 0
	var firstErr error
	for _, cmd := range []string{"M112", "M18"} {
		if err := g.send(ctx, cmd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.logger.Warn("motion emergency stop", zap.Error(firstErr))
	return firstErr
}

// Position returns the last acknowledged tool position.
func (g *GCodeDriver) Position() geometry.Point3D {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

// Initialized reports whether the axes are homed and usable.
func (g *GCodeDriver) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// Close releases the serial handle.
func (g *GCodeDriver) Close() error {
	var err error
	g.closeOnce.Do(func() {
		err = g.port.Close()
	})
	return err
}

// send writes one command and waits for its acknowledgement. Callers hold mu.
func (g *GCodeDriver) send(ctx context.Context, cmd string) error {
	g.drainStale()

	if _, err := io.WriteString(g.port, cmd+"\n"); err != nil {
		return fmt.Errorf("motion: write %q: %w", cmd, err)
	}

	timer := time.NewTimer(g.ackTimeout)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-g.lines:
			if !ok {
				return ErrClosed
			}
			switch {
			case strings.HasPrefix(line, "ok"):
				return nil
			case strings.HasPrefix(strings.ToLower(line), "error"), strings.HasPrefix(line, "!!"):
				return fmt.Errorf("%w: %s: %s", ErrDevice, cmd, line)
			default:
				g.logger.Debug("controller message", zap.String("line", line))
			}
		case <-timer.C:
			return fmt.Errorf("%w: %s after %s", ErrAckTimeout, cmd, g.ackTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainStale discards replies left over from a command that timed out.
func (g *GCodeDriver) drainStale() {
	for {
		select {
		case line, ok := <-g.lines:
			if !ok {
				return
			}
			g.logger.Debug("discarding stale reply", zap.String("line", line))
		default:
			return
		}
	}
}

// hardwareError leaves the driver uninitialized and reports the fault.
func (g *GCodeDriver) hardwareError(err error) error {
	g.initialized = false
	g.logger.Error("motion fault", zap.Error(err))
	g.publish(events.MotionFault, events.SeverityError, err.Error(), nil)
	return err
}

func (g *GCodeDriver) publish(kind events.Kind, sev events.Severity, msg string, data any) {
	g.events.Publish(events.Event{
		Kind:     kind,
		Severity: sev,
		Source:   "motion",
		Message:  msg,
		Time:     time.Now(),
		Data:     data,
	})
}

// FormatMove renders a G1 move with three decimals.
func FormatMove(p geometry.Point3D, feed float64) string {
	return fmt.Sprintf("G1 X%.3f Y%.3f Z%.3f F%.0f", p.X, p.Y, p.Z, feed)
}

// FormatConveyor renders M106 with the percentage scaled to 0-255.
func FormatConveyor(percent float64) string {
	return fmt.Sprintf("M106 S%d", int(percent*255/100))
}

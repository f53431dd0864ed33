// Package motion drives the gantry and conveyor through a line-oriented
// G-code controller.
package motion

import (
	"context"
	"errors"

	"solderbot/pkg/geometry"
)

var (
	ErrNotInitialized = errors.New("motion: driver not initialized")
	ErrAckTimeout     = errors.New("motion: acknowledgement timeout")
	ErrDevice         = errors.New("motion: controller reported error")
	ErrClosed         = errors.New("motion: port closed")
)

// Driver is the motion hardware seen by the controller. Every method that
// talks to hardware is bounded by the driver's acknowledgement timeout.
type Driver interface {
	// Initialize sets units and absolute mode and homes all axes.
	Initialize(ctx context.Context) error
	// MoveTo moves the tool to p at feed mm/min.
	MoveTo(ctx context.Context, p geometry.Point3D, feed float64) error
	// SetConveyorSpeed sets the conveyor fan/motor output in percent.
	SetConveyorSpeed(ctx context.Context, percent float64) error
	// EmergencyStop halts and disables the motors. The driver is left
	// uninitialized.
	EmergencyStop(ctx context.Context) error
	Position() geometry.Point3D
	Initialized() bool
	Close() error
}

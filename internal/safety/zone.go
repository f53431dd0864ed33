// Package safety guards motion against leaving the declared work zones and
// watches the smoke and proximity sensors.
package safety

import (
	"fmt"

	"solderbot/pkg/geometry"
)

// Zone is a planar safe region. Boundary vertices are 3D but only their XY
// projection is used for containment. MaxSpeed is in mm/s. Operator moves
// into a zone with RequiresAuth set are limited to users on its allow-list.
type Zone struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name"`
	Boundary     []geometry.Point3D `json:"boundary" yaml:"boundary"`
	MaxSpeed     float64            `json:"max_speed" yaml:"max_speed"`
	RequiresAuth bool               `json:"requires_auth,omitempty" yaml:"requires_auth,omitempty"`
}

// Contains reports whether p lies inside the zone's XY polygon.
func (z Zone) Contains(p geometry.Point3D) bool {
	return geometry.PointInPolygon(p.XY(), geometry.ProjectXY(z.Boundary))
}

// Validate checks that the zone is usable.
func (z Zone) Validate() error {
	if z.ID == "" {
		return fmt.Errorf("safety: zone id is empty")
	}
	if len(z.Boundary) < 3 {
		return fmt.Errorf("safety: zone %s needs at least 3 boundary vertices, got %d", z.ID, len(z.Boundary))
	}
	if z.MaxSpeed <= 0 {
		return fmt.Errorf("safety: zone %s max speed must be positive", z.ID)
	}
	return nil
}

// Rect returns a rectangular zone spanning [x0,x1]x[y0,y1] at Z=0.
func Rect(id string, x0, y0, x1, y1, maxSpeed float64) Zone {
	return Zone{
		ID:   id,
		Name: id,
		Boundary: []geometry.Point3D{
			{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
		},
		MaxSpeed: maxSpeed,
	}
}

package registration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solderbot/pkg/geometry"
)

const tol = 1e-9

func TestCompute_RequiresTwoFiducials(t *testing.T) {
	_, err := Compute(nil)
	assert.ErrorIs(t, err, ErrTooFewFiducials)

	_, err = Compute([]geometry.Point2D{{X: 1, Y: 1}})
	assert.ErrorIs(t, err, ErrTooFewFiducials)
}

func TestCompute_Angle(t *testing.T) {
	tests := []struct {
		name      string
		fiducials []geometry.Point2D
		degrees   float64
	}{
		{"horizontal", []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}}, 0},
		{"vertical", []geometry.Point2D{{X: 0, Y: 0}, {X: 0, Y: 10}}, 90},
		{"diagonal", []geometry.Point2D{{X: 5, Y: 5}, {X: 15, Y: 15}}, 45},
		{"extra fiducials ignored", []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 3, Y: 99}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Compute(tt.fiducials)
			require.NoError(t, err)
			assert.InDelta(t, tt.degrees, tr.AngleDegrees(), tol)
		})
	}
}

func TestApply_PivotIsFixed(t *testing.T) {
	for _, fids := range [][]geometry.Point2D{
		{{X: 0, Y: 0}, {X: 0, Y: 10}},
		{{X: 12, Y: -4}, {X: 30, Y: 7}},
	} {
		tr, err := Compute(fids)
		require.NoError(t, err)

		p := geometry.NewPoint3D(fids[0].X, fids[0].Y, 3.5)
		assert.True(t, tr.Apply(p).ApproxEqual(p, tol), "got %+v", tr.Apply(p))
	}
}

func TestApply_RotatesAboutFirstFiducial(t *testing.T) {
	tr, err := Compute([]geometry.Point2D{{X: 10, Y: 10}, {X: 10, Y: 20}})
	require.NoError(t, err)
	require.InDelta(t, math.Pi/2, tr.Angle, tol)

	got := tr.Apply(geometry.NewPoint3D(20, 10, 1))
	assert.True(t, got.ApproxEqual(geometry.NewPoint3D(10, 20, 1), 1e-9), "got %+v", got)
}

func TestApplyAll_LeavesZ(t *testing.T) {
	tr, err := Compute([]geometry.Point2D{{X: 0, Y: 0}, {X: -10, Y: 0}})
	require.NoError(t, err)

	pts := []geometry.Point3D{{X: 1, Y: 0, Z: 7}, {X: 0, Y: 2, Z: -1}}
	tr.ApplyAll(pts)

	assert.True(t, pts[0].ApproxEqual(geometry.NewPoint3D(-1, 0, 7), 1e-9))
	assert.True(t, pts[1].ApproxEqual(geometry.NewPoint3D(0, -2, -1), 1e-9))
}

func TestIdentity(t *testing.T) {
	p := geometry.NewPoint3D(3, 4, 5)
	assert.Equal(t, p, Identity().Apply(p))
	assert.Equal(t, p, Transform{}.Apply(p))
}

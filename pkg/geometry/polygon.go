package geometry

import "math"

// PointInPolygon tests if a point is inside a polygon using ray casting.
// Works for any simple polygon regardless of vertex winding.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// ProjectXY drops the Z component of every vertex.
func ProjectXY(vertices []Point3D) []Point2D {
	out := make([]Point2D, len(vertices))
	for i, v := range vertices {
		out[i] = v.XY()
	}
	return out
}

// PolygonMoments returns the zeroth and first-order area moments of a closed
// polygon (m00 = signed area, m10, m01) using Green's theorem. The sign of the
// result follows vertex winding; centroids divide it out.
func PolygonMoments(polygon []Point2D) (m00, m10, m01 float64) {
	n := len(polygon)
	if n < 3 {
		return 0, 0, 0
	}
	for i := 0; i < n; i++ {
		a := polygon[i]
		b := polygon[(i+1)%n]
		cross := a.X*b.Y - b.X*a.Y
		m00 += cross
		m10 += (a.X + b.X) * cross
		m01 += (a.Y + b.Y) * cross
	}
	return m00 / 2, m10 / 6, m01 / 6
}

// PolygonCentroid returns the area centroid of a closed polygon. Degenerate
// polygons (zero area) fall back to the vertex average.
func PolygonCentroid(polygon []Point2D) Point2D {
	m00, m10, m01 := PolygonMoments(polygon)
	if math.Abs(m00) < 1e-12 {
		return Centroid(polygon)
	}
	return Point2D{X: m10 / m00, Y: m01 / m00}
}

// NearestVertex returns the minimum distance from p to any vertex.
// Returns +Inf for an empty vertex set.
func NearestVertex(p Point3D, vertices []Point3D) float64 {
	best := math.Inf(1)
	for _, v := range vertices {
		if d := p.Distance(v); d < best {
			best = d
		}
	}
	return best
}

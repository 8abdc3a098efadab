package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedGeometry is returned for rings that cannot be evaluated:
// fewer than 3 distinct vertices, zero enclosed area, or a self-intersecting
// boundary.
var ErrMalformedGeometry = errors.New("malformed geometry")

// Point is a planar coordinate pair. The engine performs no geodesic
// projection; coordinates are compared in whatever system the caller supplies.
type Point struct {
	X float64
	Y float64
}

// Ring is a simple polygon boundary: an ordered sequence of vertices,
// implicitly closed (the last vertex connects back to the first).
type Ring []Point

// NewRing normalizes and validates a vertex sequence. A repeated closing
// point (first == last) is accepted and dropped. Returns ErrMalformedGeometry
// for degenerate input instead of leaving callers with undefined results.
func NewRing(pts []Point) (Ring, error) {
	if len(pts) >= 2 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	r := Ring(pts)
	if len(r) < 3 {
		return nil, fmt.Errorf("%w: ring has %d vertices, need at least 3", ErrMalformedGeometry, len(r))
	}
	if r.signedArea() == 0 {
		return nil, fmt.Errorf("%w: ring encloses zero area", ErrMalformedGeometry)
	}
	if r.selfIntersects() {
		return nil, fmt.Errorf("%w: ring is self-intersecting", ErrMalformedGeometry)
	}
	return r, nil
}

// RingFromFlat rebuilds a ring from flattened x0,y0,x1,y1,... storage.
func RingFromFlat(coords []float64) (Ring, error) {
	if len(coords)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of stored coordinates", ErrMalformedGeometry)
	}
	pts := make([]Point, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		pts = append(pts, Point{X: coords[i], Y: coords[i+1]})
	}
	return NewRing(pts)
}

// Flatten returns the ring as x0,y0,x1,y1,... for array-column storage.
func (r Ring) Flatten() []float64 {
	out := make([]float64, 0, len(r)*2)
	for _, p := range r {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Contains reports whether p lies inside the ring. Points exactly on a
// boundary edge count as inside, so shared borders never flap between
// neighboring areas.
func (r Ring) Contains(p Point) bool {
	n := len(r)
	for i := 0; i < n; i++ {
		if onSegment(p, r[i], r[(i+1)%n]) {
			return true
		}
	}
	// Standard even-odd ray cast toward +X.
	inside := false
	for i := 0; i < n; i++ {
		a, b := r[i], r[(i+1)%n]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// DistanceTo returns the minimum planar Euclidean distance from p to the
// ring, 0 when p is inside or on the boundary.
func (r Ring) DistanceTo(p Point) float64 {
	if r.Contains(p) {
		return 0
	}
	min := math.Inf(1)
	n := len(r)
	for i := 0; i < n; i++ {
		if d := distToSegment(p, r[i], r[(i+1)%n]); d < min {
			min = d
		}
	}
	return min
}

// Intersects reports whether the two rings share any boundary or interior
// point: a crossing or touching edge pair, or one ring fully nested inside
// the other.
func (r Ring) Intersects(o Ring) bool {
	n, m := len(r), len(o)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if segmentsIntersect(r[i], r[(i+1)%n], o[j], o[(j+1)%m]) {
				return true
			}
		}
	}
	// No edge contact: either disjoint or fully nested.
	return r.Contains(o[0]) || o.Contains(r[0])
}

func (r Ring) signedArea() float64 {
	var sum float64
	n := len(r)
	for i := 0; i < n; i++ {
		a, b := r[i], r[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// selfIntersects checks every non-adjacent segment pair. Adjacent segments
// share a vertex and are skipped; a shared point between non-adjacent
// segments is a genuine self-intersection.
func (r Ring) selfIntersects() bool {
	n := len(r)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(r[i], r[(i+1)%n], r[j], r[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

// orientation of the triplet (a, b, c): 0 collinear, 1 clockwise, 2 counterclockwise.
func orientation(a, b, c Point) int {
	v := (b.Y-a.Y)*(c.X-b.X) - (b.X-a.X)*(c.Y-b.Y)
	switch {
	case v == 0:
		return 0
	case v > 0:
		return 1
	default:
		return 2
	}
}

// onSegment reports whether p lies on the closed segment ab.
func onSegment(p, a, b Point) bool {
	if orientation(a, b, p) != 0 {
		return false
	}
	return p.X >= math.Min(a.X, b.X) && p.X <= math.Max(a.X, b.X) &&
		p.Y >= math.Min(a.Y, b.Y) && p.Y <= math.Max(a.Y, b.Y)
}

// segmentsIntersect reports whether closed segments ab and cd share a point,
// including touching endpoints and collinear overlap.
func segmentsIntersect(a, b, c, d Point) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(c, a, b) {
		return true
	}
	if o2 == 0 && onSegment(d, a, b) {
		return true
	}
	if o3 == 0 && onSegment(a, c, d) {
		return true
	}
	if o4 == 0 && onSegment(b, c, d) {
		return true
	}
	return false
}

func distToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

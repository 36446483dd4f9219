package geom

import "math"

// Predicate evaluator. Every function here is pure and deterministic so the
// join engine can use the same code for full-scan fallback and for
// post-filter verification of index candidates.
//
// Boundary policy: a point exactly on a polygon edge or vertex is NOT
// contained. Distance to a polygon is 0 for interior and boundary points, so
// proximity thresholds still count boundary points.

// Dist returns the planar Euclidean distance between two points.
func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Contains reports whether the point lies strictly inside the polygon.
// Ray casting with an even-odd rule; boundary points return false. The result
// does not depend on ring orientation.
func (p Polygon) Contains(pt Point) bool {
	ring := p.Ring
	for i := 0; i < len(ring)-1; i++ {
		if onSegment(pt, ring[i], ring[i+1]) {
			return false
		}
	}
	inside := false
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := a.X + (pt.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if pt.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// covers is Contains with the boundary included; used for intersection tests
// where sharing a boundary point counts.
func (p Polygon) covers(pt Point) bool {
	ring := p.Ring
	for i := 0; i < len(ring)-1; i++ {
		if onSegment(pt, ring[i], ring[i+1]) {
			return true
		}
	}
	return p.Contains(pt)
}

// DistanceTo returns the minimum distance from the point to the polygon:
// 0 when the point is inside or on the boundary, otherwise the distance to
// the nearest edge.
func (p Polygon) DistanceTo(pt Point) float64 {
	min := math.Inf(1)
	ring := p.Ring
	for i := 0; i < len(ring)-1; i++ {
		if d := pointSegDist(pt, ring[i], ring[i+1]); d < min {
			min = d
		}
	}
	if min == 0 {
		return 0
	}
	if p.Contains(pt) {
		return 0
	}
	return min
}

// Intersects reports whether the two polygons share any point, boundary
// included.
func (p Polygon) Intersects(q Polygon) bool {
	if !p.BBox().Intersects(q.BBox()) {
		return false
	}
	pr, qr := p.Ring, q.Ring
	for i := 0; i < len(pr)-1; i++ {
		for j := 0; j < len(qr)-1; j++ {
			if segmentsIntersect(pr[i], pr[i+1], qr[j], qr[j+1]) {
				return true
			}
		}
	}
	// No edge crossings: either disjoint or one ring fully inside the other.
	return p.covers(qr[0]) || q.covers(pr[0])
}

// IntersectionArea returns the area of the overlap region, 0 when the
// polygons are disjoint or the overlap degenerates to a point or line.
// One ring is clipped against the other: a convex clip ring directly, a
// concave one after decomposition into triangles, so the result is exact for
// any pair of simple rings. Subject and clip roles are assigned from the
// rings alone, never from argument position, so both argument orders run the
// identical computation.
func IntersectionArea(a, b Polygon) float64 {
	if !a.BBox().Intersects(b.BBox()) {
		return 0
	}
	subject, clip := pickClip(a, b)
	subj := openRing(subject.Ring)
	clipOpen := ccwRing(openRing(clip.Ring))
	if isConvex(clipOpen) {
		return clipArea(subj, clipOpen)
	}
	var total float64
	for _, tri := range earTriangles(clipOpen) {
		// The triangles partition the clip ring, so the per-triangle
		// overlaps are disjoint and their areas sum exactly.
		total += clipArea(subj, tri[:])
	}
	return total
}

func clipArea(subject, clip []Point) float64 {
	out := clipRing(subject, clip)
	if len(out) < 3 {
		return 0
	}
	return math.Abs(areaOpen(out))
}

// pickClip assigns the subject and clip roles: a convex operand clips a
// concave one, otherwise the lexicographically smaller ring clips. The
// choice depends only on the rings themselves.
func pickClip(a, b Polygon) (subject, clip Polygon) {
	aConvex := isConvex(openRing(a.Ring))
	bConvex := isConvex(openRing(b.Ring))
	switch {
	case aConvex && !bConvex:
		return b, a
	case bConvex && !aConvex:
		return a, b
	}
	if ringLess(a.Ring, b.Ring) {
		return b, a
	}
	return a, b
}

func ringLess(a, b []Point) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i].X != b[i].X {
				return a[i].X < b[i].X
			}
			return a[i].Y < b[i].Y
		}
	}
	return false
}

// IoU returns the intersection-over-union of two polygons with the explicit
// degenerate policy: ratio when the union has area, 1.0 for fully coincident
// zero-area shapes that still overlap, 0.0 otherwise.
func IoU(a, b Polygon) (overlap, union, iou float64) {
	overlap = IntersectionArea(a, b)
	union = a.Area() + b.Area() - overlap
	switch {
	case union > 0:
		iou = overlap / union
	case overlap > 0:
		iou = 1.0
	default:
		iou = 0.0
	}
	return overlap, union, iou
}

// cross of (b-a) x (c-a); sign gives the orientation of the turn a->b->c.
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether p lies on the closed segment ab.
func onSegment(p, a, b Point) bool {
	if cross(a, b, p) != 0 {
		return false
	}
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// segmentsIntersect reports whether the closed segments p1p2 and q1q2 share
// any point, endpoints and collinear overlap included.
func segmentsIntersect(p1, p2, q1, q2 Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(p1, q1, q2) {
		return true
	}
	if d2 == 0 && onSegment(p2, q1, q2) {
		return true
	}
	if d3 == 0 && onSegment(q1, p1, p2) {
		return true
	}
	if d4 == 0 && onSegment(q2, p1, p2) {
		return true
	}
	return false
}

// pointSegDist is the distance from p to the closed segment ab.
func pointSegDist(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Dist(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Dist(p, Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// openRing drops the closing vertex.
func openRing(ring []Point) []Point {
	return ring[:len(ring)-1]
}

// areaOpen is the signed shoelace area of a ring given without its closing
// vertex.
func areaOpen(ring []Point) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// isConvex reports whether the closed ring is convex (collinear vertices
// allowed). Degenerate rings count as convex.
func isConvex(open []Point) bool {
	n := len(open)
	sign := 0.0
	for i := 0; i < n; i++ {
		c := cross(open[i], open[(i+1)%n], open[(i+2)%n])
		if c == 0 {
			continue
		}
		if sign == 0 {
			sign = c
		} else if (c > 0) != (sign > 0) {
			return false
		}
	}
	return true
}

// ccwRing returns the ring in counter-clockwise order (copying only when a
// reversal is needed).
func ccwRing(open []Point) []Point {
	if areaOpen(open) >= 0 {
		return open
	}
	rev := make([]Point, len(open))
	for i, v := range open {
		rev[len(open)-1-i] = v
	}
	return rev
}

// clipRing clips the subject ring against a convex counter-clockwise clip
// ring (Sutherland-Hodgman). Both rings and the result omit the closing
// vertex.
func clipRing(subject, clip []Point) []Point {
	out := subject
	n := len(clip)
	for i := 0; i < n && len(out) > 0; i++ {
		a, b := clip[i], clip[(i+1)%n]
		in := out
		out = make([]Point, 0, len(in)+4)
		for j := 0; j < len(in); j++ {
			cur := in[j]
			next := in[(j+1)%len(in)]
			curIn := cross(a, b, cur) >= 0
			nextIn := cross(a, b, next) >= 0
			if curIn {
				out = append(out, cur)
			}
			if curIn != nextIn {
				if p, ok := lineSegCross(a, b, cur, next); ok {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// earTriangles decomposes a simple counter-clockwise ring (closing vertex
// omitted) into triangles by ear clipping. Collinear vertices are dropped as
// they are met; zero-area rings yield no triangles.
func earTriangles(open []Point) [][3]Point {
	verts := append([]Point(nil), open...)
	var tris [][3]Point
	for len(verts) > 3 {
		n := len(verts)
		clipped := false
		for i := 0; i < n; i++ {
			prev := verts[(i+n-1)%n]
			cur := verts[i]
			next := verts[(i+1)%n]
			c := cross(prev, cur, next)
			if c == 0 {
				verts = append(verts[:i], verts[i+1:]...)
				clipped = true
				break
			}
			if c < 0 || !earEmpty(verts, i) {
				continue
			}
			tris = append(tris, [3]Point{prev, cur, next})
			verts = append(verts[:i], verts[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// No ear: the ring is not simple. Give up rather than loop.
			return nil
		}
	}
	if len(verts) == 3 && cross(verts[0], verts[1], verts[2]) != 0 {
		tris = append(tris, [3]Point{verts[0], verts[1], verts[2]})
	}
	return tris
}

// earEmpty reports whether no other ring vertex lies in the candidate ear at
// position i. Boundary contact blocks the ear.
func earEmpty(verts []Point, i int) bool {
	n := len(verts)
	prev, cur, next := verts[(i+n-1)%n], verts[i], verts[(i+1)%n]
	for j := 0; j < n; j++ {
		if j == i || j == (i+1)%n || j == (i+n-1)%n {
			continue
		}
		if triContains(prev, cur, next, verts[j]) {
			return false
		}
	}
	return true
}

// triContains reports whether p lies in the counter-clockwise triangle abc,
// boundary included.
func triContains(a, b, c, p Point) bool {
	return cross(a, b, p) >= 0 && cross(b, c, p) >= 0 && cross(c, a, p) >= 0
}

// lineSegCross intersects the infinite line ab with the segment from p to q.
func lineSegCross(a, b, p, q Point) (Point, bool) {
	dax, day := b.X-a.X, b.Y-a.Y
	dpx, dpy := q.X-p.X, q.Y-p.Y
	denom := dax*dpy - day*dpx
	if denom == 0 {
		return Point{}, false
	}
	t := ((p.X-a.X)*day - (p.Y-a.Y)*dax) / denom
	return Point{X: p.X + t*dpx, Y: p.Y + t*dpy}, true
}

// Package geom holds the in-memory geometry model (points and polygon rings)
// together with the predicate evaluator used for client-side query fallback.
// All distances and areas are planar, in the native units of the coordinate
// reference (degrees for the benchmark dataset). This is intentional: the
// backend's distance-within pushdown is planar too, and both evaluation paths
// must agree.
package geom

import (
	"fmt"
	"math"
)

// Point is a position in the dataset's coordinate reference.
type Point struct {
	X float64
	Y float64
}

// Polygon is a single closed, non-self-intersecting ring. The first and last
// vertices are equal and the ring has at least 4 vertices. Zero-area
// (degenerate) rings are valid.
type Polygon struct {
	Ring []Point
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Geometry is implemented by both shape kinds; it exists so filter
// expressions can carry either without caring which.
type Geometry interface {
	WKT() string
}

// NewPolygon validates and builds a polygon from a ring. The ring must be
// closed and contain at least 4 vertices (triangle plus closing vertex).
func NewPolygon(ring []Point) (Polygon, error) {
	if len(ring) < 4 {
		return Polygon{}, fmt.Errorf("polygon ring needs at least 4 vertices, got %d", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return Polygon{}, fmt.Errorf("polygon ring is not closed")
	}
	return Polygon{Ring: ring}, nil
}

// Area returns the planar area of the polygon via the shoelace formula.
// Always >= 0; exactly 0 for degenerate (collinear) rings.
func (p Polygon) Area() float64 {
	return math.Abs(signedArea(p.Ring))
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []Point) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// BBox returns the polygon's bounding box.
func (p Polygon) BBox() BBox {
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, v := range p.Ring {
		b.MinX = math.Min(b.MinX, v.X)
		b.MinY = math.Min(b.MinY, v.Y)
		b.MaxX = math.Max(b.MaxX, v.X)
		b.MaxY = math.Max(b.MaxY, v.Y)
	}
	return b
}

// Intersects reports whether two boxes share any point.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Contains reports whether the box contains the point (boundary inclusive;
// boxes are only a prefilter, exact predicates decide).
func (b BBox) Contains(pt Point) bool {
	return pt.X >= b.MinX && pt.X <= b.MaxX && pt.Y >= b.MinY && pt.Y <= b.MaxY
}

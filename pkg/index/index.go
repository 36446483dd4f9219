// Package index provides an optional in-memory R-Tree over polygon bounding
// boxes. It is strictly a candidate prefilter for the join engine: exact
// predicates are always re-applied to candidates, so query results are
// identical with or without the index.
package index

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/kass/go-geoquery/pkg/geom"
)

const (
	minChildren = 25
	maxChildren = 50
	dimensions  = 2

	// rtreego rejects zero-extent rectangles; degenerate boxes are padded.
	minExtent = 1e-9
)

// Entry is one indexed polygon.
type Entry struct {
	Key  int64
	Poly geom.Polygon
}

// spatialEntry wraps an Entry to implement rtreego.Spatial.
type spatialEntry struct {
	entry Entry
	rect  *rtreego.Rect
}

func (se *spatialEntry) Bounds() *rtreego.Rect { return se.rect }

// PolyIndex is an R-Tree over polygon bounding boxes. Built once per query
// from an immutable snapshot; read-only afterwards, safe for concurrent
// searches.
type PolyIndex struct {
	tree *rtreego.Rtree
	size int
}

// Build indexes the entries.
func Build(entries []Entry) *PolyIndex {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	n := 0
	for _, e := range entries {
		rect, err := bboxRect(e.Poly.BBox())
		if err != nil {
			continue
		}
		tree.Insert(&spatialEntry{entry: e, rect: rect})
		n++
	}
	return &PolyIndex{tree: tree, size: n}
}

// Size returns the number of indexed polygons.
func (x *PolyIndex) Size() int { return x.size }

// CandidatesPoint returns entries whose bounding box contains the point,
// sorted by ascending key so first-match policies stay stable.
func (x *PolyIndex) CandidatesPoint(pt geom.Point) []Entry {
	rect, err := rtreego.NewRect(rtreego.Point{pt.X, pt.Y}, []float64{minExtent, minExtent})
	if err != nil {
		return nil
	}
	return x.collect(rect)
}

// CandidatesBox returns entries whose bounding box intersects the box,
// sorted by ascending key.
func (x *PolyIndex) CandidatesBox(b geom.BBox) []Entry {
	rect, err := bboxRect(b)
	if err != nil {
		return nil
	}
	return x.collect(rect)
}

func (x *PolyIndex) collect(rect *rtreego.Rect) []Entry {
	results := x.tree.SearchIntersect(rect)
	entries := make([]Entry, 0, len(results))
	for _, result := range results {
		se, ok := result.(*spatialEntry)
		if !ok {
			continue
		}
		entries = append(entries, se.entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func bboxRect(b geom.BBox) (*rtreego.Rect, error) {
	dx := b.MaxX - b.MinX
	dy := b.MaxY - b.MinY
	if dx < minExtent {
		dx = minExtent
	}
	if dy < minExtent {
		dy = minExtent
	}
	return rtreego.NewRect(rtreego.Point{b.MinX, b.MinY}, []float64{dx, dy})
}

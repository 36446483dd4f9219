package engine

import (
	"sort"

	"github.com/kass/go-geoquery/pkg/geom"
	"github.com/kass/go-geoquery/pkg/index"
	"github.com/kass/go-geoquery/pkg/models"
)

// Region is the polygon side of a spatial join; zones and buildings both
// reduce to it.
type Region struct {
	Key      int64
	Name     string
	Boundary geom.Polygon
}

// ZoneRegions adapts zones for the join engine.
func ZoneRegions(zones []models.Zone) []Region {
	regions := make([]Region, len(zones))
	for i, z := range zones {
		regions[i] = Region{Key: z.Key, Name: z.Name, Boundary: z.Boundary}
	}
	return regions
}

// BuildingRegions adapts buildings for the join engine.
func BuildingRegions(buildings []models.Building) []Region {
	regions := make([]Region, len(buildings))
	for i, b := range buildings {
		regions[i] = Region{Key: b.Key, Name: b.Name, Boundary: b.Boundary}
	}
	return regions
}

// sortRegions enforces the documented iteration order (ascending key) that
// first-match assignment depends on, and that keeps pair output canonical.
func sortRegions(regions []Region) {
	sort.Slice(regions, func(i, j int) bool { return regions[i].Key < regions[j].Key })
}

// regionLookup is the optional R-Tree prefilter plus the key -> slice
// position map needed to land candidates back in region order.
type regionLookup struct {
	idx *index.PolyIndex
	pos map[int64]int
}

func (e *Engine) buildLookup(regions []Region) *regionLookup {
	if !e.opts.UseIndex {
		return nil
	}
	entries := make([]index.Entry, len(regions))
	pos := make(map[int64]int, len(regions))
	for i, r := range regions {
		entries[i] = index.Entry{Key: r.Key, Poly: r.Boundary}
		pos[r.Key] = i
	}
	return &regionLookup{idx: index.Build(entries), pos: pos}
}

// ContainmentJoin returns, per region, the indices of the points it contains
// (ascending). A point inside several overlapping regions appears under each
// of them. Parallel over point chunks with private accumulators merged in
// chunk order, so output is independent of the worker count and of whether
// the index is enabled.
func (e *Engine) ContainmentJoin(regions []Region, pts []geom.Point) ([][]int, error) {
	sortRegions(regions)
	lookup := e.buildLookup(regions)

	chunks := e.chunkCount(len(pts))
	partial := make([][][]int, chunks)
	err := e.parallelChunks(len(pts), func(chunk, start, end int) {
		local := make([][]int, len(regions))
		for i := start; i < end; i++ {
			pt := pts[i]
			if lookup != nil {
				for _, cand := range lookup.idx.CandidatesPoint(pt) {
					r := lookup.pos[cand.Key]
					if regions[r].Boundary.Contains(pt) {
						local[r] = append(local[r], i)
					}
				}
			} else {
				for r := range regions {
					if regions[r].Boundary.Contains(pt) {
						local[r] = append(local[r], i)
					}
				}
			}
		}
		partial[chunk] = local
	})
	if err != nil {
		return nil, err
	}

	matches := make([][]int, len(regions))
	for _, local := range partial {
		for r, idxs := range local {
			matches[r] = append(matches[r], idxs...)
		}
	}
	return matches, nil
}

// FirstContaining assigns each point to the first region containing it in
// ascending key order; found[i] is false when no region contains the point.
// First-match-wins is the documented policy for overlapping regions.
func (e *Engine) FirstContaining(regions []Region, pts []geom.Point) (keys []int64, found []bool, err error) {
	sortRegions(regions)
	lookup := e.buildLookup(regions)

	keys = make([]int64, len(pts))
	found = make([]bool, len(pts))
	err = e.parallelChunks(len(pts), func(_, start, end int) {
		for i := start; i < end; i++ {
			pt := pts[i]
			if lookup != nil {
				// Candidates come back sorted by key, so the first exact
				// match is the same one the linear scan would pick.
				for _, cand := range lookup.idx.CandidatesPoint(pt) {
					if regions[lookup.pos[cand.Key]].Boundary.Contains(pt) {
						keys[i] = cand.Key
						found[i] = true
						break
					}
				}
			} else {
				for r := range regions {
					if regions[r].Boundary.Contains(pt) {
						keys[i] = regions[r].Key
						found[i] = true
						break
					}
				}
			}
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return keys, found, nil
}

// ProximityJoin counts, per region, the points within threshold of the
// region's boundary or interior.
func (e *Engine) ProximityJoin(regions []Region, pts []geom.Point, threshold float64) ([]int, error) {
	sortRegions(regions)
	lookup := e.buildLookup(regions)

	chunks := e.chunkCount(len(pts))
	partial := make([][]int, chunks)
	err := e.parallelChunks(len(pts), func(chunk, start, end int) {
		local := make([]int, len(regions))
		for i := start; i < end; i++ {
			pt := pts[i]
			if lookup != nil {
				reach := geom.BBox{
					MinX: pt.X - threshold, MinY: pt.Y - threshold,
					MaxX: pt.X + threshold, MaxY: pt.Y + threshold,
				}
				for _, cand := range lookup.idx.CandidatesBox(reach) {
					r := lookup.pos[cand.Key]
					if regions[r].Boundary.DistanceTo(pt) <= threshold {
						local[r]++
					}
				}
			} else {
				for r := range regions {
					if regions[r].Boundary.DistanceTo(pt) <= threshold {
						local[r]++
					}
				}
			}
		}
		partial[chunk] = local
	})
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(regions))
	for _, local := range partial {
		for r, c := range local {
			counts[r] += c
		}
	}
	return counts, nil
}

// OverlapPair is one intersecting unordered region pair, lower key first.
// Touching pairs with zero overlap area are included; IoU carries the
// explicit degenerate policy from geom.IoU.
type OverlapPair struct {
	Key1, Key2 int64
	Area1      float64
	Area2      float64
	Overlap    float64
	Union      float64
	IoU        float64
}

// PairwiseOverlap computes the symmetric overlap relation over all unordered
// region pairs, using Intersects as a cheap prefilter before the area work.
// Pairs come back sorted by (Key1, Key2) ascending.
func (e *Engine) PairwiseOverlap(regions []Region) ([]OverlapPair, error) {
	sortRegions(regions)
	lookup := e.buildLookup(regions)

	chunks := e.chunkCount(len(regions))
	partial := make([][]OverlapPair, chunks)
	err := e.parallelChunks(len(regions), func(chunk, start, end int) {
		var local []OverlapPair
		for i := start; i < end; i++ {
			a := regions[i]
			if lookup != nil {
				for _, cand := range lookup.idx.CandidatesBox(a.Boundary.BBox()) {
					if cand.Key <= a.Key {
						continue
					}
					b := regions[lookup.pos[cand.Key]]
					if pair, ok := overlapPair(a, b); ok {
						local = append(local, pair)
					}
				}
			} else {
				for j := i + 1; j < len(regions); j++ {
					if pair, ok := overlapPair(a, regions[j]); ok {
						local = append(local, pair)
					}
				}
			}
		}
		partial[chunk] = local
	})
	if err != nil {
		return nil, err
	}

	var pairs []OverlapPair
	for _, local := range partial {
		pairs = append(pairs, local...)
	}
	return pairs, nil
}

func overlapPair(a, b Region) (OverlapPair, bool) {
	if !a.Boundary.Intersects(b.Boundary) {
		return OverlapPair{}, false
	}
	overlap, union, iou := geom.IoU(a.Boundary, b.Boundary)
	return OverlapPair{
		Key1:    a.Key,
		Key2:    b.Key,
		Area1:   a.Boundary.Area(),
		Area2:   b.Boundary.Area(),
		Overlap: overlap,
		Union:   union,
		IoU:     iou,
	}, true
}

// chunkCount mirrors the chunking in parallelChunks.
func (e *Engine) chunkCount(n int) int {
	if n <= 0 {
		return 0
	}
	chunkSize := (n + e.opts.Workers - 1) / e.opts.Workers
	return (n + chunkSize - 1) / chunkSize
}

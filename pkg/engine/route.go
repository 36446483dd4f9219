package engine

import (
	"fmt"
	"strings"

	"github.com/kass/go-geoquery/pkg/store"
)

// Predicate is the spatial operation a query needs from its dominant filter
// or join.
type Predicate int

const (
	// Backend-evaluable predicates.
	PredDistanceWithin Predicate = iota
	PredIntersects

	// Client-side fallback predicates.
	PredContainment
	PredIntersectionArea
	PredIoU
	PredFirstMatchingZone
	PredProximityJoin
	PredNearestNeighbor

	// Predicates with no implementation path at all.
	PredConvexHull
	PredLineLength
	PredKNNJoin
)

func (p Predicate) String() string {
	switch p {
	case PredDistanceWithin:
		return "distance-within"
	case PredIntersects:
		return "intersects"
	case PredContainment:
		return "containment"
	case PredIntersectionArea:
		return "intersection-area"
	case PredIoU:
		return "intersection-over-union"
	case PredFirstMatchingZone:
		return "first-matching-zone"
	case PredProximityJoin:
		return "proximity-join"
	case PredNearestNeighbor:
		return "nearest-neighbor"
	case PredConvexHull:
		return "convex-hull"
	case PredLineLength:
		return "line-length"
	case PredKNNJoin:
		return "knn-join"
	}
	return fmt.Sprintf("predicate(%d)", int(p))
}

// PlanKind says where a predicate is evaluated.
type PlanKind int

const (
	// PlanPushdown: the backend evaluates the filter, the engine trusts it.
	PlanPushdown PlanKind = iota
	// PlanFallbackPrefilter: the backend narrows the fetch with a supported
	// filter, the engine evaluates the real predicate locally.
	PlanFallbackPrefilter
	// PlanFallbackFullScan: full bounded fetch, everything local.
	PlanFallbackFullScan
)

// Plan is the routing decision for one predicate.
type Plan struct {
	Kind   PlanKind
	Filter store.Filter
}

// UnsupportedQueryError means a query's dominant predicate has no
// implementation path, neither pushdown nor local. It is raised before any
// fetch: correctness over partial results.
type UnsupportedQueryError struct {
	Query   string
	Missing []string
}

func (e *UnsupportedQueryError) Error() string {
	return fmt.Sprintf("query %s is not supported by the backend: missing %s",
		e.Query, strings.Join(e.Missing, ", "))
}

// Route classifies a predicate. The pushdown set is exactly {distance-within,
// intersects}; fallback predicates optionally carry a supported prefilter to
// bound the fetch; the rest fail fast.
func Route(query string, pred Predicate, filter store.Filter) (Plan, error) {
	switch pred {
	case PredDistanceWithin, PredIntersects:
		if filter == nil {
			return Plan{}, fmt.Errorf("pushdown predicate %s requires a filter expression", pred)
		}
		return Plan{Kind: PlanPushdown, Filter: filter}, nil

	case PredContainment, PredIntersectionArea, PredIoU, PredFirstMatchingZone, PredProximityJoin, PredNearestNeighbor:
		if filter != nil {
			return Plan{Kind: PlanFallbackPrefilter, Filter: filter}, nil
		}
		return Plan{Kind: PlanFallbackFullScan}, nil

	case PredConvexHull:
		return Plan{}, &UnsupportedQueryError{Query: query, Missing: []string{"ST_ConvexHull", "ST_Collect", "ST_Area"}}
	case PredLineLength:
		return Plan{}, &UnsupportedQueryError{Query: query, Missing: []string{"ST_MakeLine", "ST_Length"}}
	case PredKNNJoin:
		return Plan{}, &UnsupportedQueryError{Query: query, Missing: []string{"ST_KNN"}}
	}
	return Plan{}, fmt.Errorf("unknown predicate %v", pred)
}

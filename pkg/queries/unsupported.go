package queries

import (
	"context"

	"github.com/kass/go-geoquery/pkg/engine"
)

// Q5, Q7 and Q12 need spatial operators the backend does not expose and the
// engine does not evaluate locally. They fail before touching the store.

// Q5: convex hull area of Sedona-area pickups.
func Q5(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	_, err := engine.Route("q5", engine.PredConvexHull, nil)
	return nil, err
}

// Q7: total pickup-to-dropoff line length per zone.
func Q7(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	_, err := engine.Route("q7", engine.PredLineLength, nil)
	return nil, err
}

// Q12: k nearest buildings per trip pickup.
func Q12(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	_, err := engine.Route("q12", engine.PredKNNJoin, nil)
	return nil, err
}

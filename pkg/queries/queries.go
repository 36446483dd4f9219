// Package queries implements the fixed benchmark query set. Every query is a
// function from an engine to a Result with a fixed, documented schema;
// queries with no backend implementation path share the signature and always
// fail with an UnsupportedQueryError before touching the store.
package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kass/go-geoquery/pkg/engine"
	"github.com/kass/go-geoquery/pkg/geom"
	"github.com/kass/go-geoquery/pkg/metrics"
	"github.com/kass/go-geoquery/pkg/models"
)

// Func is the uniform query signature.
type Func func(ctx context.Context, e *engine.Engine) (*engine.Result, error)

var registry = map[string]Func{
	"q1":  Q1,
	"q2":  Q2,
	"q3":  Q3,
	"q4":  Q4,
	"q5":  Q5,
	"q6":  Q6,
	"q7":  Q7,
	"q8":  Q8,
	"q9":  Q9,
	"q10": Q10,
	"q11": Q11,
	"q12": Q12,
}

var order = []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9", "q10", "q11", "q12"}

var unsupported = map[string]bool{"q5": true, "q7": true, "q12": true}

// Names lists all queries in benchmark order.
func Names() []string {
	return append([]string(nil), order...)
}

// Supported lists the queries the engine can evaluate.
func Supported() []string {
	var names []string
	for _, name := range order {
		if !unsupported[name] {
			names = append(names, name)
		}
	}
	return names
}

// IsSupported reports whether a query has an implementation path.
func IsSupported(name string) bool {
	_, ok := registry[name]
	return ok && !unsupported[name]
}

// Run executes one query by name.
func Run(ctx context.Context, name string, e *engine.Engine) (*engine.Result, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q", name)
	}

	runID := uuid.NewString()
	log := e.Logger().With(zap.String("query", name), zap.String("run_id", runID))
	log.Info("running query")

	start := time.Now()
	result, err := fn(ctx, e)
	elapsed := time.Since(start)
	metrics.QueryDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		log.Warn("query failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	log.Info("query done", zap.Duration("elapsed", elapsed), zap.Int("rows", len(result.Rows)))
	return result, nil
}

func pickupPoints(trips []models.Trip) []geom.Point {
	pts := make([]geom.Point, len(trips))
	for i, t := range trips {
		pts[i] = t.PickupLoc
	}
	return pts
}

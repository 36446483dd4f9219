// Package engine is the client-side spatial evaluation core: it routes each
// predicate to backend pushdown or local fallback, materializes immutable
// per-query snapshots from the store, runs the spatial joins and
// aggregations, and orders results canonically so both evaluation paths
// return identical output.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kass/go-geoquery/pkg/metrics"
	"github.com/kass/go-geoquery/pkg/store"
)

// Options configures one Engine. Zero limits and workers fall back to
// defaults; there is no global state to reach for.
type Options struct {
	Prefix        string
	TripLimit     int
	ZoneLimit     int
	BuildingLimit int
	Workers       int
	UseIndex      bool
}

const (
	defaultTripLimit     = 10_000_000
	defaultZoneLimit     = 1_000_000
	defaultBuildingLimit = 1_000_000
)

// Engine evaluates benchmark queries against a backing store. One query at a
// time; all fetched entities are discarded when the query returns.
type Engine struct {
	store store.Client
	opts  Options
	log   *zap.Logger
}

// New builds an engine around a store client.
func New(st store.Client, opts Options, log *zap.Logger) *Engine {
	if opts.Prefix == "" {
		opts.Prefix = "spatialbench"
	}
	if opts.TripLimit <= 0 {
		opts.TripLimit = defaultTripLimit
	}
	if opts.ZoneLimit <= 0 {
		opts.ZoneLimit = defaultZoneLimit
	}
	if opts.BuildingLimit <= 0 {
		opts.BuildingLimit = defaultBuildingLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: st, opts: opts, log: log}
}

// Options returns the engine's effective configuration.
func (e *Engine) Options() Options { return e.opts }

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger { return e.log }

// fetchRows performs one bounded bulk fetch and records metrics.
func (e *Engine) fetchRows(ctx context.Context, table string, filter store.Filter, columns []string, limit int) ([]store.Row, error) {
	collection := e.opts.Prefix + "_" + table
	rows, err := e.store.Fetch(ctx, collection, filter, columns, limit)
	if err != nil {
		return nil, err
	}
	metrics.RowsFetched.WithLabelValues(table).Add(float64(len(rows)))
	return rows, nil
}

// parallelChunks splits [0,n) into contiguous chunks and runs fn over them on
// a worker pool. Chunk boundaries depend only on n and the worker count, and
// callers merge per-chunk accumulators in chunk order, so results are
// identical for any worker count.
func (e *Engine) parallelChunks(n int, fn func(chunk, start, end int)) error {
	if n <= 0 {
		return nil
	}
	workers := e.opts.Workers
	chunkSize := (n + workers - 1) / workers
	numChunks := (n + chunkSize - 1) / chunkSize
	if numChunks <= 1 {
		fn(0, 0, n)
		return nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var submitErr error
	for c := 0; c < numChunks; c++ {
		chunk := c
		start := chunk * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(chunk, start, end)
		}); err != nil {
			wg.Done()
			submitErr = fmt.Errorf("failed to submit join task: %w", err)
			break
		}
	}
	wg.Wait()
	return submitErr
}

// Package store is the engine's only I/O boundary: a bulk row fetch against a
// named collection with an optional typed filter expression and a hard row
// limit. Filter expressions are a closed set of variants; translating them to
// backend syntax happens only inside this package, the rest of the engine
// never sees store-specific strings.
package store

import (
	"context"
	"fmt"
)

// Row is one fetched record, column name to scalar. Scalar kinds are int64,
// float64, string, time.Time, []byte (geometry encodings) or nil.
type Row map[string]any

// Filter is a backend predicate the engine may push down. The supported set
// is exactly distance-within and intersects plus plain field equality; every
// other spatial predicate is evaluated client-side.
type Filter interface {
	filterExpr()
}

// DistanceWithin keeps rows whose geometry column lies within Radius of the
// target geometry (planar units).
type DistanceWithin struct {
	Field  string
	Target Geometry
	Radius float64
}

// Intersects keeps rows whose geometry column intersects the target geometry.
type Intersects struct {
	Field  string
	Target Geometry
}

// FieldEquals keeps rows whose column equals the value.
type FieldEquals struct {
	Field string
	Value any
}

func (DistanceWithin) filterExpr() {}
func (Intersects) filterExpr()     {}
func (FieldEquals) filterExpr()    {}

// Geometry is the shape carried by a spatial filter; satisfied by geom.Point
// and geom.Polygon.
type Geometry interface {
	WKT() string
}

// Client is the backing store. Fetch returns at most limit rows; if the
// collection holds more matching rows than the limit the fetch fails with a
// row-limit FetchError rather than truncating silently.
type Client interface {
	Fetch(ctx context.Context, collection string, filter Filter, columns []string, limit int) ([]Row, error)
	Close() error
}

// FetchErrorKind classifies a fetch failure.
type FetchErrorKind string

const (
	ErrConnection FetchErrorKind = "connection"
	ErrQuery      FetchErrorKind = "query"
	ErrScan       FetchErrorKind = "scan"
	ErrRowLimit   FetchErrorKind = "row-limit"
)

// FetchError is fatal to the current query; it is surfaced to the caller and
// never retried silently (a retry could mask row-limit truncation).
type FetchError struct {
	Collection string
	Kind       FetchErrorKind
	Limit      int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == ErrRowLimit {
		return fmt.Sprintf("fetch %s: result exceeds row limit %d", e.Collection, e.Limit)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Collection, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

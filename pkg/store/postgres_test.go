package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geoquery/pkg/geom"
)

func TestRenderFilterNil(t *testing.T) {
	where, args, err := renderFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestRenderFilterDistanceWithin(t *testing.T) {
	where, args, err := renderFilter(DistanceWithin{
		Field:  "t_pickuploc",
		Target: geom.Point{X: -111.761, Y: 34.8697},
		Radius: 0.45,
	})
	require.NoError(t, err)
	assert.Equal(t, ` WHERE ST_DWithin("t_pickuploc", ST_GeomFromText($1, 4326), $2)`, where)
	require.Len(t, args, 2)
	assert.Equal(t, "POINT(-111.761 34.8697)", args[0])
	assert.Equal(t, 0.45, args[1])
}

func TestRenderFilterIntersects(t *testing.T) {
	poly := geom.MustParsePolygon("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	where, args, err := renderFilter(Intersects{Field: "z_boundary", Target: poly})
	require.NoError(t, err)
	assert.Equal(t, ` WHERE ST_Intersects("z_boundary", ST_GeomFromText($1, 4326))`, where)
	require.Len(t, args, 1)
	assert.Equal(t, poly.WKT(), args[0])
}

func TestRenderFilterFieldEquals(t *testing.T) {
	where, args, err := renderFilter(FieldEquals{Field: "z_name", Value: "Coconino County"})
	require.NoError(t, err)
	assert.Equal(t, ` WHERE "z_name" = $1`, where)
	assert.Equal(t, []any{"Coconino County"}, args)
}

func TestRenderFilterQuotesIdentifiers(t *testing.T) {
	// Column names flow into SQL as quoted identifiers, never interpolated raw.
	where, _, err := renderFilter(FieldEquals{Field: `bad"col`, Value: 1})
	require.NoError(t, err)
	assert.Contains(t, where, `"bad""col"`)
}

type bogusFilter struct{}

func (bogusFilter) filterExpr() {}

func TestRenderFilterUnknownType(t *testing.T) {
	_, _, err := renderFilter(bogusFilter{})
	assert.Error(t, err)
}

func TestColumnList(t *testing.T) {
	assert.Equal(t, `"a", "b", "c"`, columnList([]string{"a", "b", "c"}))
}

func TestFetchErrorMessages(t *testing.T) {
	err := &FetchError{Collection: "spatialbench_trip", Kind: ErrRowLimit, Limit: 100}
	assert.Contains(t, err.Error(), "spatialbench_trip")
	assert.Contains(t, err.Error(), "100")
}

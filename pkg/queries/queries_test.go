package queries

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geoquery/pkg/engine"
	"github.com/kass/go-geoquery/pkg/store"
)

// fakeClient serves canned rows per collection and records every fetch, so
// tests can assert both results and what was pushed down to the backend.
type fakeClient struct {
	rows    map[string][]store.Row
	fetches []fetchCall
}

type fetchCall struct {
	collection string
	filter     store.Filter
	limit      int
}

func (f *fakeClient) Fetch(_ context.Context, collection string, filter store.Filter, columns []string, limit int) ([]store.Row, error) {
	f.fetches = append(f.fetches, fetchCall{collection, filter, limit})
	return f.rows[collection], nil
}

func (f *fakeClient) Close() error { return nil }

func testEngine(client *fakeClient) *engine.Engine {
	return engine.New(client, engine.Options{Workers: 2, UseIndex: true}, nil)
}

func tripRow(key int64, cols store.Row) store.Row {
	row := store.Row{engine.ColTripKey: key}
	for k, v := range cols {
		row[k] = v
	}
	return row
}

func zoneRow(key int64, name, boundary string) store.Row {
	return store.Row{
		engine.ColZoneKey:      key,
		engine.ColZoneName:     name,
		engine.ColZoneBoundary: boundary,
	}
}

func buildingRow(key int64, name, boundary string) store.Row {
	return store.Row{
		engine.ColBuildingKey:      key,
		engine.ColBuildingName:     name,
		engine.ColBuildingBoundary: boundary,
	}
}

func ts(day, hour int) time.Time {
	return time.Date(2024, 7, day, hour, 0, 0, 0, time.UTC)
}

func TestNamesAndSupported(t *testing.T) {
	assert.Len(t, Names(), 12)
	assert.Len(t, Supported(), 9)
	assert.True(t, IsSupported("q1"))
	assert.False(t, IsSupported("q5"))
	assert.False(t, IsSupported("q99"))
}

func TestRunUnknownQuery(t *testing.T) {
	_, err := Run(context.Background(), "q99", testEngine(&fakeClient{}))
	assert.Error(t, err)
}

func TestQ1OrderedByDistance(t *testing.T) {
	near := "POINT(-111.7610 34.8797)" // 0.01 north of center
	mid := "POINT(-111.7610 34.9197)"  // 0.05 north
	far := "POINT(-111.7610 34.9697)"  // 0.1 north

	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_trip": {
			tripRow(3, store.Row{engine.ColPickupLoc: far, engine.ColPickupTime: ts(1, 9)}),
			tripRow(1, store.Row{engine.ColPickupLoc: near, engine.ColPickupTime: ts(1, 10)}),
			tripRow(2, store.Row{engine.ColPickupLoc: mid, engine.ColPickupTime: ts(1, 11)}),
		},
	}}
	res, err := Run(context.Background(), "q1", testEngine(client))
	require.NoError(t, err)

	assert.Equal(t, []string{"t_tripkey", "pickup_lon", "pickup_lat", "t_pickuptime", "distance_to_center"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, int64(1), res.Rows[0]["t_tripkey"])
	assert.Equal(t, int64(2), res.Rows[1]["t_tripkey"])
	assert.Equal(t, int64(3), res.Rows[2]["t_tripkey"])
	assert.InDelta(t, 0.01, res.Rows[0]["distance_to_center"].(float64), 1e-9)

	// The distance filter was pushed down, bounded by the row limit.
	require.Len(t, client.fetches, 1)
	dw, ok := client.fetches[0].filter.(store.DistanceWithin)
	require.True(t, ok)
	assert.Equal(t, engine.ColPickupLoc, dw.Field)
	assert.Equal(t, 0.45, dw.Radius)
	assert.Equal(t, 1_000_000, client.fetches[0].limit)
}

func TestQ2(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_zone": {
			zoneRow(44, "Coconino County", "POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))"),
		},
		"spatialbench_trip": {
			tripRow(1, nil), tripRow(2, nil), tripRow(3, nil),
		},
	}}
	res, err := Run(context.Background(), "q2", testEngine(client))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(3), res.Rows[0]["trip_count_in_coconino_county"])

	// Zone lookup by name first, then a pushed-down intersects on pickups.
	require.Len(t, client.fetches, 2)
	eq, ok := client.fetches[0].filter.(store.FieldEquals)
	require.True(t, ok)
	assert.Equal(t, "Coconino County", eq.Value)
	_, ok = client.fetches[1].filter.(store.Intersects)
	assert.True(t, ok)
}

func TestQ2MissingZone(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{}}
	res, err := Run(context.Background(), "q2", testEngine(client))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(0), res.Rows[0]["trip_count_in_coconino_county"])

	// No trip fetch without a zone to intersect.
	require.Len(t, client.fetches, 1)
}

func TestQ3MonthBuckets(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_trip": {
			tripRow(1, store.Row{
				engine.ColPickupTime: ts(1, 10), engine.ColDropoffTime: ts(1, 11),
				engine.ColDistance: 2.0, engine.ColFare: 10.0,
			}),
			tripRow(2, store.Row{
				engine.ColPickupTime: ts(20, 8), engine.ColDropoffTime: ts(20, 8).Add(30 * time.Minute),
				engine.ColDistance: 4.0, engine.ColFare: 20.0,
			}),
			tripRow(3, store.Row{
				engine.ColPickupTime: time.Date(2024, 8, 2, 9, 0, 0, 0, time.UTC),
				engine.ColDropoffTime: time.Date(2024, 8, 2, 10, 0, 0, 0, time.UTC),
				engine.ColDistance: 6.0, engine.ColFare: 30.0,
			}),
		},
	}}
	res, err := Run(context.Background(), "q3", testEngine(client))
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	july := res.Rows[0]
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), july["pickup_month"])
	assert.Equal(t, int64(2), july["total_trips"])
	assert.InDelta(t, 3.0, july["avg_distance"].(float64), 1e-9)
	assert.InDelta(t, 2700.0, july["avg_duration"].(float64), 1e-9)
	assert.InDelta(t, 15.0, july["avg_fare"].(float64), 1e-9)

	august := res.Rows[1]
	assert.Equal(t, int64(1), august["total_trips"])
}

func TestQ4TopTripsByTip(t *testing.T) {
	zoneA := "POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))"
	zoneB := "POLYGON((5 5, 7 5, 7 7, 5 7, 5 5))"

	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_zone": {
			zoneRow(2, "B", zoneB),
			zoneRow(1, "A", zoneA),
		},
		"spatialbench_trip": {
			tripRow(1, store.Row{engine.ColPickupLoc: "POINT(1 1)", engine.ColTip: 5.0}),
			tripRow(2, store.Row{engine.ColPickupLoc: "POINT(6 6)", engine.ColTip: 3.0}),
			tripRow(3, store.Row{engine.ColPickupLoc: "POINT(1.5 1.5)", engine.ColTip: 8.0}),
			tripRow(4, store.Row{engine.ColPickupLoc: "POINT(9 9)", engine.ColTip: 9.0}),
		},
	}}
	res, err := Run(context.Background(), "q4", testEngine(client))
	require.NoError(t, err)

	assert.Equal(t, []string{"z_zonekey", "z_name", "trip_count"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(1), res.Rows[0]["z_zonekey"])
	assert.Equal(t, int64(2), res.Rows[0]["trip_count"])
	assert.Equal(t, int64(2), res.Rows[1]["z_zonekey"])
	assert.Equal(t, int64(1), res.Rows[1]["trip_count"])
}

func TestQ6DropsEmptyZones(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_zone": {
			zoneRow(1, "busy", "POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))"),
			zoneRow(2, "quiet", "POLYGON((5 5, 7 5, 7 7, 5 7, 5 5))"),
		},
		"spatialbench_trip": {
			tripRow(1, store.Row{
				engine.ColPickupLoc: "POINT(1 1)",
				engine.ColPickupTime: ts(1, 10), engine.ColDropoffTime: ts(1, 11),
				engine.ColTotalAmount: 42.0,
			}),
		},
	}}
	res, err := Run(context.Background(), "q6", testEngine(client))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, int64(1), row["z_zonekey"])
	assert.Equal(t, int64(1), row["total_pickups"])
	assert.InDelta(t, 42.0, row["avg_distance"].(float64), 1e-9)
	assert.InDelta(t, 3600.0, row["avg_duration"].(float64), 1e-9)

	// Zones were narrowed with a pushed-down intersects against the region box.
	_, ok := client.fetches[0].filter.(store.Intersects)
	assert.True(t, ok)
}

func TestQ8ProximityCounts(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_building": {
			buildingRow(1, "station", "POLYGON((0 0, 0.001 0, 0.001 0.001, 0 0.001, 0 0))"),
			buildingRow(2, "remote", "POLYGON((5 5, 5.001 5, 5.001 5.001, 5 5.001, 5 5))"),
		},
		"spatialbench_trip": {
			tripRow(1, store.Row{engine.ColPickupLoc: "POINT(0.002 0.0005)"}), // ~0.001 away
			tripRow(2, store.Row{engine.ColPickupLoc: "POINT(0.0005 0.0005)"}), // inside
			tripRow(3, store.Row{engine.ColPickupLoc: "POINT(1 1)"}),           // too far
		},
	}}
	res, err := Run(context.Background(), "q8", testEngine(client))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["b_buildingkey"])
	assert.Equal(t, "station", res.Rows[0]["b_name"])
	assert.Equal(t, int64(2), res.Rows[0]["nearby_pickup_count"])
}

func TestQ9OverlapPairs(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_building": {
			buildingRow(1, "", "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"),
			buildingRow(2, "", "POLYGON((0.5 0.5, 1.5 0.5, 1.5 1.5, 0.5 1.5, 0.5 0.5))"),
			buildingRow(3, "", "POLYGON((9 9, 10 9, 10 10, 9 10, 9 9))"),
		},
	}}
	res, err := Run(context.Background(), "q9", testEngine(client))
	require.NoError(t, err)

	assert.Equal(t, []string{"building_1", "building_2", "area1", "area2", "overlap_area", "iou"}, res.Columns)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, int64(1), row["building_1"])
	assert.Equal(t, int64(2), row["building_2"])
	assert.InDelta(t, 0.25, row["overlap_area"].(float64), 1e-12)
	assert.InDelta(t, 0.25/1.75, row["iou"].(float64), 1e-12)
}

func TestQ10RetainsEmptyZones(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_zone": {
			zoneRow(1, "with trips", "POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))"),
			zoneRow(2, "empty a", "POLYGON((5 5, 6 5, 6 6, 5 6, 5 5))"),
			zoneRow(3, "empty b", "POLYGON((8 8, 9 8, 9 9, 8 9, 8 8))"),
		},
		"spatialbench_trip": {
			tripRow(1, store.Row{
				engine.ColPickupLoc: "POINT(1 1)",
				engine.ColPickupTime: ts(1, 10), engine.ColDropoffTime: ts(1, 10).Add(20 * time.Minute),
				engine.ColDistance: 3.5,
			}),
		},
	}}
	res, err := Run(context.Background(), "q10", testEngine(client))
	require.NoError(t, err)

	// Every zone appears; the active one sorts first (nulls last).
	require.Len(t, res.Rows, 3)

	active := res.Rows[0]
	assert.Equal(t, int64(1), active["z_zonekey"])
	assert.Equal(t, "with trips", active["pickup_zone"])
	assert.Equal(t, int64(1), active["num_trips"])
	assert.InDelta(t, 1200.0, active["avg_duration"].(float64), 1e-9)
	assert.InDelta(t, 3.5, active["avg_distance"].(float64), 1e-9)

	for i, wantKey := range []int64{2, 3} {
		row := res.Rows[i+1]
		assert.Equal(t, wantKey, row["z_zonekey"])
		assert.Equal(t, int64(0), row["num_trips"])
		assert.Nil(t, row["avg_duration"])
		assert.Nil(t, row["avg_distance"])
	}
}

func TestQ11CrossZoneTrips(t *testing.T) {
	client := &fakeClient{rows: map[string][]store.Row{
		"spatialbench_zone": {
			zoneRow(1, "", "POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))"),
			zoneRow(2, "", "POLYGON((5 5, 7 5, 7 7, 5 7, 5 5))"),
		},
		"spatialbench_trip": {
			// Cross-zone.
			tripRow(1, store.Row{engine.ColPickupLoc: "POINT(1 1)", engine.ColDropoffLoc: "POINT(6 6)"}),
			// Same zone.
			tripRow(2, store.Row{engine.ColPickupLoc: "POINT(1 1)", engine.ColDropoffLoc: "POINT(1.5 1.5)"}),
			// Dropoff outside every zone: not counted.
			tripRow(3, store.Row{engine.ColPickupLoc: "POINT(1 1)", engine.ColDropoffLoc: "POINT(20 20)"}),
		},
	}}
	res, err := Run(context.Background(), "q11", testEngine(client))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["cross_zone_trip_count"])
}

func TestUnsupportedQueriesFailBeforeFetching(t *testing.T) {
	for _, name := range []string{"q5", "q7", "q12"} {
		client := &fakeClient{}
		_, err := Run(context.Background(), name, testEngine(client))
		require.Error(t, err, name)

		var uqe *engine.UnsupportedQueryError
		require.ErrorAs(t, err, &uqe, name)
		assert.Equal(t, name, uqe.Query)
		assert.Empty(t, client.fetches, "%s must not touch the store", name)
	}
}

package queries

import (
	"context"
	"sort"

	"github.com/kass/go-geoquery/pkg/engine"
	"github.com/kass/go-geoquery/pkg/geom"
	"github.com/kass/go-geoquery/pkg/models"
	"github.com/kass/go-geoquery/pkg/store"
)

const (
	coconinoZoneName = "Coconino County"
	topTripsByTip    = 1000
)

// Q6 bounding box around the Sedona region.
var q6BBox = geom.MustParsePolygon(
	"POLYGON((-112.2110 34.4197, -111.3110 34.4197, -111.3110 35.3197, -112.2110 35.3197, -112.2110 34.4197))")

// Q2: count of trips starting inside the Coconino County zone.
// Schema: trip_count_in_coconino_county (single row).
func Q2(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	res := engine.NewResult("trip_count_in_coconino_county")

	zones, _, err := e.FetchZones(ctx,
		store.FieldEquals{Field: engine.ColZoneName, Value: coconinoZoneName},
		[]string{engine.ColZoneKey, engine.ColZoneName, engine.ColZoneBoundary}, 1)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		res.Append(engine.Row{"trip_count_in_coconino_county": int64(0)})
		return res, nil
	}

	plan, err := engine.Route("q2", engine.PredIntersects, store.Intersects{
		Field:  engine.ColPickupLoc,
		Target: zones[0].Boundary,
	})
	if err != nil {
		return nil, err
	}
	trips, _, err := e.FetchTrips(ctx, plan.Filter, []string{engine.ColTripKey}, 0)
	if err != nil {
		return nil, err
	}

	res.Append(engine.Row{"trip_count_in_coconino_county": int64(len(trips))})
	return res, nil
}

// Q4: zone distribution of the top trips by tip amount.
// Schema: z_zonekey, z_name, trip_count.
func Q4(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	plan, err := engine.Route("q4", engine.PredContainment, nil)
	if err != nil {
		return nil, err
	}

	trips, _, err := e.FetchTrips(ctx, plan.Filter,
		[]string{engine.ColTripKey, engine.ColPickupLoc, engine.ColTip}, 0)
	if err != nil {
		return nil, err
	}
	sort.Slice(trips, func(i, j int) bool {
		if trips[i].Tip != trips[j].Tip {
			return trips[i].Tip > trips[j].Tip
		}
		return trips[i].Key < trips[j].Key
	})
	if len(trips) > topTripsByTip {
		trips = trips[:topTripsByTip]
	}

	zones, _, err := e.FetchZones(ctx, nil,
		[]string{engine.ColZoneKey, engine.ColZoneName, engine.ColZoneBoundary}, 0)
	if err != nil {
		return nil, err
	}

	regions := engine.ZoneRegions(zones)
	matches, err := e.ContainmentJoin(regions, pickupPoints(trips))
	if err != nil {
		return nil, err
	}

	res := engine.NewResult("z_zonekey", "z_name", "trip_count")
	for i, r := range regions {
		if len(matches[i]) == 0 {
			continue
		}
		res.Append(engine.Row{
			"z_zonekey":  r.Key,
			"z_name":     r.Name,
			"trip_count": int64(len(matches[i])),
		})
	}
	res.OrderBy(
		engine.SortKey{Column: "trip_count", Desc: true},
		engine.SortKey{Column: "z_zonekey"},
	)
	return res, nil
}

// Q6: per-zone trip statistics for zones intersecting a bounding box. Zones
// with no pickups are dropped (contrast with Q10, which retains them).
// Schema: z_zonekey, z_name, total_pickups, avg_distance, avg_duration.
func Q6(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	zonePlan, err := engine.Route("q6", engine.PredIntersects, store.Intersects{
		Field:  engine.ColZoneBoundary,
		Target: q6BBox,
	})
	if err != nil {
		return nil, err
	}
	zones, _, err := e.FetchZones(ctx, zonePlan.Filter,
		[]string{engine.ColZoneKey, engine.ColZoneName, engine.ColZoneBoundary}, 0)
	if err != nil {
		return nil, err
	}

	tripPlan, err := engine.Route("q6", engine.PredContainment, nil)
	if err != nil {
		return nil, err
	}
	trips, _, err := e.FetchTrips(ctx, tripPlan.Filter, []string{
		engine.ColTripKey, engine.ColPickupLoc, engine.ColPickupTime,
		engine.ColDropoffTime, engine.ColTotalAmount,
	}, 0)
	if err != nil {
		return nil, err
	}

	regions := engine.ZoneRegions(zones)
	matches, err := e.ContainmentJoin(regions, pickupPoints(trips))
	if err != nil {
		return nil, err
	}

	res := engine.NewResult("z_zonekey", "z_name", "total_pickups", "avg_distance", "avg_duration")
	for i, r := range regions {
		if len(matches[i]) == 0 {
			continue
		}
		var amount, duration engine.Mean
		for _, ti := range matches[i] {
			t := trips[ti]
			amount.Add(t.TotalAmount)
			duration.Add(engine.DurationSeconds(t.PickupTime, t.DropoffTime))
		}
		res.Append(engine.Row{
			"z_zonekey":     r.Key,
			"z_name":        r.Name,
			"total_pickups": int64(len(matches[i])),
			"avg_distance":  meanValue(amount),
			"avg_duration":  meanValue(duration),
		})
	}
	res.OrderBy(
		engine.SortKey{Column: "total_pickups", Desc: true},
		engine.SortKey{Column: "z_zonekey"},
	)
	return res, nil
}

// Q10: per-zone trip statistics with outer-join retention: every zone
// appears, zones with no pickups keep null aggregates and num_trips 0.
// Schema: z_zonekey, pickup_zone, avg_duration, avg_distance, num_trips.
func Q10(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	plan, err := engine.Route("q10", engine.PredContainment, nil)
	if err != nil {
		return nil, err
	}

	zones, _, err := e.FetchZones(ctx, plan.Filter,
		[]string{engine.ColZoneKey, engine.ColZoneName, engine.ColZoneBoundary}, 0)
	if err != nil {
		return nil, err
	}
	trips, _, err := e.FetchTrips(ctx, plan.Filter, []string{
		engine.ColTripKey, engine.ColPickupLoc, engine.ColPickupTime,
		engine.ColDropoffTime, engine.ColDistance,
	}, 0)
	if err != nil {
		return nil, err
	}

	regions := engine.ZoneRegions(zones)
	matches, err := e.ContainmentJoin(regions, pickupPoints(trips))
	if err != nil {
		return nil, err
	}

	res := engine.NewResult("z_zonekey", "pickup_zone", "avg_duration", "avg_distance", "num_trips")
	for i, r := range regions {
		var duration, distance engine.Mean
		for _, ti := range matches[i] {
			t := trips[ti]
			duration.Add(engine.DurationSeconds(t.PickupTime, t.DropoffTime))
			distance.Add(t.Distance)
		}
		res.Append(engine.Row{
			"z_zonekey":    r.Key,
			"pickup_zone":  r.Name,
			"avg_duration": meanValue(duration),
			"avg_distance": meanValue(distance),
			"num_trips":    int64(len(matches[i])),
		})
	}
	res.OrderBy(
		engine.SortKey{Column: "avg_duration", Desc: true},
		engine.SortKey{Column: "z_zonekey"},
	)
	return res, nil
}

// Q11: count of trips whose pickup and dropoff resolve to different zones.
// Schema: cross_zone_trip_count (single row).
func Q11(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	plan, err := engine.Route("q11", engine.PredFirstMatchingZone, nil)
	if err != nil {
		return nil, err
	}

	res := engine.NewResult("cross_zone_trip_count")

	zones, _, err := e.FetchZones(ctx, plan.Filter,
		[]string{engine.ColZoneKey, engine.ColZoneBoundary}, 0)
	if err != nil {
		return nil, err
	}
	trips, _, err := e.FetchTrips(ctx, plan.Filter,
		[]string{engine.ColTripKey, engine.ColPickupLoc, engine.ColDropoffLoc}, 0)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 || len(trips) == 0 {
		res.Append(engine.Row{"cross_zone_trip_count": int64(0)})
		return res, nil
	}

	regions := engine.ZoneRegions(zones)
	pickupKeys, pickupOK, err := e.FirstContaining(regions, pickupPoints(trips))
	if err != nil {
		return nil, err
	}
	dropoffKeys, dropoffOK, err := e.FirstContaining(regions, dropoffPoints(trips))
	if err != nil {
		return nil, err
	}

	var count int64
	for i := range trips {
		if pickupOK[i] && dropoffOK[i] && pickupKeys[i] != dropoffKeys[i] {
			count++
		}
	}
	res.Append(engine.Row{"cross_zone_trip_count": count})
	return res, nil
}

func dropoffPoints(trips []models.Trip) []geom.Point {
	pts := make([]geom.Point, len(trips))
	for i, t := range trips {
		pts[i] = t.DropoffLoc
	}
	return pts
}

package queries

import (
	"context"
	"time"

	"github.com/kass/go-geoquery/pkg/engine"
	"github.com/kass/go-geoquery/pkg/geom"
	"github.com/kass/go-geoquery/pkg/store"
)

// Benchmark constants. Degrees are the dataset's distance proxy: 0.45 is
// roughly 50km at this latitude, 0.045 roughly 5km, 0.0045 roughly 500m.
var (
	sedonaCenter = geom.Point{X: -111.7610, Y: 34.8697}

	sedonaBox = geom.MustParsePolygon(
		"POLYGON((-111.9060 34.7347, -111.6160 34.7347, -111.6160 35.0047, -111.9060 35.0047, -111.9060 34.7347))")
)

const (
	sedonaRadius      = 0.45
	sedonaBoxBuffer   = 0.045
	buildingThreshold = 0.0045

	q1RowLimit = 1_000_000
)

// Q1: trips starting within 50km of the Sedona city center, nearest first.
// Schema: t_tripkey, pickup_lon, pickup_lat, t_pickuptime, distance_to_center.
func Q1(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	plan, err := engine.Route("q1", engine.PredDistanceWithin, store.DistanceWithin{
		Field:  engine.ColPickupLoc,
		Target: sedonaCenter,
		Radius: sedonaRadius,
	})
	if err != nil {
		return nil, err
	}

	trips, _, err := e.FetchTrips(ctx, plan.Filter,
		[]string{engine.ColTripKey, engine.ColPickupLoc, engine.ColPickupTime}, q1RowLimit)
	if err != nil {
		return nil, err
	}

	res := engine.NewResult("t_tripkey", "pickup_lon", "pickup_lat", "t_pickuptime", "distance_to_center")
	for _, t := range trips {
		res.Append(engine.Row{
			"t_tripkey":          t.Key,
			"pickup_lon":         t.PickupLoc.X,
			"pickup_lat":         t.PickupLoc.Y,
			"t_pickuptime":       t.PickupTime,
			"distance_to_center": geom.Dist(t.PickupLoc, sedonaCenter),
		})
	}
	res.OrderBy(
		engine.SortKey{Column: "distance_to_center"},
		engine.SortKey{Column: "t_tripkey"},
	)
	return res, nil
}

// Q3: monthly trip statistics within the buffered Sedona box.
// Schema: pickup_month, total_trips, avg_distance, avg_duration, avg_fare.
func Q3(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	plan, err := engine.Route("q3", engine.PredDistanceWithin, store.DistanceWithin{
		Field:  engine.ColPickupLoc,
		Target: sedonaBox,
		Radius: sedonaBoxBuffer,
	})
	if err != nil {
		return nil, err
	}

	trips, _, err := e.FetchTrips(ctx, plan.Filter, []string{
		engine.ColTripKey, engine.ColPickupTime, engine.ColDropoffTime,
		engine.ColDistance, engine.ColFare,
	}, 0)
	if err != nil {
		return nil, err
	}

	type monthAgg struct {
		trips    int64
		distance engine.Mean
		duration engine.Mean
		fare     engine.Mean
	}
	months := make(map[time.Time]*monthAgg)
	for _, t := range trips {
		month := engine.MonthStart(t.PickupTime)
		agg := months[month]
		if agg == nil {
			agg = &monthAgg{}
			months[month] = agg
		}
		agg.trips++
		agg.distance.Add(t.Distance)
		agg.duration.Add(engine.DurationSeconds(t.PickupTime, t.DropoffTime))
		agg.fare.Add(t.Fare)
	}

	res := engine.NewResult("pickup_month", "total_trips", "avg_distance", "avg_duration", "avg_fare")
	for month, agg := range months {
		res.Append(engine.Row{
			"pickup_month": month,
			"total_trips":  agg.trips,
			"avg_distance": meanValue(agg.distance),
			"avg_duration": meanValue(agg.duration),
			"avg_fare":     meanValue(agg.fare),
		})
	}
	res.OrderBy(engine.SortKey{Column: "pickup_month"})
	return res, nil
}

// Q8: pickups within 500m of each building.
// Schema: b_buildingkey, b_name, nearby_pickup_count.
func Q8(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	plan, err := engine.Route("q8", engine.PredProximityJoin, nil)
	if err != nil {
		return nil, err
	}

	buildings, _, err := e.FetchBuildings(ctx, plan.Filter,
		[]string{engine.ColBuildingKey, engine.ColBuildingName, engine.ColBuildingBoundary}, 0)
	if err != nil {
		return nil, err
	}
	trips, _, err := e.FetchTrips(ctx, plan.Filter,
		[]string{engine.ColTripKey, engine.ColPickupLoc}, 0)
	if err != nil {
		return nil, err
	}

	regions := engine.BuildingRegions(buildings)
	counts, err := e.ProximityJoin(regions, pickupPoints(trips), buildingThreshold)
	if err != nil {
		return nil, err
	}

	res := engine.NewResult("b_buildingkey", "b_name", "nearby_pickup_count")
	for i, r := range regions {
		if counts[i] == 0 {
			continue
		}
		res.Append(engine.Row{
			"b_buildingkey":       r.Key,
			"b_name":              r.Name,
			"nearby_pickup_count": int64(counts[i]),
		})
	}
	res.OrderBy(
		engine.SortKey{Column: "nearby_pickup_count", Desc: true},
		engine.SortKey{Column: "b_buildingkey"},
	)
	return res, nil
}

func meanValue(m engine.Mean) any {
	v, ok := m.Value()
	if !ok {
		return nil
	}
	return v
}

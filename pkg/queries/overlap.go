package queries

import (
	"context"

	"github.com/kass/go-geoquery/pkg/engine"
)

// Q9: all intersecting building pairs with overlap area and IoU.
// Schema: building_1, building_2, area1, area2, overlap_area, iou.
func Q9(ctx context.Context, e *engine.Engine) (*engine.Result, error) {
	plan, err := engine.Route("q9", engine.PredIoU, nil)
	if err != nil {
		return nil, err
	}

	buildings, _, err := e.FetchBuildings(ctx, plan.Filter,
		[]string{engine.ColBuildingKey, engine.ColBuildingBoundary}, 0)
	if err != nil {
		return nil, err
	}

	pairs, err := e.PairwiseOverlap(engine.BuildingRegions(buildings))
	if err != nil {
		return nil, err
	}

	res := engine.NewResult("building_1", "building_2", "area1", "area2", "overlap_area", "iou")
	for _, p := range pairs {
		res.Append(engine.Row{
			"building_1":   p.Key1,
			"building_2":   p.Key2,
			"area1":        p.Area1,
			"area2":        p.Area2,
			"overlap_area": p.Overlap,
			"iou":          p.IoU,
		})
	}
	res.OrderBy(
		engine.SortKey{Column: "iou", Desc: true},
		engine.SortKey{Column: "building_1"},
		engine.SortKey{Column: "building_2"},
	)
	return res, nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kass/go-geoquery/pkg/geom"
	"github.com/kass/go-geoquery/pkg/metrics"
	"github.com/kass/go-geoquery/pkg/models"
	"github.com/kass/go-geoquery/pkg/store"
)

// Dataset column names, as shipped by the benchmark data generator.
const (
	ColTripKey     = "t_tripkey"
	ColPickupLoc   = "t_pickuploc"
	ColDropoffLoc  = "t_dropoffloc"
	ColPickupTime  = "t_pickuptime"
	ColDropoffTime = "t_dropofftime"
	ColDistance    = "t_distance"
	ColFare        = "t_fare"
	ColTip         = "t_tip"
	ColTotalAmount = "t_totalamount"

	ColZoneKey      = "z_zonekey"
	ColZoneName     = "z_name"
	ColZoneBoundary = "z_boundary"

	ColBuildingKey      = "b_buildingkey"
	ColBuildingName     = "b_name"
	ColBuildingBoundary = "b_boundary"
)

// ParseStats reports how a fetched snapshot parsed. Skipped rows carried
// malformed geometry; they are excluded, counted and logged, and the query
// continues.
type ParseStats struct {
	Fetched int
	Skipped int
}

// FetchTrips materializes a trip snapshot. Only the requested columns are
// populated on the returned records.
func (e *Engine) FetchTrips(ctx context.Context, filter store.Filter, columns []string, limit int) ([]models.Trip, ParseStats, error) {
	if limit <= 0 {
		limit = e.opts.TripLimit
	}
	rows, err := e.fetchRows(ctx, "trip", filter, columns, limit)
	if err != nil {
		return nil, ParseStats{}, err
	}

	want := columnSet(columns)
	stats := ParseStats{Fetched: len(rows)}
	trips := make([]models.Trip, 0, len(rows))
	for _, row := range rows {
		var t models.Trip
		if err := parseTripRow(row, want, &t); err != nil {
			var pe *geom.ParseError
			if errors.As(err, &pe) {
				stats.Skipped++
				e.log.Debug("skipping trip with malformed geometry", zap.Error(err))
				continue
			}
			return nil, stats, fmt.Errorf("trip row: %w", err)
		}
		trips = append(trips, t)
	}
	e.reportSkipped("trip", stats)
	return trips, stats, nil
}

func parseTripRow(row store.Row, want map[string]bool, t *models.Trip) error {
	var err error
	if want[ColTripKey] {
		if t.Key, err = rowInt64(row, ColTripKey); err != nil {
			return err
		}
	}
	if want[ColPickupLoc] {
		if t.PickupLoc, err = geom.DecodePoint(row[ColPickupLoc]); err != nil {
			return err
		}
	}
	if want[ColDropoffLoc] {
		if t.DropoffLoc, err = geom.DecodePoint(row[ColDropoffLoc]); err != nil {
			return err
		}
	}
	if want[ColPickupTime] {
		if t.PickupTime, err = rowTime(row, ColPickupTime); err != nil {
			return err
		}
	}
	if want[ColDropoffTime] {
		if t.DropoffTime, err = rowTime(row, ColDropoffTime); err != nil {
			return err
		}
	}
	if want[ColDistance] {
		if t.Distance, err = rowFloat(row, ColDistance); err != nil {
			return err
		}
	}
	if want[ColFare] {
		if t.Fare, err = rowFloat(row, ColFare); err != nil {
			return err
		}
	}
	if want[ColTip] {
		if t.Tip, err = rowFloat(row, ColTip); err != nil {
			return err
		}
	}
	if want[ColTotalAmount] {
		if t.TotalAmount, err = rowFloat(row, ColTotalAmount); err != nil {
			return err
		}
	}
	return nil
}

// FetchZones materializes a zone snapshot sorted by ascending key; the sort
// fixes the iteration order the first-matching-zone policy depends on.
func (e *Engine) FetchZones(ctx context.Context, filter store.Filter, columns []string, limit int) ([]models.Zone, ParseStats, error) {
	if limit <= 0 {
		limit = e.opts.ZoneLimit
	}
	rows, err := e.fetchRows(ctx, "zone", filter, columns, limit)
	if err != nil {
		return nil, ParseStats{}, err
	}

	want := columnSet(columns)
	stats := ParseStats{Fetched: len(rows)}
	zones := make([]models.Zone, 0, len(rows))
	for _, row := range rows {
		var z models.Zone
		if want[ColZoneKey] {
			if z.Key, err = rowInt64(row, ColZoneKey); err != nil {
				return nil, stats, fmt.Errorf("zone row: %w", err)
			}
		}
		if want[ColZoneName] {
			if z.Name, err = rowString(row, ColZoneName); err != nil {
				return nil, stats, fmt.Errorf("zone row: %w", err)
			}
		}
		if want[ColZoneBoundary] {
			if z.Boundary, err = geom.DecodePolygon(row[ColZoneBoundary]); err != nil {
				stats.Skipped++
				e.log.Debug("skipping zone with malformed boundary", zap.Error(err))
				continue
			}
		}
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Key < zones[j].Key })
	e.reportSkipped("zone", stats)
	return zones, stats, nil
}

// FetchBuildings materializes a building snapshot sorted by ascending key.
func (e *Engine) FetchBuildings(ctx context.Context, filter store.Filter, columns []string, limit int) ([]models.Building, ParseStats, error) {
	if limit <= 0 {
		limit = e.opts.BuildingLimit
	}
	rows, err := e.fetchRows(ctx, "building", filter, columns, limit)
	if err != nil {
		return nil, ParseStats{}, err
	}

	want := columnSet(columns)
	stats := ParseStats{Fetched: len(rows)}
	buildings := make([]models.Building, 0, len(rows))
	for _, row := range rows {
		var b models.Building
		if want[ColBuildingKey] {
			if b.Key, err = rowInt64(row, ColBuildingKey); err != nil {
				return nil, stats, fmt.Errorf("building row: %w", err)
			}
		}
		if want[ColBuildingName] {
			if b.Name, err = rowString(row, ColBuildingName); err != nil {
				return nil, stats, fmt.Errorf("building row: %w", err)
			}
		}
		if want[ColBuildingBoundary] {
			if b.Boundary, err = geom.DecodePolygon(row[ColBuildingBoundary]); err != nil {
				stats.Skipped++
				e.log.Debug("skipping building with malformed boundary", zap.Error(err))
				continue
			}
		}
		buildings = append(buildings, b)
	}
	sort.Slice(buildings, func(i, j int) bool { return buildings[i].Key < buildings[j].Key })
	e.reportSkipped("building", stats)
	return buildings, stats, nil
}

func (e *Engine) reportSkipped(table string, stats ParseStats) {
	if stats.Skipped == 0 {
		return
	}
	metrics.RowsSkipped.WithLabelValues(table).Add(float64(stats.Skipped))
	e.log.Warn("skipped rows with malformed geometry",
		zap.String("collection", table),
		zap.Int("fetched", stats.Fetched),
		zap.Int("skipped", stats.Skipped))
}

func columnSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return set
}

// Row value coercions. lib/pq hands back text columns as []byte; the fake
// store used in tests hands back native Go values. Both are accepted.

func rowInt64(row store.Row, col string) (int64, error) {
	switch v := row[col].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("column %s: expected int64, got %T", col, row[col])
	}
}

func rowFloat(row store.Row, col string) (float64, error) {
	switch v := row[col].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("column %s: expected float64, got %T", col, row[col])
	}
}

func rowString(row store.Row, col string) (string, error) {
	switch v := row[col].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("column %s: expected string, got %T", col, row[col])
	}
}

func rowTime(row store.Row, col string) (time.Time, error) {
	switch v := row[col].(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTimeString(col, v)
	case []byte:
		return parseTimeString(col, string(v))
	default:
		return time.Time{}, fmt.Errorf("column %s: expected timestamp, got %T", col, row[col])
	}
}

func parseTimeString(col, s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("column %s: unparseable timestamp %q", col, s)
}

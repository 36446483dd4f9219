// Package models holds the immutable value records the engine materializes
// per query from the backing store. Nothing here is mutated after loading and
// nothing survives past the query that fetched it.
package models

import (
	"time"

	"github.com/kass/go-geoquery/pkg/geom"
)

// Trip is one ride record. Only the columns a query asked for are populated;
// the rest stay zero.
type Trip struct {
	Key         int64
	PickupLoc   geom.Point
	DropoffLoc  geom.Point
	PickupTime  time.Time
	DropoffTime time.Time
	Distance    float64
	Fare        float64
	Tip         float64
	TotalAmount float64
}

// Zone is a named administrative boundary.
type Zone struct {
	Key      int64
	Name     string
	Boundary geom.Polygon
}

// Building is a building footprint.
type Building struct {
	Key      int64
	Name     string
	Boundary geom.Polygon
}

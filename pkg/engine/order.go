package engine

import (
	"sort"
	"time"
)

// SortKey is one column of the canonical result order.
type SortKey struct {
	Column string
	Desc   bool
}

// OrderBy sorts the result by the given keys in order. Callers always pass
// the primary entity key ascending as the final key, which makes the order
// total and identical across runs and across the pushdown and fallback
// paths. Nil values sort last regardless of direction.
func (r *Result) OrderBy(keys ...SortKey) {
	sort.SliceStable(r.Rows, func(i, j int) bool {
		a, b := r.Rows[i], r.Rows[j]
		for _, k := range keys {
			c := compareNullable(a[k.Column], b[k.Column], k.Desc)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// compareNullable returns <0 when a sorts before b under the key direction.
func compareNullable(a, b any, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1 // nulls last, independent of direction
	case b == nil:
		return -1
	}
	c := compareValues(a, b)
	if desc {
		return -c
	}
	return c
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		return av.Compare(b.(time.Time))
	}
	return 0
}

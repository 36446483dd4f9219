package engine

import "time"

// Mean accumulates a running mean. The zero value is empty; an empty mean has
// no value, which callers surface as a null aggregate (never zero).
type Mean struct {
	n   int
	sum float64
}

// Add folds in one observation.
func (m *Mean) Add(v float64) {
	m.n++
	m.sum += v
}

// Value returns the mean and whether any observation was added.
func (m Mean) Value() (float64, bool) {
	if m.n == 0 {
		return 0, false
	}
	return m.sum / float64(m.n), true
}

// MonthStart truncates a timestamp to the start of its calendar month in UTC;
// the bucket start is the representative grouping key.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DurationSeconds is the derived trip duration aggregate input.
func DurationSeconds(pickup, dropoff time.Time) float64 {
	return dropoff.Sub(pickup).Seconds()
}

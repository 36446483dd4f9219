package engine

// Row is one output record. Values are int64, float64, string, time.Time or
// nil; nil means "no value" (a retained group with zero matches), which is
// distinct from zero.
type Row map[string]any

// Result is the uniform output contract of every query: an ordered row
// sequence with a fixed column set.
type Result struct {
	Columns []string
	Rows    []Row
}

// NewResult declares the output schema.
func NewResult(columns ...string) *Result {
	return &Result{Columns: columns}
}

// Append adds one row.
func (r *Result) Append(row Row) {
	r.Rows = append(r.Rows, row)
}

package domain

import (
	"math"
	"time"
)

// Fixed leading columns of every poll table.
const (
	ColumnDate     = "date"
	ColumnPollster = "pollster"
	ColumnSample   = "n"
)

// Value is a typed cell after numeric coercion; Valid is false for missing data.
type Value struct {
	Number float64
	Valid  bool
}

// Number builds a present value.
func Number(v float64) Value {
	return Value{Number: v, Valid: true}
}

// Missing returns the uniform representation of an absent observation.
func Missing() Value {
	return Value{}
}

// PollRecord is one row of the source table.
type PollRecord struct {
	Date     time.Time
	Pollster string
	Sample   Value
	Values   []Value
}

// HasDate reports whether the row carried a parseable date.
func (r PollRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// CleanedTable holds typed rows in source order together with the entity columns.
type CleanedTable struct {
	Entities []string
	Records  []PollRecord
}

// Header returns the flat column list: date, pollster, n, then the entities.
func (t CleanedTable) Header() []string {
	header := make([]string, 0, 3+len(t.Entities))
	header = append(header, ColumnDate, ColumnPollster, ColumnSample)
	return append(header, t.Entities...)
}

// Column returns the index of entity inside Values, or -1.
func (t CleanedTable) Column(entity string) int {
	for i, name := range t.Entities {
		if name == entity {
			return i
		}
	}
	return -1
}

// SeriesPoint is a single dated observation of one entity.
type SeriesPoint struct {
	Date   time.Time
	Offset int
	Value  float64
}

// EntitySeries is the date-sorted, non-missing observations of one entity.
// Offsets count whole days from the series' own first date.
type EntitySeries struct {
	Entity string
	Points []SeriesPoint
}

// Len returns the number of observations.
func (s EntitySeries) Len() int {
	return len(s.Points)
}

// Offsets returns the day offsets as float64 regression inputs.
func (s EntitySeries) Offsets() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = float64(p.Offset)
	}
	return out
}

// Values returns the observed values in series order.
func (s EntitySeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Trend method identifiers.
const (
	MethodMovingAverage   = "moving-average"
	MethodGaussianProcess = "gaussian-process"
)

// TrendPoint is one (date, center, dispersion) triple. Dispersion is NaN when undefined.
type TrendPoint struct {
	Date       time.Time
	Offset     int
	Center     float64
	Dispersion float64
}

// TrendEstimate is a smoothed view of one entity produced by one method.
type TrendEstimate struct {
	Entity string
	Method string
	Points []TrendPoint
}

// Band returns center -/+ k*dispersion for every point. Undefined dispersion yields NaN bounds.
func (e TrendEstimate) Band(k float64) (lower, upper []float64) {
	lower = make([]float64, len(e.Points))
	upper = make([]float64, len(e.Points))
	for i, p := range e.Points {
		if math.IsNaN(p.Dispersion) {
			lower[i], upper[i] = math.NaN(), math.NaN()
			continue
		}
		lower[i] = p.Center - k*p.Dispersion
		upper[i] = p.Center + k*p.Dispersion
	}
	return lower, upper
}

// EntityFailure records why one entity/method pair produced no estimate.
type EntityFailure struct {
	Entity string
	Method string
	Err    error
}

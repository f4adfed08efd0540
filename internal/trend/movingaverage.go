package trend

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"PollTrends/internal/domain"
)

// Default clipping quantiles.
const (
	DefaultClipLower = 0.01
	DefaultClipUpper = 0.99
)

var errTooFewDates = errors.New("need observations on at least 2 distinct dates")

// MovingAverage smooths a series on a daily calendar with a trailing window.
type MovingAverage struct {
	Window       int
	ClipOutliers bool
	ClipLower    float64
	ClipUpper    float64
}

var _ Estimator = (*MovingAverage)(nil)

// NewMovingAverage returns an estimator clipping to the 1st/99th percentile when clip is set.
func NewMovingAverage(window int, clip bool) *MovingAverage {
	return &MovingAverage{
		Window:       window,
		ClipOutliers: clip,
		ClipLower:    DefaultClipLower,
		ClipUpper:    DefaultClipUpper,
	}
}

// Name identifies the method inside the registry.
func (m *MovingAverage) Name() string {
	return domain.MethodMovingAverage
}

// Estimate returns one point per calendar day between the first and last observation.
// Center is the trailing-window mean and Dispersion its sample standard deviation,
// NaN while the window holds a single day.
func (m *MovingAverage) Estimate(series domain.EntitySeries) (domain.TrendEstimate, error) {
	if m.Window < 1 {
		return m.fail(series.Entity, fmt.Errorf("window size %d must be positive", m.Window))
	}
	if series.Len() == 0 {
		return m.fail(series.Entity, &domain.EmptySeriesError{Entity: series.Entity})
	}

	daily, err := dailyGrid(series)
	if err != nil {
		return m.fail(series.Entity, err)
	}

	if m.ClipOutliers {
		lower := quantile(daily, m.ClipLower)
		upper := quantile(daily, m.ClipUpper)
		for i, v := range daily {
			daily[i] = math.Min(math.Max(v, lower), upper)
		}
	}

	first := series.Points[0].Date
	points := make([]domain.TrendPoint, len(daily))
	for i := range daily {
		window := daily[max(0, i-m.Window+1) : i+1]

		center, err := stats.Mean(window)
		if err != nil {
			return m.fail(series.Entity, fmt.Errorf("day %d mean: %w", i, err))
		}

		dispersion := math.NaN()
		if len(window) > 1 {
			dispersion, err = stats.StandardDeviationSample(window)
			if err != nil {
				return m.fail(series.Entity, fmt.Errorf("day %d deviation: %w", i, err))
			}
		}

		points[i] = domain.TrendPoint{
			Date:       first.AddDate(0, 0, i),
			Offset:     i,
			Center:     center,
			Dispersion: dispersion,
		}
	}

	return domain.TrendEstimate{Entity: series.Entity, Method: m.Name(), Points: points}, nil
}

func (m *MovingAverage) fail(entity string, err error) (domain.TrendEstimate, error) {
	return domain.TrendEstimate{}, &domain.EstimationError{Entity: entity, Method: m.Name(), Cause: err}
}

// dailyGrid averages same-day observations and linearly interpolates the days between them.
func dailyGrid(series domain.EntitySeries) ([]float64, error) {
	span := series.Points[len(series.Points)-1].Offset + 1
	if span < 2 {
		return nil, errTooFewDates
	}

	sums := make([]float64, span)
	counts := make([]int, span)
	for _, p := range series.Points {
		sums[p.Offset] += p.Value
		counts[p.Offset]++
	}

	daily := make([]float64, span)
	prev := -1
	for day := 0; day < span; day++ {
		if counts[day] == 0 {
			continue
		}
		daily[day] = sums[day] / float64(counts[day])
		if prev >= 0 && day-prev > 1 {
			step := (daily[day] - daily[prev]) / float64(day-prev)
			for gap := prev + 1; gap < day; gap++ {
				daily[gap] = daily[prev] + step*float64(gap-prev)
			}
		}
		prev = day
	}
	return daily, nil
}

// quantile uses linear interpolation between closest ranks, h = (n-1)p.
func quantile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

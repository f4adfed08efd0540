// Package trend derives smoothed per-entity trends from a cleaned poll table.
package trend

import (
	"math"
	"sort"
	"time"

	"PollTrends/internal/domain"
)

// ExtractSeries selects the dated, non-missing observations of entity, sorted by date.
// Offsets are counted from the entity's own first observation.
func ExtractSeries(table domain.CleanedTable, entity string) (domain.EntitySeries, error) {
	col := table.Column(entity)
	if col < 0 {
		return domain.EntitySeries{}, domain.NewStructuralError("unknown entity column %q", entity)
	}

	points := make([]domain.SeriesPoint, 0, len(table.Records))
	for _, rec := range table.Records {
		if !rec.HasDate() || col >= len(rec.Values) {
			continue
		}
		v := rec.Values[col]
		if !v.Valid {
			continue
		}
		points = append(points, domain.SeriesPoint{Date: rec.Date, Value: v.Number})
	}

	if len(points) == 0 {
		return domain.EntitySeries{}, &domain.EmptySeriesError{Entity: entity}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	first := points[0].Date
	for i := range points {
		points[i].Offset = daysBetween(first, points[i].Date)
	}

	return domain.EntitySeries{Entity: entity, Points: points}, nil
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

package storage

import (
	"time"

	"PollTrends/internal/domain"
)

// TrendGrid is the calendar projection of one method: a row per day spanning
// every entity's range and a column per entity.
type TrendGrid struct {
	Entities []string
	Days     []time.Time
	Centers  [][]domain.Value
}

// NewTrendGrid builds the projection of estimates produced by method.
// Days outside an entity's own range are missing.
func NewTrendGrid(estimates []domain.TrendEstimate, method string) TrendGrid {
	var (
		grid       TrendGrid
		first, end time.Time
		selected   []domain.TrendEstimate
	)
	for _, e := range estimates {
		if e.Method != method || len(e.Points) == 0 {
			continue
		}
		selected = append(selected, e)
		grid.Entities = append(grid.Entities, e.Entity)
		lo, hi := e.Points[0].Date, e.Points[len(e.Points)-1].Date
		if first.IsZero() || lo.Before(first) {
			first = lo
		}
		if hi.After(end) {
			end = hi
		}
	}
	if len(selected) == 0 {
		return grid
	}

	index := make(map[int64]int)
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		index[d.Unix()] = len(grid.Days)
		grid.Days = append(grid.Days, d)
	}

	grid.Centers = make([][]domain.Value, len(grid.Days))
	for i := range grid.Centers {
		grid.Centers[i] = make([]domain.Value, len(selected))
	}
	for col, e := range selected {
		for _, p := range e.Points {
			if row, ok := index[p.Date.Unix()]; ok {
				grid.Centers[row][col] = domain.Number(p.Center)
			}
		}
	}
	return grid
}

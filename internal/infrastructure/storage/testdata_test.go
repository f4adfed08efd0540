package storage

import (
	"math"
	"time"

	"PollTrends/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2023, time.March, d, 0, 0, 0, 0, time.UTC)
}

func sampleTable() domain.CleanedTable {
	return domain.CleanedTable{
		Entities: []string{"Alpha", "Beta"},
		Records: []domain.PollRecord{
			{Date: day(1), Pollster: "Ipsos", Sample: domain.Number(1200), Values: []domain.Value{domain.Number(0.41), domain.Number(0.39)}},
			{Date: day(3), Pollster: "YouGov", Sample: domain.Missing(), Values: []domain.Value{domain.Missing(), domain.Number(0.4)}},
			{Pollster: "Undated", Sample: domain.Number(800), Values: []domain.Value{domain.Number(0.5), domain.Missing()}},
		},
	}
}

func sampleEstimates() []domain.TrendEstimate {
	return []domain.TrendEstimate{
		{
			Entity: "Alpha",
			Method: domain.MethodMovingAverage,
			Points: []domain.TrendPoint{
				{Date: day(1), Offset: 0, Center: 0.41, Dispersion: math.NaN()},
				{Date: day(2), Offset: 1, Center: 0.42, Dispersion: 0.01},
			},
		},
		{
			Entity: "Beta",
			Method: domain.MethodMovingAverage,
			Points: []domain.TrendPoint{
				{Date: day(2), Offset: 0, Center: 0.39, Dispersion: math.NaN()},
				{Date: day(3), Offset: 1, Center: 0.4, Dispersion: 0.02},
			},
		},
		{
			Entity: "Alpha",
			Method: domain.MethodGaussianProcess,
			Points: []domain.TrendPoint{
				{Date: day(1), Offset: 0, Center: 0.4, Dispersion: 0.03},
			},
		},
	}
}

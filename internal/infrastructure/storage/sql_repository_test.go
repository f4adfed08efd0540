package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PollTrends/internal/domain"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()

	ctx := context.Background()
	db, err := OpenDB(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLRepository(db, DriverSQLite)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := OpenDB(context.Background(), "mysql", "")
	require.Error(t, err)
}

func TestSQLRepositoryTableRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	require.NoError(t, repo.SaveTable(ctx, "run-1", sampleTable()))

	got, err := repo.LoadTable(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)

	_, err = repo.LoadTable(ctx, "missing")
	require.Error(t, err)
}

func TestSQLRepositoryRejectsDuplicateRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	require.NoError(t, repo.SaveTable(ctx, "run-1", sampleTable()))
	require.Error(t, repo.SaveTable(ctx, "run-1", sampleTable()))

	got, err := repo.LoadTable(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got.Records, 3)
}

func TestSQLRepositoryTrendsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)
	want := sampleEstimates()

	require.NoError(t, repo.SaveTrends(ctx, "run-1", want))

	got, err := repo.LoadTrends(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].Entity, got[i].Entity)
		assert.Equal(t, want[i].Method, got[i].Method)
		require.Len(t, got[i].Points, len(want[i].Points))
		for j, p := range want[i].Points {
			g := got[i].Points[j]
			assert.Equal(t, p.Date, g.Date)
			assert.Equal(t, p.Offset, g.Offset)
			assert.InDelta(t, p.Center, g.Center, 1e-12)
			if math.IsNaN(p.Dispersion) {
				assert.True(t, math.IsNaN(g.Dispersion))
			} else {
				assert.InDelta(t, p.Dispersion, g.Dispersion, 1e-12)
			}
		}
	}

	other, err := repo.LoadTrends(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLRepositorySavesLongTrend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	const days = 5000
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	est := domainEstimate("Alpha", days, start)

	require.NoError(t, repo.SaveTrends(ctx, "run-long", []domain.TrendEstimate{est}))

	got, err := repo.LoadTrends(ctx, "run-long")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Points, days)
	assert.Equal(t, start.AddDate(0, 0, days-1), got[0].Points[days-1].Date)
	assert.InDelta(t, 0.4, got[0].Points[days-1].Center, 1e-12)
}

func domainEstimate(entity string, days int, start time.Time) domain.TrendEstimate {
	points := make([]domain.TrendPoint, days)
	for i := range points {
		points[i] = domain.TrendPoint{Date: start.AddDate(0, 0, i), Offset: i, Center: 0.4, Dispersion: 0.01}
	}
	return domain.TrendEstimate{Entity: entity, Method: domain.MethodMovingAverage, Points: points}
}

func TestNewSQLRepositoryPlaceholders(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		DriverPostgres: "INSERT INTO poll_runs (id,created_at) VALUES ($1,$2)",
		DriverSQLite:   "INSERT INTO poll_runs (id,created_at) VALUES (?,?)",
	}
	for driver, want := range cases {
		repo := NewSQLRepository(nil, driver)
		query, args, err := repo.builder.Insert("poll_runs").Columns("id", "created_at").Values("run", "now").ToSql()
		require.NoError(t, err)
		assert.Equal(t, want, query, driver)
		assert.Len(t, args, 2)
	}
}

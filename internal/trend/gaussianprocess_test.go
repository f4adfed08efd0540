package trend

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PollTrends/internal/domain"
)

func TestMaternClosedForms(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{0, 0.3, 1, 2.5} {
		assert.InDelta(t, math.Exp(-r), matern(r, 0.5), 1e-12, "nu=0.5 r=%v", r)

		s3 := math.Sqrt(3) * r
		assert.InDelta(t, (1+s3)*math.Exp(-s3), matern(r, 1.5), 1e-12, "nu=1.5 r=%v", r)

		s5 := math.Sqrt(5) * r
		assert.InDelta(t, (1+s5+s5*s5/3)*math.Exp(-s5), matern(r, 2.5), 1e-12, "nu=2.5 r=%v", r)

		assert.InDelta(t, math.Exp(-0.5*r*r), matern(r, math.Inf(1)), 1e-12, "rbf r=%v", r)
	}

	assert.InDelta(t, 1, matern(0, 5.5), 1e-12)
	assert.Less(t, matern(2, 5.5), matern(1, 5.5))
}

func TestMaternCoefficients(t *testing.T) {
	t.Parallel()

	got := maternCoefficients(2.5)
	require.Len(t, got, 3)
	assert.InDelta(t, 1.0/12, got[0], 1e-15)
	assert.InDelta(t, 0.5, got[1], 1e-15)
	assert.InDelta(t, 1, got[2], 1e-15)

	assert.Nil(t, maternCoefficients(math.Inf(1)))
}

func TestNewKernelMatchesLazyKernel(t *testing.T) {
	t.Parallel()

	cached := NewKernel(0.7, 12, 5.5)
	lazy := Kernel{Amplitude: 0.7, LengthScale: 12, Nu: 5.5}
	for _, d := range []float64{0, -3, 7.5, 40, 365} {
		assert.InDelta(t, lazy.At(d), cached.At(d), 1e-15, "d=%v", d)
		assert.InDelta(t, 0.7*matern(math.Abs(d)/12, 5.5), cached.At(d), 1e-15, "d=%v", d)
	}
}

func TestValidateNu(t *testing.T) {
	t.Parallel()

	for _, nu := range []float64{0.5, 1.5, 5.5, math.Inf(1)} {
		assert.NoError(t, validateNu(nu))
	}
	for _, nu := range []float64{0, -0.5, 1, 2.2} {
		assert.Error(t, validateNu(nu))
	}
}

func trendSeries() domain.EntitySeries {
	offsets := []int{0, 1, 2, 4, 5, 7, 8, 9, 12, 14}
	values := []float64{0.30, 0.32, 0.31, 0.35, 0.36, 0.40, 0.41, 0.40, 0.44, 0.47}
	return seriesOf("Bulstrode", offsets, values)
}

func TestGaussianProcessEstimate(t *testing.T) {
	t.Parallel()

	series := trendSeries()
	est, err := NewGaussianProcess().Estimate(series)
	require.NoError(t, err)

	require.Len(t, est.Points, series.Len())
	assert.Equal(t, domain.MethodGaussianProcess, est.Method)
	assert.Equal(t, "Bulstrode", est.Entity)

	for i, p := range est.Points {
		assert.Equal(t, series.Points[i].Offset, p.Offset)
		assert.Equal(t, series.Points[i].Date, p.Date)
		assert.InDelta(t, series.Points[i].Value, p.Center, 0.1)
		assert.GreaterOrEqual(t, p.Dispersion, 0.0)
		assert.False(t, math.IsNaN(p.Dispersion))
	}
	assert.Greater(t, est.Points[len(est.Points)-1].Center, est.Points[0].Center)
}

func TestGaussianProcessDeterministicForSeed(t *testing.T) {
	t.Parallel()

	series := trendSeries()
	gp := NewGaussianProcess()
	gp.Seed = 7

	first, err := gp.Fit(series.Offsets(), series.Values())
	require.NoError(t, err)
	second, err := gp.Fit(series.Offsets(), series.Values())
	require.NoError(t, err)

	assert.InDelta(t, first.Params.Amplitude, second.Params.Amplitude, 1e-9)
	assert.InDelta(t, first.Params.LengthScale, second.Params.LengthScale, 1e-9)
	assert.InDelta(t, first.Params.LogMarginalLikelihood, second.Params.LogMarginalLikelihood, 1e-9)

	bounds := gp.LengthScaleBounds
	assert.GreaterOrEqual(t, first.Params.LengthScale, bounds.Lower)
	assert.LessOrEqual(t, first.Params.LengthScale, bounds.Upper)
}

func TestGaussianProcessRestartsNeverWorsenFit(t *testing.T) {
	t.Parallel()

	series := trendSeries()

	single := NewGaussianProcess()
	single.Restarts = 0
	base, err := single.Fit(series.Offsets(), series.Values())
	require.NoError(t, err)

	restarted, err := NewGaussianProcess().Fit(series.Offsets(), series.Values())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, restarted.Params.LogMarginalLikelihood, base.Params.LogMarginalLikelihood-1e-9)
}

func TestGaussianProcessRBFAndSinglePoint(t *testing.T) {
	t.Parallel()

	gp := NewGaussianProcess()
	gp.Nu = math.Inf(1)
	gp.Restarts = 2

	est, err := gp.Estimate(seriesOf("Lydgate", []int{0}, []float64{0.25}))
	require.NoError(t, err)
	require.Len(t, est.Points, 1)
	assert.False(t, math.IsNaN(est.Points[0].Center))
}

func TestGaussianProcessFailures(t *testing.T) {
	t.Parallel()

	_, err := NewGaussianProcess().Estimate(domain.EntitySeries{Entity: "Vincy"})
	var estErr *domain.EstimationError
	require.True(t, errors.As(err, &estErr))
	assert.Equal(t, "Vincy", estErr.Entity)
	assert.Equal(t, domain.MethodGaussianProcess, estErr.Method)

	gp := NewGaussianProcess()
	gp.Nu = 2
	_, err = gp.Estimate(trendSeries())
	require.True(t, errors.As(err, &estErr))

	_, err = NewGaussianProcess().Fit([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

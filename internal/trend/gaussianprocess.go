package trend

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"PollTrends/internal/domain"
)

// Bounds is a closed positive interval for one hyperparameter.
type Bounds struct {
	Lower float64
	Upper float64
}

// Hyperparameters are the kernel parameters selected by Fit.
type Hyperparameters struct {
	Amplitude             float64
	LengthScale           float64
	LogMarginalLikelihood float64
}

// GaussianProcess regresses a series on its day offsets.
type GaussianProcess struct {
	Nu                float64
	Alpha             float64
	Restarts          int
	Seed              uint64
	MaxIterations     int
	AmplitudeInit     float64
	AmplitudeBounds   Bounds
	LengthScaleInit   float64
	LengthScaleBounds Bounds
}

var _ Estimator = (*GaussianProcess)(nil)

// failedFit stands in for the negative log likelihood of a non positive-definite covariance.
const failedFit = 1e300

var errNotPositiveDefinite = errors.New("covariance matrix is not positive definite")

// NewGaussianProcess returns a Matern(nu=5.5) regressor with 10 restarts and alpha 1e-3.
func NewGaussianProcess() *GaussianProcess {
	return &GaussianProcess{
		Nu:                5.5,
		Alpha:             1e-3,
		Restarts:          10,
		MaxIterations:     400,
		AmplitudeInit:     1,
		AmplitudeBounds:   Bounds{Lower: 1e-3, Upper: 1e3},
		LengthScaleInit:   1,
		LengthScaleBounds: Bounds{Lower: 1e-2, Upper: 1e5},
	}
}

// Name identifies the method inside the registry.
func (g *GaussianProcess) Name() string {
	return domain.MethodGaussianProcess
}

// Estimate fits the series and predicts at its own offsets.
func (g *GaussianProcess) Estimate(series domain.EntitySeries) (domain.TrendEstimate, error) {
	if series.Len() == 0 {
		return g.fail(series.Entity, &domain.EmptySeriesError{Entity: series.Entity})
	}

	x := series.Offsets()
	model, err := g.Fit(x, series.Values())
	if err != nil {
		return g.fail(series.Entity, fmt.Errorf("fit: %w", err))
	}

	mean, std, err := model.Predict(x)
	if err != nil {
		return g.fail(series.Entity, fmt.Errorf("predict: %w", err))
	}

	points := make([]domain.TrendPoint, len(x))
	for i, p := range series.Points {
		points[i] = domain.TrendPoint{
			Date:       p.Date,
			Offset:     p.Offset,
			Center:     mean[i],
			Dispersion: std[i],
		}
	}
	return domain.TrendEstimate{Entity: series.Entity, Method: g.Name(), Points: points}, nil
}

func (g *GaussianProcess) fail(entity string, err error) (domain.TrendEstimate, error) {
	return domain.TrendEstimate{}, &domain.EstimationError{Entity: entity, Method: g.Name(), Cause: err}
}

// Fit maximises the log marginal likelihood, first from the initial
// hyperparameters and then from Restarts random points inside the bounds.
func (g *GaussianProcess) Fit(x, y []float64) (*Model, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("got %d inputs and %d targets", len(x), len(y))
	}
	if err := validateNu(g.Nu); err != nil {
		return nil, err
	}
	if g.AmplitudeInit <= 0 || g.LengthScaleInit <= 0 {
		return nil, fmt.Errorf("initial amplitude %v and length scale %v must be positive", g.AmplitudeInit, g.LengthScaleInit)
	}
	if g.Alpha < 0 || g.Restarts < 0 {
		return nil, fmt.Errorf("alpha %v and restarts %d must not be negative", g.Alpha, g.Restarts)
	}

	space, err := newParamSpace(g.AmplitudeBounds, g.LengthScaleBounds)
	if err != nil {
		return nil, err
	}

	coefs := maternCoefficients(g.Nu)
	objective := func(u []float64) float64 {
		amp, ls := space.decode(u)
		kernel := Kernel{Amplitude: amp, LengthScale: ls, Nu: g.Nu, coefs: coefs}
		lml, _, _, err := logMarginalLikelihood(kernel, x, y, g.Alpha)
		if err != nil || math.IsNaN(lml) {
			return failedFit
		}
		return -lml
	}

	starts := [][]float64{space.encode(g.AmplitudeInit, g.LengthScaleInit)}
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed^0x9e3779b97f4a7c15))
	for i := 0; i < g.Restarts; i++ {
		starts = append(starts, space.random(rng))
	}

	settings := &optimize.Settings{
		MajorIterations: g.MaxIterations,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Iterations: 40},
	}

	best := math.Inf(1)
	var bestU []float64
	for _, start := range starts {
		result, err := optimize.Minimize(optimize.Problem{Func: objective}, start, settings, &optimize.NelderMead{})
		if result == nil || math.IsNaN(result.F) {
			continue
		}
		if err != nil && result.F >= failedFit {
			continue
		}
		if result.F < best {
			best = result.F
			bestU = append([]float64(nil), result.X...)
		}
	}
	if bestU == nil || best >= failedFit {
		return nil, errors.New("hyperparameter search found no positive-definite covariance")
	}

	amp, ls := space.decode(bestU)
	kernel := NewKernel(amp, ls, g.Nu)
	lml, chol, weights, err := logMarginalLikelihood(kernel, x, y, g.Alpha)
	if err != nil {
		return nil, err
	}

	return &Model{
		kernel:  kernel,
		x:       append([]float64(nil), x...),
		chol:    chol,
		weights: weights,
		Params:  Hyperparameters{Amplitude: amp, LengthScale: ls, LogMarginalLikelihood: lml},
	}, nil
}

// Model is a fitted Gaussian process.
type Model struct {
	kernel  Kernel
	x       []float64
	chol    *mat.Cholesky
	weights *mat.VecDense
	Params  Hyperparameters
}

// Predict returns the posterior mean and standard deviation at xs.
func (m *Model) Predict(xs []float64) (mean, std []float64, err error) {
	n, q := len(m.x), len(xs)
	if q == 0 {
		return nil, nil, nil
	}

	cross := mat.NewDense(n, q, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < q; j++ {
			cross.Set(i, j, m.kernel.At(m.x[i]-xs[j]))
		}
	}

	var mu mat.VecDense
	mu.MulVec(cross.T(), m.weights)

	var solved mat.Dense
	if err := m.chol.SolveTo(&solved, cross); err != nil && !isCondition(err) {
		return nil, nil, fmt.Errorf("solve predictive variance: %w", err)
	}

	prior := m.kernel.At(0)
	mean = make([]float64, q)
	std = make([]float64, q)
	for j := 0; j < q; j++ {
		explained := 0.0
		for i := 0; i < n; i++ {
			explained += cross.At(i, j) * solved.At(i, j)
		}
		mean[j] = mu.AtVec(j)
		std[j] = math.Sqrt(math.Max(prior-explained, 0))
	}
	return mean, std, nil
}

func logMarginalLikelihood(k Kernel, x, y []float64, alpha float64) (float64, *mat.Cholesky, *mat.VecDense, error) {
	n := len(x)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := k.At(x[i] - x[j])
			if i == j {
				v += alpha
			}
			cov.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return 0, nil, nil, errNotPositiveDefinite
	}

	target := mat.NewVecDense(n, append([]float64(nil), y...))
	weights := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(weights, target); err != nil && !isCondition(err) {
		return 0, nil, nil, err
	}

	lml := -0.5*mat.Dot(target, weights) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
	return lml, &chol, weights, nil
}

func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}

// paramSpace maps unconstrained optimizer coordinates onto bounded log-hyperparameters.
type paramSpace struct {
	lo [2]float64
	hi [2]float64
}

func newParamSpace(amplitude, lengthScale Bounds) (paramSpace, error) {
	var s paramSpace
	for i, b := range []Bounds{amplitude, lengthScale} {
		if b.Lower <= 0 || b.Upper <= b.Lower {
			return s, fmt.Errorf("invalid hyperparameter bounds [%v, %v]", b.Lower, b.Upper)
		}
		s.lo[i], s.hi[i] = math.Log(b.Lower), math.Log(b.Upper)
	}
	return s, nil
}

func (s paramSpace) decode(u []float64) (amplitude, lengthScale float64) {
	return s.value(0, u[0]), s.value(1, u[1])
}

func (s paramSpace) value(i int, u float64) float64 {
	return math.Exp(s.lo[i] + (s.hi[i]-s.lo[i])/(1+math.Exp(-u)))
}

func (s paramSpace) encode(amplitude, lengthScale float64) []float64 {
	u := make([]float64, 2)
	for i, v := range []float64{amplitude, lengthScale} {
		frac := (math.Log(v) - s.lo[i]) / (s.hi[i] - s.lo[i])
		u[i] = logit(frac)
	}
	return u
}

func (s paramSpace) random(rng *rand.Rand) []float64 {
	return []float64{logit(rng.Float64()), logit(rng.Float64())}
}

func logit(frac float64) float64 {
	frac = math.Min(math.Max(frac, 1e-6), 1-1e-6)
	return math.Log(frac / (1 - frac))
}

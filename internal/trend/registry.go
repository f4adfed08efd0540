package trend

import (
	"fmt"

	"PollTrends/internal/domain"
)

// Estimator is a single smoothing strategy (moving average, Gaussian process).
type Estimator interface {
	Name() string
	Estimate(series domain.EntitySeries) (domain.TrendEstimate, error)
}

// Registry keeps a mapping from method names to estimators.
type Registry struct {
	estimators map[string]Estimator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{estimators: map[string]Estimator{}}
}

// Register adds or replaces an estimator.
func (r *Registry) Register(estimator Estimator) {
	if r.estimators == nil {
		r.estimators = map[string]Estimator{}
	}
	r.estimators[estimator.Name()] = estimator
}

// Resolve returns an estimator by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Estimator, error) {
	if estimator, ok := r.estimators[name]; ok {
		return estimator, nil
	}
	return nil, fmt.Errorf("trend method %s is not registered", name)
}

// ResolveAll resolves names in order.
func (r *Registry) ResolveAll(names []string) ([]Estimator, error) {
	out := make([]Estimator, 0, len(names))
	for _, name := range names {
		estimator, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, estimator)
	}
	return out, nil
}

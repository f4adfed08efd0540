package trend

import (
	"fmt"
	"math"
)

// Kernel is Amplitude * Matern(LengthScale, Nu). Nu must be a positive
// half-integer; +Inf selects the squared-exponential (RBF) limit.
// Build it with NewKernel so the Matern polynomial is computed once.
type Kernel struct {
	Amplitude   float64
	LengthScale float64
	Nu          float64

	coefs []float64
}

// NewKernel returns a kernel with its Matern coefficients precomputed.
func NewKernel(amplitude, lengthScale, nu float64) Kernel {
	return Kernel{Amplitude: amplitude, LengthScale: lengthScale, Nu: nu, coefs: maternCoefficients(nu)}
}

// At evaluates the covariance of two inputs d apart.
func (k Kernel) At(d float64) float64 {
	r := math.Abs(d) / k.LengthScale
	coefs := k.coefs
	if coefs == nil {
		coefs = maternCoefficients(k.Nu)
	}
	return k.Amplitude * maternWith(r, k.Nu, coefs)
}

func validateNu(nu float64) error {
	if math.IsInf(nu, 1) {
		return nil
	}
	if nu <= 0 || math.Mod(nu-0.5, 1) != 0 {
		return fmt.Errorf("matern nu %v must be a positive half-integer or +Inf", nu)
	}
	return nil
}

// maternCoefficients returns c_i = p!/(2p)! * (p+i)!/(i!(p-i)!) for nu = p + 1/2,
// highest power of 2s first. It is nil for the RBF limit.
func maternCoefficients(nu float64) []float64 {
	if math.IsInf(nu, 1) {
		return nil
	}
	p := int(nu - 0.5)
	scale := factorial(p) / factorial(2*p)
	coefs := make([]float64, p+1)
	for i := range coefs {
		coefs[i] = scale * factorial(p+i) / (factorial(i) * factorial(p-i))
	}
	return coefs
}

func matern(r, nu float64) float64 {
	return maternWith(r, nu, maternCoefficients(nu))
}

// maternWith evaluates exp(-s) * sum_i c_i (2s)^(p-i), s = sqrt(2nu)*r, by Horner's rule.
func maternWith(r, nu float64, coefs []float64) float64 {
	if math.IsInf(nu, 1) {
		return math.Exp(-0.5 * r * r)
	}

	s := math.Sqrt(2*nu) * r
	var poly float64
	for _, c := range coefs {
		poly = poly*2*s + c
	}
	return math.Exp(-s) * poly
}

func factorial(n int) float64 {
	return math.Gamma(float64(n + 1))
}

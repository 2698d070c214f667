// Package raymath implements the ray (1e27) fixed-point arithmetic used by
// the Morpho/Aave family of interest-rate models. All operations run through
// a big.Int wide accumulator before rescaling, so intermediate products never
// overflow, and results are rounded half-up to match on-chain rounding.
package raymath

import (
	"errors"
	"math/big"
)

// ErrDivisionByZero is returned when a divide receives a zero divisor.
// Callers guard against it; reaching it indicates a broken invariant.
var ErrDivisionByZero = errors.New("raymath: division by zero")

var (
	// Ray is the fixed-point unit, 10^27.
	Ray = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

	// HalfRay is Ray/2, the rounding addend for ray-scaled divisions.
	HalfRay = new(big.Int).Rsh(Ray, 1)

	// MaxBps is the basis-point denominator (100%).
	MaxBps = big.NewInt(10_000)

	halfBps = big.NewInt(5_000)
)

// Mul computes round(a*b / Ray).
func Mul(a, b *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	out.Add(out, HalfRay)
	return out.Quo(out, Ray)
}

// Div computes round(a*Ray / b).
func Div(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	out := new(big.Int).Mul(a, Ray)
	half := new(big.Int).Rsh(b, 1)
	out.Add(out, half)
	return out.Quo(out, b), nil
}

// Min returns the lesser of a and b. Used to clamp proportions at one ray.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// PercentMul computes round(a*bps / 10000).
func PercentMul(a *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(a, new(big.Int).SetUint64(bps))
	out.Add(out, halfBps)
	return out.Quo(out, MaxBps)
}

// WeightedAvgBps blends a toward b by weight basis points: weight 0 yields a,
// 10000 yields b.
func WeightedAvgBps(a, b *big.Int, weightBps uint64) *big.Int {
	if weightBps > 10_000 {
		weightBps = 10_000
	}
	out := new(big.Int).Mul(a, new(big.Int).SetUint64(10_000-weightBps))
	tail := new(big.Int).Mul(b, new(big.Int).SetUint64(weightBps))
	out.Add(out, tail)
	out.Add(out, halfBps)
	return out.Quo(out, MaxBps)
}

// FromUnits returns n whole ray units (n * 10^27) for fixtures and literals.
func FromUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Ray)
}

// FromFraction returns num/den scaled to ray. Panics on a zero denominator;
// it exists for declaring constants and test fixtures, not runtime math.
func FromFraction(num, den int64) *big.Int {
	if den == 0 {
		panic("raymath: zero denominator in FromFraction")
	}
	out := new(big.Int).Mul(big.NewInt(num), Ray)
	return out.Quo(out, big.NewInt(den))
}

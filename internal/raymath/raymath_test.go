package raymath_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/austinjfi/mmi-defi-adapters/internal/raymath"
)

func TestMul_Identity(t *testing.T) {
	a := raymath.FromUnits(42)
	got := raymath.Mul(a, raymath.Ray)
	if got.Cmp(a) != 0 {
		t.Errorf("Mul(a, Ray) = %s, want %s", got, a)
	}
}

func TestMul_Rounding(t *testing.T) {
	// 1.5 * 1.5 = 2.25
	a := raymath.FromFraction(3, 2)
	got := raymath.Mul(a, a)
	want := raymath.FromFraction(9, 4)
	if got.Cmp(want) != 0 {
		t.Errorf("Mul(1.5, 1.5) = %s, want %s", got, want)
	}

	// Half-up: 1 wei-ray times 0.5 ray rounds up to 1.
	got = raymath.Mul(big.NewInt(1), raymath.HalfRay)
	if got.Int64() != 1 {
		t.Errorf("Mul(1, 0.5 ray) = %s, want 1 (round half up)", got)
	}
}

func TestDiv_ZeroDivisor(t *testing.T) {
	_, err := raymath.Div(raymath.Ray, big.NewInt(0))
	if !errors.Is(err, raymath.ErrDivisionByZero) {
		t.Fatalf("Div by zero: err = %v, want ErrDivisionByZero", err)
	}
}

func TestDiv_Exact(t *testing.T) {
	got, err := raymath.Div(raymath.FromUnits(6), raymath.FromUnits(3))
	if err != nil {
		t.Fatal(err)
	}
	if want := raymath.FromUnits(2); got.Cmp(want) != 0 {
		t.Errorf("Div(6, 3) = %s, want %s", got, want)
	}
}

// Div(Mul(a, b), b) must land within one unit of a.
func TestMulDiv_RoundTrip(t *testing.T) {
	one := big.NewInt(1)
	pairs := [][2]*big.Int{
		{raymath.FromUnits(1), raymath.FromUnits(1)},
		{raymath.FromFraction(1, 3), raymath.FromFraction(7, 11)},
		{big.NewInt(12345), raymath.FromFraction(999, 1000)},
		{raymath.FromUnits(1_000_000), raymath.FromFraction(105, 100)},
		{new(big.Int).Sub(raymath.Ray, one), new(big.Int).Add(raymath.Ray, one)},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		prod := raymath.Mul(a, b)
		got, err := raymath.Div(prod, b)
		if err != nil {
			t.Fatalf("Div(%s, %s): %v", prod, b, err)
		}
		diff := new(big.Int).Sub(got, a)
		if diff.CmpAbs(one) > 0 {
			t.Errorf("round trip a=%s b=%s: got %s (off by %s)", a, b, got, diff)
		}
	}
}

func TestMin(t *testing.T) {
	a := raymath.FromUnits(3)
	b := raymath.FromUnits(7)

	if got := raymath.Min(a, b); got.Cmp(a) != 0 {
		t.Errorf("Min(3, 7) = %s, want 3", got)
	}
	// Commutative.
	if got := raymath.Min(b, a); got.Cmp(a) != 0 {
		t.Errorf("Min(7, 3) = %s, want 3", got)
	}
	// Idempotent.
	if got := raymath.Min(a, a); got.Cmp(a) != 0 {
		t.Errorf("Min(a, a) = %s, want a", got)
	}
	// Result is a copy, not an alias.
	got := raymath.Min(a, b)
	got.Add(got, big.NewInt(1))
	if a.Cmp(raymath.FromUnits(3)) != 0 {
		t.Error("Min must not alias its arguments")
	}
}

func TestPercentMul(t *testing.T) {
	// 10% of 1 ray.
	got := raymath.PercentMul(raymath.Ray, 1000)
	if want := raymath.FromFraction(1, 10); got.Cmp(want) != 0 {
		t.Errorf("PercentMul(1 ray, 1000 bps) = %s, want %s", got, want)
	}
	// 100% is identity.
	got = raymath.PercentMul(raymath.FromUnits(9), 10_000)
	if want := raymath.FromUnits(9); got.Cmp(want) != 0 {
		t.Errorf("PercentMul(9 ray, 10000 bps) = %s, want %s", got, want)
	}
}

func TestWeightedAvgBps(t *testing.T) {
	a := raymath.FromUnits(2)
	b := raymath.FromUnits(4)

	cases := []struct {
		weight uint64
		want   *big.Int
	}{
		{0, a},
		{10_000, b},
		{5_000, raymath.FromUnits(3)},
		{2_500, raymath.FromFraction(5, 2)},
	}
	for _, tc := range cases {
		if got := raymath.WeightedAvgBps(a, b, tc.weight); got.Cmp(tc.want) != 0 {
			t.Errorf("WeightedAvgBps(2, 4, %d) = %s, want %s", tc.weight, got, tc.want)
		}
	}
}

package morpho

import (
	"math/big"

	"github.com/austinjfi/mmi-defi-adapters/internal/raymath"
)

// P2PSupplyRate derives the annualized peer-matched supply rate, ray-scaled
// per year, from the snapshot's pool rates. It mirrors the index update:
// cursor blend, reserve-factor skim, then idle and supply-delta proportions
// pulling the rate back toward the raw pool rate (peer liquidity sitting on
// the pool earns the pool rate, idle liquidity likewise).
func P2PSupplyRate(s *MarketSnapshot, indexes P2PIndexes) (*big.Int, error) {
	net := netP2PRate(s)

	proportionIdle, err := ProportionIdle(s)
	if err != nil {
		return nil, err
	}
	cap := new(big.Int).Sub(raymath.Ray, proportionIdle)
	proportionDelta, err := deltaProportion(s.Deltas.Supply, s.PoolSupplyIndex, indexes.Supply, cap)
	if err != nil {
		return nil, err
	}

	onPool := new(big.Int).Add(proportionIdle, proportionDelta)
	matched := new(big.Int).Sub(raymath.Ray, onPool)

	rate := raymath.Mul(matched, net)
	rate.Add(rate, raymath.Mul(onPool, s.PoolSupplyRate))
	return rate, nil
}

// P2PBorrowRate derives the annualized peer-matched borrow rate. Borrow-side
// delta liquidity accrues the pool borrow rate; there is no idle on the
// borrow side.
func P2PBorrowRate(s *MarketSnapshot, indexes P2PIndexes) (*big.Int, error) {
	net := netP2PRate(s)

	proportionDelta, err := deltaProportion(s.Deltas.Borrow, s.PoolBorrowIndex, indexes.Borrow, raymath.Ray)
	if err != nil {
		return nil, err
	}

	matched := new(big.Int).Sub(raymath.Ray, proportionDelta)
	rate := raymath.Mul(matched, net)
	rate.Add(rate, raymath.Mul(proportionDelta, s.PoolBorrowRate))
	return rate, nil
}

// netP2PRate blends the pool supply and borrow rates by the cursor and skims
// the reserve factor, the rate-space counterpart of p2pGrowthFactor.
func netP2PRate(s *MarketSnapshot) *big.Int {
	reserveFactorBps := s.ReserveFactorBps
	if reserveFactorBps > 10_000 {
		reserveFactorBps = 10_000
	}
	blended := raymath.WeightedAvgBps(s.PoolSupplyRate, s.PoolBorrowRate, s.P2PIndexCursorBps)
	return raymath.PercentMul(blended, 10_000-reserveFactorBps)
}

// deltaProportion is the share of the peer-matched total that the scaled
// delta represents, in current underlying units, clamped to cap. A market
// with no peer-matched principal has no delta proportion.
func deltaProportion(side SideDelta, poolIndex, p2pIndex, cap *big.Int) (*big.Int, error) {
	if side.ScaledP2PTotal == nil || side.ScaledP2PTotal.Sign() == 0 {
		return new(big.Int), nil
	}
	if side.ScaledDelta == nil || side.ScaledDelta.Sign() == 0 {
		return new(big.Int), nil
	}

	denominator := raymath.Mul(side.ScaledP2PTotal, p2pIndex)
	if denominator.Sign() == 0 {
		return new(big.Int), nil
	}
	proportion, err := raymath.Div(raymath.Mul(side.ScaledDelta, poolIndex), denominator)
	if err != nil {
		return nil, err
	}
	return raymath.Min(proportion, cap), nil
}

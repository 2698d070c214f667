package morpho

import (
	"math/big"

	"github.com/austinjfi/mmi-defi-adapters/internal/raymath"
)

// P2PIndexes are freshly computed peer-matched indexes for both sides.
type P2PIndexes struct {
	Supply *big.Int
	Borrow *big.Int
}

// ComputeP2PIndexes advances the stored P2P indexes to the snapshot's block.
//
// Per side: the pool index growth since the last accrual is blended across
// the supply and borrow sides by the p2pIndexCursor (0 = pool supply rate,
// 10000 = pool borrow rate), the reserve factor is skimmed off the blended
// growth, and the net factor is applied multiplicatively to the previous P2P
// index. On the supply side idle liquidity earns the pool rate instead of
// the peer rate, weighted by its proportion of the peer-matched total.
func ComputeP2PIndexes(s *MarketSnapshot) (P2PIndexes, error) {
	supplyGrowth, err := growthFactor(s.PoolSupplyIndex, s.LastIndexes.Supply.Pool)
	if err != nil {
		return P2PIndexes{}, err
	}
	borrowGrowth, err := growthFactor(s.PoolBorrowIndex, s.LastIndexes.Borrow.Pool)
	if err != nil {
		return P2PIndexes{}, err
	}

	p2pFactor := p2pGrowthFactor(supplyGrowth, borrowGrowth, s.P2PIndexCursorBps, s.ReserveFactorBps)

	proportionIdle, err := ProportionIdle(s)
	if err != nil {
		return P2PIndexes{}, err
	}

	// Idle liquidity passes through the pool growth instead of the peer
	// growth; with no idle this collapses to the plain P2P factor.
	matched := new(big.Int).Sub(raymath.Ray, proportionIdle)
	supplyFactor := raymath.Mul(matched, p2pFactor)
	supplyFactor.Add(supplyFactor, raymath.Mul(proportionIdle, supplyGrowth))

	return P2PIndexes{
		Supply: raymath.Mul(s.LastIndexes.Supply.P2P, supplyFactor),
		Borrow: raymath.Mul(s.LastIndexes.Borrow.P2P, p2pFactor),
	}, nil
}

// ProportionIdle is the share of the supply-side peer-matched total that sits
// idle, clamped to one ray so rounding can never report more than 100%.
// A market with no peer-matched principal has no idle proportion.
func ProportionIdle(s *MarketSnapshot) (*big.Int, error) {
	total := s.Deltas.Supply.ScaledP2PTotal
	if total == nil || total.Sign() == 0 {
		return new(big.Int), nil
	}
	if s.IdleSupply == nil || s.IdleSupply.Sign() == 0 {
		return new(big.Int), nil
	}

	denominator := raymath.Mul(total, s.LastIndexes.Supply.P2P)
	if denominator.Sign() == 0 {
		return new(big.Int), nil
	}
	proportion, err := raymath.Div(s.IdleSupply, denominator)
	if err != nil {
		return nil, err
	}
	return raymath.Min(proportion, raymath.Ray), nil
}

// growthFactor is the ray ratio of the current pool index to the stored one.
func growthFactor(current, previous *big.Int) (*big.Int, error) {
	return raymath.Div(current, previous)
}

// p2pGrowthFactor blends the two pool growth factors by the cursor and skims
// the reserve factor from the blended growth, returning the net ray factor.
func p2pGrowthFactor(supplyGrowth, borrowGrowth *big.Int, cursorBps, reserveFactorBps uint64) *big.Int {
	if reserveFactorBps > 10_000 {
		reserveFactorBps = 10_000
	}
	supplyDelta := new(big.Int).Sub(supplyGrowth, raymath.Ray)
	borrowDelta := new(big.Int).Sub(borrowGrowth, raymath.Ray)

	blended := raymath.WeightedAvgBps(supplyDelta, borrowDelta, cursorBps)
	net := raymath.PercentMul(blended, 10_000-reserveFactorBps)

	return net.Add(net, raymath.Ray)
}

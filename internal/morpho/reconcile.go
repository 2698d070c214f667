package morpho

import (
	"math/big"

	"github.com/austinjfi/mmi-defi-adapters/internal/raymath"
)

// TotalSupply is the market's total economic supply in underlying units:
// the peer-matched scaled total at the fresh P2P index plus whatever the
// protocol holds on the pool.
func TotalSupply(s *MarketSnapshot, indexes P2PIndexes) *big.Int {
	total := raymath.Mul(s.Deltas.Supply.ScaledP2PTotal, indexes.Supply)
	return total.Add(total, s.PoolSupplyBalance)
}

// TotalBorrow is the market's total economic borrow in underlying units.
func TotalBorrow(s *MarketSnapshot, indexes P2PIndexes) *big.Int {
	total := raymath.Mul(s.Deltas.Borrow.ScaledP2PTotal, indexes.Borrow)
	return total.Add(total, s.PoolBorrowBalance)
}

// BlendedRate is the amount-weighted average of the peer and pool rates.
// With no participants it returns the undiluted pool rate rather than
// dividing by zero, matching protocol behavior for an empty market.
func BlendedRate(p2pRate, poolRate, p2pAmount, poolAmount *big.Int) *big.Int {
	total := new(big.Int).Add(p2pAmount, poolAmount)
	if total.Sign() == 0 {
		return new(big.Int).Set(poolRate)
	}

	weighted := new(big.Int).Mul(p2pRate, p2pAmount)
	weighted.Add(weighted, new(big.Int).Mul(poolRate, poolAmount))
	weighted.Add(weighted, new(big.Int).Rsh(total, 1))
	return weighted.Quo(weighted, total)
}

// MarketSupplyRate is the blended average supply rate across the whole
// market, weighting the P2P rate by peer-matched supply and the pool rate by
// pool-held supply.
func MarketSupplyRate(s *MarketSnapshot, indexes P2PIndexes) (*big.Int, error) {
	p2pRate, err := P2PSupplyRate(s, indexes)
	if err != nil {
		return nil, err
	}
	p2pAmount := raymath.Mul(s.Deltas.Supply.ScaledP2PTotal, indexes.Supply)
	return BlendedRate(p2pRate, s.PoolSupplyRate, p2pAmount, s.PoolSupplyBalance), nil
}

// MarketBorrowRate is the blended average borrow rate across the market.
func MarketBorrowRate(s *MarketSnapshot, indexes P2PIndexes) (*big.Int, error) {
	p2pRate, err := P2PBorrowRate(s, indexes)
	if err != nil {
		return nil, err
	}
	p2pAmount := raymath.Mul(s.Deltas.Borrow.ScaledP2PTotal, indexes.Borrow)
	return BlendedRate(p2pRate, s.PoolBorrowRate, p2pAmount, s.PoolBorrowBalance), nil
}

// UserSupplyBalance converts a user's scaled supply parts into underlying
// units at the fresh indexes.
func UserSupplyBalance(s *MarketSnapshot, indexes P2PIndexes, b *UserBalances) *big.Int {
	out := raymath.Mul(b.SupplyScaledInP2P, indexes.Supply)
	return out.Add(out, raymath.Mul(b.SupplyScaledOnPool, s.PoolSupplyIndex))
}

// UserCollateralBalance converts a user's scaled collateral into underlying
// units. Collateral sits entirely on the pool.
func UserCollateralBalance(s *MarketSnapshot, b *UserBalances) *big.Int {
	return raymath.Mul(b.CollateralScaled, s.PoolSupplyIndex)
}

// UserBorrowBalance converts a user's scaled borrow parts into underlying
// units at the fresh indexes.
func UserBorrowBalance(s *MarketSnapshot, indexes P2PIndexes, b *UserBalances) *big.Int {
	out := raymath.Mul(b.BorrowScaledInP2P, indexes.Borrow)
	return out.Add(out, raymath.Mul(b.BorrowScaledOnPool, s.PoolBorrowIndex))
}

// Package morpho implements the Morpho peer-to-pool accounting engine:
// P2P index updates, blended P2P rates, and reconciliation of peer-matched
// and pool-held balances into market totals and user positions.
package morpho

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SideIndexes are the pool and peer-matched growth indexes for one side of a
// market (supply or borrow), ray-scaled, monotonic non-decreasing.
type SideIndexes struct {
	Pool *big.Int
	P2P  *big.Int
}

// MarketIndexes holds both sides' indexes as of the market's last update.
type MarketIndexes struct {
	Supply SideIndexes
	Borrow SideIndexes
}

// SideDelta is the unmatched-peer accounting for one side: ScaledDelta is
// peer liquidity pushed back to the pool, ScaledP2PTotal the total scaled
// peer-matched principal. Invariant: ScaledP2PTotal >= ScaledDelta >= 0.
type SideDelta struct {
	ScaledDelta    *big.Int
	ScaledP2PTotal *big.Int
}

// MarketDeltas holds both sides' delta state.
type MarketDeltas struct {
	Supply SideDelta
	Borrow SideDelta
}

// MarketSnapshot is a point-in-time aggregate of everything the index, rate,
// and reconciliation math needs for one market. It is fetched fresh on every
// query and never cached: every field can change each block.
type MarketSnapshot struct {
	Underlying common.Address

	// Indexes stored by the protocol at its last accrual.
	LastIndexes MarketIndexes

	// Current pool indexes, read from the underlying pool at the query block.
	PoolSupplyIndex *big.Int
	PoolBorrowIndex *big.Int

	Deltas     MarketDeltas
	IdleSupply *big.Int

	ReserveFactorBps  uint64
	P2PIndexCursorBps uint64

	// Pool rates, ray-scaled per year.
	PoolSupplyRate *big.Int
	PoolBorrowRate *big.Int

	// Raw token balances the protocol holds on the pool.
	PoolSupplyBalance *big.Int
	PoolBorrowBalance *big.Int
}

// UserBalances are one user's scaled balances in one market.
// Collateral is pool-only, so a single scaled balance suffices for it.
type UserBalances struct {
	SupplyScaledOnPool *big.Int
	SupplyScaledInP2P  *big.Int
	CollateralScaled   *big.Int
	BorrowScaledOnPool *big.Int
	BorrowScaledInP2P  *big.Int
}

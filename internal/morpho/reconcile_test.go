package morpho

import (
	"math/big"
	"testing"

	"github.com/austinjfi/mmi-defi-adapters/internal/raymath"
)

// 1000 ray-units matched at index 1.1 plus 500 raw on the pool is 1600.
func TestTotalSupply(t *testing.T) {
	s := snapshotFixture()
	s.Deltas.Supply.ScaledP2PTotal = new(big.Int).SetInt64(1000)
	s.PoolSupplyBalance = big.NewInt(500)
	indexes := P2PIndexes{Supply: raymath.FromFraction(11, 10), Borrow: raymath.FromUnits(1)}

	got := TotalSupply(s, indexes)
	if want := big.NewInt(1600); got.Cmp(want) != 0 {
		t.Errorf("TotalSupply = %s, want %s", got, want)
	}
}

func TestTotalBorrow(t *testing.T) {
	s := snapshotFixture()
	s.Deltas.Borrow.ScaledP2PTotal = big.NewInt(200)
	s.PoolBorrowBalance = big.NewInt(100)
	indexes := P2PIndexes{Supply: raymath.FromUnits(1), Borrow: raymath.FromFraction(3, 2)}

	got := TotalBorrow(s, indexes)
	if want := big.NewInt(400); got.Cmp(want) != 0 {
		t.Errorf("TotalBorrow = %s, want %s", got, want)
	}
}

func TestBlendedRate(t *testing.T) {
	p2pRate := raymath.FromFraction(4, 100)
	poolRate := raymath.FromFraction(2, 100)

	// Equal amounts: midpoint.
	got := BlendedRate(p2pRate, poolRate, big.NewInt(100), big.NewInt(100))
	if want := raymath.FromFraction(3, 100); got.Cmp(want) != 0 {
		t.Errorf("BlendedRate 50/50 = %s, want %s", got, want)
	}

	// All peer-matched: the P2P rate undiluted.
	got = BlendedRate(p2pRate, poolRate, big.NewInt(100), new(big.Int))
	if got.Cmp(p2pRate) != 0 {
		t.Errorf("BlendedRate all-p2p = %s, want %s", got, p2pRate)
	}
}

// Zero total amount must return the raw pool rate exactly, not divide.
func TestBlendedRate_ZeroTotal(t *testing.T) {
	p2pRate := raymath.FromFraction(4, 100)
	poolRate := raymath.FromFraction(2, 100)

	got := BlendedRate(p2pRate, poolRate, new(big.Int), new(big.Int))
	if got.Cmp(poolRate) != 0 {
		t.Errorf("BlendedRate zero total = %s, want pool rate %s", got, poolRate)
	}
}

func TestUserBalances(t *testing.T) {
	s := snapshotFixture()
	indexes := P2PIndexes{
		Supply: raymath.FromFraction(11, 10),
		Borrow: raymath.FromFraction(12, 10),
	}
	balances := &UserBalances{
		SupplyScaledOnPool: big.NewInt(100), // at pool index 1.05 -> 105
		SupplyScaledInP2P:  big.NewInt(200), // at p2p index 1.1 -> 220
		CollateralScaled:   big.NewInt(400), // at pool index 1.05 -> 420
		BorrowScaledOnPool: big.NewInt(50),  // at pool index 1.07 -> 53.5 -> 54 (half up)
		BorrowScaledInP2P:  big.NewInt(100), // at p2p index 1.2 -> 120
	}

	if got, want := UserSupplyBalance(s, indexes, balances), big.NewInt(325); got.Cmp(want) != 0 {
		t.Errorf("UserSupplyBalance = %s, want %s", got, want)
	}
	if got, want := UserCollateralBalance(s, balances), big.NewInt(420); got.Cmp(want) != 0 {
		t.Errorf("UserCollateralBalance = %s, want %s", got, want)
	}
	if got, want := UserBorrowBalance(s, indexes, balances), big.NewInt(174); got.Cmp(want) != 0 {
		t.Errorf("UserBorrowBalance = %s, want %s", got, want)
	}
}

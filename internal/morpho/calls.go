package morpho

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
	"github.com/austinjfi/mmi-defi-adapters/internal/chain"
	"github.com/austinjfi/mmi-defi-adapters/internal/metadata"
	"github.com/austinjfi/mmi-defi-adapters/internal/observability"
)

// Reader supplies the raw on-chain state the engine consumes. Implementations
// must honor the optional historical block: index and rate math is
// block-sensitive.
type Reader interface {
	ListUnderlyings(ctx context.Context, blockNumber *uint64) ([]common.Address, error)
	Snapshot(ctx context.Context, underlying common.Address, blockNumber *uint64) (*MarketSnapshot, error)
	UserBalances(ctx context.Context, underlying, user common.Address, blockNumber *uint64) (*UserBalances, error)
}

var (
	selMarketsCreated = chain.Selector("marketsCreated()")
	selMarket         = chain.Selector("market(address)")

	selScaledPoolSupply = chain.Selector("scaledPoolSupplyBalance(address,address)")
	selScaledP2PSupply  = chain.Selector("scaledP2PSupplyBalance(address,address)")
	selScaledCollateral = chain.Selector("scaledCollateralBalance(address,address)")
	selScaledPoolBorrow = chain.Selector("scaledPoolBorrowBalance(address,address)")
	selScaledP2PBorrow  = chain.Selector("scaledP2PBorrowBalance(address,address)")

	selNormalizedIncome = chain.Selector("getReserveNormalizedIncome(address)")
	selNormalizedDebt   = chain.Selector("getReserveNormalizedVariableDebt(address)")
	selReserveData      = chain.Selector("getReserveData(address)")
	selBalanceOf        = chain.Selector("balanceOf(address)")
)

// Word layout of the morpho market(address) return struct. The indexes and
// deltas come first, per side; the pause flags occupy ten words we skip over.
const (
	wSupplyPoolIndex  = 0
	wSupplyP2PIndex   = 1
	wBorrowPoolIndex  = 2
	wBorrowP2PIndex   = 3
	wSupplyDelta      = 4
	wSupplyP2PTotal   = 5
	wBorrowDelta      = 6
	wBorrowP2PTotal   = 7
	wUnderlying       = 8
	wVariableDebt     = 20
	wReserveFactor    = 22
	wP2PIndexCursor   = 23
	wAToken           = 24
	wIdleSupply       = 26
	marketResultWords = 27
)

// Word offsets in the Aave v3 getReserveData(address) return struct.
const (
	wLiquidityRate      = 2
	wVariableBorrowRate = 4
)

// EthReader implements Reader and metadata.Lister against live contracts.
type EthReader struct {
	caller  chain.ContractCaller
	chainID adapter.Chain
	morpho  common.Address
	pool    common.Address
	metrics *observability.Metrics
}

func NewEthReader(caller chain.ContractCaller, chainID adapter.Chain, morphoAddr, poolAddr common.Address, metrics *observability.Metrics) *EthReader {
	return &EthReader{
		caller:  caller,
		chainID: chainID,
		morpho:  morphoAddr,
		pool:    poolAddr,
		metrics: metrics,
	}
}

// NewListerFromDeployment builds a reader straight from a configured
// deployment, for callers that need the market lister before any adapter
// is constructed.
func NewListerFromDeployment(caller chain.ContractCaller, deployment adapter.Deployment, metrics *observability.Metrics) (*EthReader, error) {
	morphoAddr, err := deployment.Contract(RoleMorpho)
	if err != nil {
		return nil, err
	}
	poolAddr, err := deployment.Contract(RoleAaveV3Pool)
	if err != nil {
		return nil, err
	}
	return NewEthReader(caller, deployment.Chain, morphoAddr, poolAddr, metrics), nil
}

func (r *EthReader) call(ctx context.Context, op string, contract common.Address, data []byte, blockNumber *uint64) ([]byte, error) {
	r.metrics.UpstreamCalls.WithLabelValues(r.chainID.String()).Inc()
	out, err := chain.Call(ctx, r.caller, contract, data, blockNumber)
	if err != nil {
		r.metrics.UpstreamFailures.WithLabelValues(r.chainID.String()).Inc()
		return nil, adapter.Upstream(op, err)
	}
	return out, nil
}

// ListUnderlyings returns every market's underlying token address.
func (r *EthReader) ListUnderlyings(ctx context.Context, blockNumber *uint64) ([]common.Address, error) {
	out, err := r.call(ctx, "morpho.marketsCreated", r.morpho, selMarketsCreated, blockNumber)
	if err != nil {
		return nil, err
	}
	length, err := chain.Word(out, 1)
	if err != nil {
		return nil, err
	}
	n := int(length.Int64())
	underlyings := make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		addr, err := chain.AddressWord(out, 2+i)
		if err != nil {
			return nil, err
		}
		underlyings = append(underlyings, addr)
	}
	return underlyings, nil
}

// Snapshot assembles a MarketSnapshot for one market: the morpho market
// struct first (it carries the pool token addresses the rest depends on),
// then the pool indexes, pool rates, and pool-held balances as a batch.
func (r *EthReader) Snapshot(ctx context.Context, underlying common.Address, blockNumber *uint64) (*MarketSnapshot, error) {
	raw, err := r.call(ctx, "morpho.market", r.morpho, chain.PackCall(selMarket, chain.AddressArg(underlying)), blockNumber)
	if err != nil {
		return nil, err
	}
	s, aToken, variableDebt, err := decodeMarket(raw)
	if err != nil {
		return nil, err
	}
	if s.Underlying != underlying {
		return nil, fmt.Errorf("%w: %s on chain %s", adapter.ErrMarketNotFound, underlying, r.chainID)
	}

	underlyingArg := chain.AddressArg(underlying)
	morphoArg := chain.AddressArg(r.morpho)

	err = chain.Batch(ctx,
		func(ctx context.Context) error {
			out, err := r.call(ctx, "pool.getReserveNormalizedIncome", r.pool, chain.PackCall(selNormalizedIncome, underlyingArg), blockNumber)
			if err != nil {
				return err
			}
			s.PoolSupplyIndex, err = chain.Word(out, 0)
			return err
		},
		func(ctx context.Context) error {
			out, err := r.call(ctx, "pool.getReserveNormalizedVariableDebt", r.pool, chain.PackCall(selNormalizedDebt, underlyingArg), blockNumber)
			if err != nil {
				return err
			}
			s.PoolBorrowIndex, err = chain.Word(out, 0)
			return err
		},
		func(ctx context.Context) error {
			out, err := r.call(ctx, "pool.getReserveData", r.pool, chain.PackCall(selReserveData, underlyingArg), blockNumber)
			if err != nil {
				return err
			}
			if s.PoolSupplyRate, err = chain.Word(out, wLiquidityRate); err != nil {
				return err
			}
			s.PoolBorrowRate, err = chain.Word(out, wVariableBorrowRate)
			return err
		},
		func(ctx context.Context) error {
			out, err := r.call(ctx, "aToken.balanceOf", aToken, chain.PackCall(selBalanceOf, morphoArg), blockNumber)
			if err != nil {
				return err
			}
			s.PoolSupplyBalance, err = chain.Word(out, 0)
			return err
		},
		func(ctx context.Context) error {
			out, err := r.call(ctx, "variableDebtToken.balanceOf", variableDebt, chain.PackCall(selBalanceOf, morphoArg), blockNumber)
			if err != nil {
				return err
			}
			s.PoolBorrowBalance, err = chain.Word(out, 0)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UserBalances fetches one user's five scaled balances as a batch.
func (r *EthReader) UserBalances(ctx context.Context, underlying, user common.Address, blockNumber *uint64) (*UserBalances, error) {
	args := []byte{}
	args = append(args, chain.AddressArg(underlying)...)
	args = append(args, chain.AddressArg(user)...)

	balances := &UserBalances{}
	fetch := func(op string, sel []byte, dst **big.Int) func(context.Context) error {
		return func(ctx context.Context) error {
			data := append(append([]byte{}, sel...), args...)
			out, err := r.call(ctx, op, r.morpho, data, blockNumber)
			if err != nil {
				return err
			}
			*dst, err = chain.Word(out, 0)
			return err
		}
	}

	err := chain.Batch(ctx,
		fetch("morpho.scaledPoolSupplyBalance", selScaledPoolSupply, &balances.SupplyScaledOnPool),
		fetch("morpho.scaledP2PSupplyBalance", selScaledP2PSupply, &balances.SupplyScaledInP2P),
		fetch("morpho.scaledCollateralBalance", selScaledCollateral, &balances.CollateralScaled),
		fetch("morpho.scaledPoolBorrowBalance", selScaledPoolBorrow, &balances.BorrowScaledOnPool),
		fetch("morpho.scaledP2PBorrowBalance", selScaledP2PBorrow, &balances.BorrowScaledInP2P),
	)
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// ListMarkets implements metadata.Lister: it resolves every created market's
// protocol token (the pool aToken) and underlying identity live on-chain.
func (r *EthReader) ListMarkets(ctx context.Context, chainID adapter.Chain) ([]adapter.Market, error) {
	underlyings, err := r.ListUnderlyings(ctx, nil)
	if err != nil {
		return nil, err
	}

	markets := make([]adapter.Market, len(underlyings))
	fetches := make([]func(context.Context) error, len(underlyings))
	for i, underlying := range underlyings {
		i, underlying := i, underlying
		fetches[i] = func(ctx context.Context) error {
			raw, err := r.call(ctx, "morpho.market", r.morpho, chain.PackCall(selMarket, chain.AddressArg(underlying)), nil)
			if err != nil {
				return err
			}
			_, aToken, _, err := decodeMarket(raw)
			if err != nil {
				return err
			}
			protocolToken, err := metadata.FetchToken(ctx, r.caller, aToken, nil)
			if err != nil {
				return err
			}
			underlyingToken, err := metadata.FetchToken(ctx, r.caller, underlying, nil)
			if err != nil {
				return err
			}
			markets[i] = adapter.Market{ProtocolToken: protocolToken, Underlying: underlyingToken}
			return nil
		}
	}
	if err := chain.Batch(ctx, fetches...); err != nil {
		return nil, err
	}
	return markets, nil
}

func decodeMarket(raw []byte) (*MarketSnapshot, common.Address, common.Address, error) {
	if len(raw) < marketResultWords*32 {
		return nil, common.Address{}, common.Address{}, fmt.Errorf("market result too short: %d bytes", len(raw))
	}

	word := func(i int) *big.Int {
		w, _ := chain.Word(raw, i)
		return w
	}
	addr := func(i int) common.Address {
		a, _ := chain.AddressWord(raw, i)
		return a
	}

	s := &MarketSnapshot{
		Underlying: addr(wUnderlying),
		LastIndexes: MarketIndexes{
			Supply: SideIndexes{Pool: word(wSupplyPoolIndex), P2P: word(wSupplyP2PIndex)},
			Borrow: SideIndexes{Pool: word(wBorrowPoolIndex), P2P: word(wBorrowP2PIndex)},
		},
		Deltas: MarketDeltas{
			Supply: SideDelta{ScaledDelta: word(wSupplyDelta), ScaledP2PTotal: word(wSupplyP2PTotal)},
			Borrow: SideDelta{ScaledDelta: word(wBorrowDelta), ScaledP2PTotal: word(wBorrowP2PTotal)},
		},
		IdleSupply:        word(wIdleSupply),
		ReserveFactorBps:  word(wReserveFactor).Uint64(),
		P2PIndexCursorBps: word(wP2PIndexCursor).Uint64(),
	}
	return s, addr(wAToken), addr(wVariableDebt), nil
}

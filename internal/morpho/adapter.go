package morpho

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
	"github.com/austinjfi/mmi-defi-adapters/internal/chain"
	"github.com/austinjfi/mmi-defi-adapters/internal/observability"
	"github.com/austinjfi/mmi-defi-adapters/internal/raymath"
)

// Deployment contract roles looked up at construction.
const (
	RoleMorpho     = "morpho"
	RoleAaveV3Pool = "aave-v3-pool"
)

func init() {
	for _, chainID := range []adapter.Chain{adapter.ChainEthereum} {
		for _, product := range []adapter.Product{adapter.ProductOptimizerSupply, adapter.ProductOptimizerBorrow} {
			chainID, product := chainID, product
			adapter.Register(
				adapter.Key{Protocol: adapter.ProtocolMorphoAaveV3, Chain: chainID, Product: product},
				func(deps adapter.Deps) (adapter.ProtocolAdapter, error) {
					return NewAdapter(product, deps)
				},
			)
		}
	}
}

// Adapter answers position, rate, TVL, and profit queries for the Morpho
// Aave-v3 optimizer. It holds only its collaborators; every query re-fetches
// chain state, and any upstream failure fails the whole call.
type Adapter struct {
	details      adapter.Details
	positionType adapter.PositionType
	reader       Reader
	filterer     chain.LogFilterer
	metadata     adapter.MetadataResolver
	morpho       common.Address
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

// NewAdapter builds the adapter for one product from its collaborators.
func NewAdapter(product adapter.Product, deps adapter.Deps) (*Adapter, error) {
	morphoAddr, err := deps.Deployment.Contract(RoleMorpho)
	if err != nil {
		return nil, err
	}
	poolAddr, err := deps.Deployment.Contract(RoleAaveV3Pool)
	if err != nil {
		return nil, err
	}

	positionType := adapter.PositionTypeSupply
	description := "Morpho Aave-v3 optimizer supply positions"
	if product == adapter.ProductOptimizerBorrow {
		positionType = adapter.PositionTypeBorrow
		description = "Morpho Aave-v3 optimizer borrow positions"
	}

	return &Adapter{
		details: adapter.Details{
			Protocol:    adapter.ProtocolMorphoAaveV3,
			Chain:       deps.Deployment.Chain,
			Product:     product,
			Description: description,
		},
		positionType: positionType,
		reader:       NewEthReader(deps.Caller, deps.Deployment.Chain, morphoAddr, poolAddr, deps.Metrics),
		filterer:     deps.Filterer,
		metadata:     deps.Metadata,
		morpho:       morphoAddr,
		logger:       deps.Logger.With().Str("component", "morpho-adapter").Str("product", string(product)).Logger(),
		metrics:      deps.Metrics,
	}, nil
}

func (a *Adapter) Details() adapter.Details {
	return a.details
}

// GetPositions returns the user's non-zero balances across every known
// market, reconciled into underlying units at fresh indexes.
func (a *Adapter) GetPositions(ctx context.Context, user common.Address, blockNumber *uint64) (_ []adapter.Position, err error) {
	defer a.track("positions")(&err)

	markets, err := a.metadata.Markets(ctx, a.details.Chain)
	if err != nil {
		return nil, err
	}

	perMarket := make([][]adapter.Position, len(markets))
	fetches := make([]func(context.Context) error, len(markets))
	for i, market := range markets {
		i, market := i, market
		fetches[i] = func(ctx context.Context) error {
			positions, err := a.marketPositions(ctx, market, user, blockNumber)
			if err != nil {
				return err
			}
			perMarket[i] = positions
			return nil
		}
	}
	if err := chain.Batch(ctx, fetches...); err != nil {
		return nil, err
	}

	var out []adapter.Position
	for _, positions := range perMarket {
		out = append(out, positions...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Market.Address == out[j].Market.Address {
			return out[i].Type < out[j].Type
		}
		return out[i].Market.Address.Cmp(out[j].Market.Address) < 0
	})
	return out, nil
}

func (a *Adapter) marketPositions(ctx context.Context, market adapter.Market, user common.Address, blockNumber *uint64) ([]adapter.Position, error) {
	underlying := market.Underlying.Address

	var (
		snapshot *MarketSnapshot
		balances *UserBalances
	)
	err := chain.Batch(ctx,
		func(ctx context.Context) error {
			var err error
			snapshot, err = a.reader.Snapshot(ctx, underlying, blockNumber)
			return err
		},
		func(ctx context.Context) error {
			var err error
			balances, err = a.reader.UserBalances(ctx, underlying, user, blockNumber)
			return err
		},
	)
	if err != nil {
		return nil, err
	}

	indexes, err := ComputeP2PIndexes(snapshot)
	if err != nil {
		return nil, err
	}

	var positions []adapter.Position
	appendNonZero := func(positionType adapter.PositionType, amount *big.Int) {
		if amount.Sign() == 0 {
			return
		}
		positions = append(positions, adapter.Position{
			Market:    market.ProtocolToken,
			Type:      positionType,
			AmountRaw: amount,
			Amount:    adapter.FormatUnits(amount, market.Underlying.Decimals),
			Underlying: []adapter.UnderlyingBalance{{
				Token:     market.Underlying,
				AmountRaw: amount,
				Amount:    adapter.FormatUnits(amount, market.Underlying.Decimals),
			}},
		})
	}

	if a.positionType == adapter.PositionTypeBorrow {
		appendNonZero(adapter.PositionTypeBorrow, UserBorrowBalance(snapshot, indexes, balances))
	} else {
		appendNonZero(adapter.PositionTypeSupply, UserSupplyBalance(snapshot, indexes, balances))
		appendNonZero(adapter.PositionTypeCollateral, UserCollateralBalance(snapshot, balances))
	}
	return positions, nil
}

// GetApr returns the market's blended annual rate as a percentage.
func (a *Adapter) GetApr(ctx context.Context, market common.Address, blockNumber *uint64) (_ adapter.Rate, err error) {
	defer a.track("apr")(&err)
	return a.marketRate(ctx, market, blockNumber)
}

// GetApy returns the APR compounded daily.
func (a *Adapter) GetApy(ctx context.Context, market common.Address, blockNumber *uint64) (_ adapter.Rate, err error) {
	defer a.track("apy")(&err)

	rate, err := a.marketRate(ctx, market, blockNumber)
	if err != nil {
		return adapter.Rate{}, err
	}
	rate.Percent = aprToApy(rate.Percent)
	return rate, nil
}

func (a *Adapter) marketRate(ctx context.Context, protocolToken common.Address, blockNumber *uint64) (adapter.Rate, error) {
	market, err := a.metadata.Resolve(ctx, a.details.Chain, protocolToken)
	if err != nil {
		return adapter.Rate{}, err
	}
	snapshot, err := a.reader.Snapshot(ctx, market.Underlying.Address, blockNumber)
	if err != nil {
		return adapter.Rate{}, err
	}
	indexes, err := ComputeP2PIndexes(snapshot)
	if err != nil {
		return adapter.Rate{}, err
	}

	var rate *big.Int
	if a.positionType == adapter.PositionTypeBorrow {
		rate, err = MarketBorrowRate(snapshot, indexes)
	} else {
		rate, err = MarketSupplyRate(snapshot, indexes)
	}
	if err != nil {
		return adapter.Rate{}, err
	}
	return adapter.Rate{Market: market.ProtocolToken, Percent: rayToPercent(rate)}, nil
}

// GetTotalValueLocked returns each market's total supply (or borrow, for the
// borrow product) in underlying units.
func (a *Adapter) GetTotalValueLocked(ctx context.Context, blockNumber *uint64) (_ []adapter.TVL, err error) {
	defer a.track("tvl")(&err)

	markets, err := a.metadata.Markets(ctx, a.details.Chain)
	if err != nil {
		return nil, err
	}

	out := make([]adapter.TVL, len(markets))
	fetches := make([]func(context.Context) error, len(markets))
	for i, market := range markets {
		i, market := i, market
		fetches[i] = func(ctx context.Context) error {
			snapshot, err := a.reader.Snapshot(ctx, market.Underlying.Address, blockNumber)
			if err != nil {
				return err
			}
			indexes, err := ComputeP2PIndexes(snapshot)
			if err != nil {
				return err
			}
			total := TotalSupply(snapshot, indexes)
			if a.positionType == adapter.PositionTypeBorrow {
				total = TotalBorrow(snapshot, indexes)
			}
			out[i] = adapter.TVL{
				Market:    market.ProtocolToken,
				Token:     market.Underlying,
				SupplyRaw: total,
				Supply:    adapter.FormatUnits(total, market.Underlying.Decimals),
			}
			return nil
		}
	}
	if err := chain.Batch(ctx, fetches...); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Market.Address.Cmp(out[j].Market.Address) < 0
	})
	return out, nil
}

// GetProfits pairs position snapshots at the window's edges with the summed
// movement events inside it: profit = end + outflows - inflows - start per
// underlying, sign-flipped for borrow positions.
func (a *Adapter) GetProfits(ctx context.Context, user common.Address, fromBlock, toBlock uint64) (_ adapter.ProfitsReport, err error) {
	defer a.track("profits")(&err)

	if fromBlock > toBlock {
		return adapter.ProfitsReport{}, fmt.Errorf("invalid block range: from %d > to %d", fromBlock, toBlock)
	}

	markets, err := a.metadata.Markets(ctx, a.details.Chain)
	if err != nil {
		return adapter.ProfitsReport{}, err
	}

	var (
		start     map[common.Address]*big.Int
		end       map[common.Address]*big.Int
		movements *Movements
	)
	err = chain.Batch(ctx,
		func(ctx context.Context) error {
			var err error
			start, err = a.balancesByUnderlying(ctx, markets, user, &fromBlock)
			return err
		},
		func(ctx context.Context) error {
			var err error
			end, err = a.balancesByUnderlying(ctx, markets, user, &toBlock)
			return err
		},
		func(ctx context.Context) error {
			var err error
			movements, err = FetchMovements(ctx, a.filterer, a.morpho, user, a.positionType, fromBlock, toBlock)
			return err
		},
	)
	if err != nil {
		return adapter.ProfitsReport{}, err
	}

	tokens := make(map[common.Address]adapter.TokenMetadata, len(markets))
	for _, m := range markets {
		tokens[m.Underlying.Address] = m.Underlying
	}

	report := adapter.ProfitsReport{FromBlock: fromBlock, ToBlock: toBlock}
	for underlying := range unionKeys(start, end, movements.In, movements.Out) {
		token, ok := tokens[underlying]
		if !ok {
			// Movement events for a market the resolver does not know would
			// be misattributed; refuse instead of guessing.
			return adapter.ProfitsReport{}, fmt.Errorf("%w: underlying %s", adapter.ErrMarketNotFound, underlying)
		}

		startBal := zeroIfNil(start[underlying])
		endBal := zeroIfNil(end[underlying])
		inflows := zeroIfNil(movements.In[underlying])
		outflows := zeroIfNil(movements.Out[underlying])
		profit := ComputeProfit(startBal, endBal, inflows, outflows, a.positionType)

		report.Profits = append(report.Profits, adapter.Profit{
			Token:          token,
			Type:           a.positionType,
			StartRaw:       startBal,
			EndRaw:         endBal,
			DepositsRaw:    inflows,
			WithdrawalsRaw: outflows,
			ProfitRaw:      profit,
			Profit:         adapter.FormatUnits(profit, token.Decimals),
		})
	}

	sort.Slice(report.Profits, func(i, j int) bool {
		return report.Profits[i].Token.Address.Cmp(report.Profits[j].Token.Address) < 0
	})
	return report, nil
}

// GetClaimableRewards is not finished for the Morpho optimizer: the rewards
// distributor needs merkle proofs served off-chain.
func (a *Adapter) GetClaimableRewards(ctx context.Context, user common.Address, blockNumber *uint64) (_ []adapter.ClaimableReward, err error) {
	defer a.track("rewards")(&err)
	return nil, adapter.ErrNotImplemented
}

// balancesByUnderlying sums the user's balances for this product per
// underlying token at one block. Supply products include collateral: its
// deposits and withdrawals are part of the same profit window.
func (a *Adapter) balancesByUnderlying(ctx context.Context, markets []adapter.Market, user common.Address, blockNumber *uint64) (map[common.Address]*big.Int, error) {
	sums := make([]*big.Int, len(markets))
	fetches := make([]func(context.Context) error, len(markets))
	for i, market := range markets {
		i, underlying := i, market.Underlying.Address
		fetches[i] = func(ctx context.Context) error {
			var (
				snapshot *MarketSnapshot
				balances *UserBalances
			)
			err := chain.Batch(ctx,
				func(ctx context.Context) error {
					var err error
					snapshot, err = a.reader.Snapshot(ctx, underlying, blockNumber)
					return err
				},
				func(ctx context.Context) error {
					var err error
					balances, err = a.reader.UserBalances(ctx, underlying, user, blockNumber)
					return err
				},
			)
			if err != nil {
				return err
			}
			indexes, err := ComputeP2PIndexes(snapshot)
			if err != nil {
				return err
			}

			if a.positionType == adapter.PositionTypeBorrow {
				sums[i] = UserBorrowBalance(snapshot, indexes, balances)
			} else {
				sum := UserSupplyBalance(snapshot, indexes, balances)
				sums[i] = sum.Add(sum, UserCollateralBalance(snapshot, balances))
			}
			return nil
		}
	}
	if err := chain.Batch(ctx, fetches...); err != nil {
		return nil, err
	}

	out := make(map[common.Address]*big.Int, len(markets))
	for i, market := range markets {
		if sums[i].Sign() != 0 {
			out[market.Underlying.Address] = sums[i]
		}
	}
	return out, nil
}

func (a *Adapter) track(operation string) func(*error) {
	labels := []string{string(a.details.Protocol), a.details.Chain.String(), operation}
	a.metrics.AdapterCalls.WithLabelValues(labels...).Inc()
	start := time.Now()

	return func(err *error) {
		a.metrics.AdapterDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		if *err == nil {
			return
		}
		a.metrics.AdapterErrors.WithLabelValues(string(a.details.Protocol), a.details.Chain.String(), operation, errKind(*err)).Inc()
		a.logger.Error().Err(*err).Str("operation", operation).Msg("adapter query failed")
	}
}

func errKind(err error) string {
	var upstream *adapter.UpstreamError
	switch {
	case errors.Is(err, adapter.ErrMarketNotFound):
		return "market_not_found"
	case errors.Is(err, adapter.ErrNotImplemented):
		return "not_implemented"
	case errors.As(err, &upstream):
		return "upstream"
	default:
		return "internal"
	}
}

func rayToPercent(rate *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(rate), new(big.Float).SetInt(raymath.Ray)).Float64()
	return f * 100
}

// aprToApy compounds an annual percentage rate daily.
func aprToApy(aprPercent float64) float64 {
	return (math.Pow(1+aprPercent/100/365, 365) - 1) * 100
}

func unionKeys(maps ...map[common.Address]*big.Int) map[common.Address]struct{} {
	keys := make(map[common.Address]struct{})
	for _, m := range maps {
		for k := range m {
			keys[k] = struct{}{}
		}
	}
	return keys
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

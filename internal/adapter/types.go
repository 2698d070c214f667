// Package adapter defines the shared contract every protocol adapter
// implements: the query interface, response types, the error taxonomy, and
// the static (protocol, chain, product) registry.
package adapter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol identifies a supported protocol family.
type Protocol string

const (
	ProtocolMorphoAaveV3 Protocol = "morpho-aave-v3"
)

// Chain is an EVM chain ID.
type Chain uint64

const (
	ChainEthereum Chain = 1
	ChainArbitrum Chain = 42161
	ChainBase     Chain = 8453
)

func (c Chain) String() string {
	switch c {
	case ChainEthereum:
		return "ethereum"
	case ChainArbitrum:
		return "arbitrum"
	case ChainBase:
		return "base"
	default:
		return "unknown"
	}
}

// Product distinguishes multiple adapter products within one protocol.
type Product string

const (
	ProductOptimizerSupply Product = "optimizer-supply"
	ProductOptimizerBorrow Product = "optimizer-borrow"
)

// PositionType classifies what a balance represents.
type PositionType string

const (
	PositionTypeSupply     PositionType = "supply"
	PositionTypeBorrow     PositionType = "borrow"
	PositionTypeCollateral PositionType = "collateral"
	PositionTypeReward     PositionType = "reward"
)

// TokenMetadata is the resolved identity of an ERC-20 token.
type TokenMetadata struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Market relates a protocol-facing token to the underlying asset it wraps.
type Market struct {
	ProtocolToken TokenMetadata `json:"protocol_token"`
	Underlying    TokenMetadata `json:"underlying"`
}

// UnderlyingBalance is an amount denominated in an underlying token.
type UnderlyingBalance struct {
	Token     TokenMetadata `json:"token"`
	AmountRaw *big.Int      `json:"amount_raw"`
	Amount    string        `json:"amount"`
}

// Position is one non-zero user balance in one market.
type Position struct {
	Market     TokenMetadata       `json:"market"`
	Type       PositionType        `json:"type"`
	AmountRaw  *big.Int            `json:"amount_raw"`
	Amount     string              `json:"amount"`
	Underlying []UnderlyingBalance `json:"underlying"`
}

// Rate is an annualized percentage for one market.
type Rate struct {
	Market  TokenMetadata `json:"market"`
	Percent float64       `json:"percent"`
}

// TVL is a market's total locked amount in underlying units.
type TVL struct {
	Market    TokenMetadata `json:"market"`
	Token     TokenMetadata `json:"token"`
	SupplyRaw *big.Int      `json:"supply_raw"`
	Supply    string        `json:"supply"`
}

// Profit is the per-underlying result of a windowed profit query.
// ProfitRaw = end + withdrawals - deposits - start, sign-flipped for borrow
// positions (a growing debt is a cost).
type Profit struct {
	Token          TokenMetadata `json:"token"`
	Type           PositionType  `json:"type"`
	StartRaw       *big.Int      `json:"start_raw"`
	EndRaw         *big.Int      `json:"end_raw"`
	DepositsRaw    *big.Int      `json:"deposits_raw"`
	WithdrawalsRaw *big.Int      `json:"withdrawals_raw"`
	ProfitRaw      *big.Int      `json:"profit_raw"`
	Profit         string        `json:"profit"`
}

// ProfitsReport pairs the block window with its per-token profits.
type ProfitsReport struct {
	FromBlock uint64   `json:"from_block"`
	ToBlock   uint64   `json:"to_block"`
	Profits   []Profit `json:"profits"`
}

// ClaimableReward is an unclaimed reward balance.
type ClaimableReward struct {
	Token     TokenMetadata `json:"token"`
	AmountRaw *big.Int      `json:"amount_raw"`
	Amount    string        `json:"amount"`
}

// Details describes an adapter instance.
type Details struct {
	Protocol    Protocol `json:"protocol"`
	Chain       Chain    `json:"chain"`
	Product     Product  `json:"product"`
	Description string   `json:"description"`
}

// ProtocolAdapter is the uniform query surface every adapter provides.
// Block numbers are optional: nil means latest. Implementations re-fetch all
// chain state on every call and never cache across calls; a wrong balance is
// worse than an error, so upstream failures propagate instead of degrading.
type ProtocolAdapter interface {
	Details() Details
	GetPositions(ctx context.Context, user common.Address, blockNumber *uint64) ([]Position, error)
	GetApr(ctx context.Context, market common.Address, blockNumber *uint64) (Rate, error)
	GetApy(ctx context.Context, market common.Address, blockNumber *uint64) (Rate, error)
	GetTotalValueLocked(ctx context.Context, blockNumber *uint64) ([]TVL, error)
	GetProfits(ctx context.Context, user common.Address, fromBlock, toBlock uint64) (ProfitsReport, error)
	GetClaimableRewards(ctx context.Context, user common.Address, blockNumber *uint64) ([]ClaimableReward, error)
}

// MetadataResolver resolves a protocol token to its market identity.
// Implementations may serve from a file cache with a live on-chain fallback.
type MetadataResolver interface {
	Resolve(ctx context.Context, chain Chain, protocolToken common.Address) (Market, error)
	Markets(ctx context.Context, chain Chain) ([]Market, error)
}

// Package metadata resolves protocol-token/underlying-token identities.
// Resolution is cache-aside: a per-protocol-per-chain JSON file on disk,
// falling back to live on-chain lookup, held in memory for the resolver's
// lifetime once loaded.
package metadata

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
	"github.com/austinjfi/mmi-defi-adapters/internal/chain"
)

var (
	selName     = chain.Selector("name()")
	selSymbol   = chain.Selector("symbol()")
	selDecimals = chain.Selector("decimals()")
)

// FetchToken reads an ERC-20 token's name, symbol and decimals on-chain.
// The three calls are independent and fetched as a batch.
func FetchToken(ctx context.Context, caller chain.ContractCaller, token common.Address, blockNumber *uint64) (adapter.TokenMetadata, error) {
	meta := adapter.TokenMetadata{Address: token}

	err := chain.Batch(ctx,
		func(ctx context.Context) error {
			out, err := chain.Call(ctx, caller, token, selName, blockNumber)
			if err != nil {
				return adapter.Upstream("erc20.name", err)
			}
			meta.Name, err = chain.StringWord(out)
			return err
		},
		func(ctx context.Context) error {
			out, err := chain.Call(ctx, caller, token, selSymbol, blockNumber)
			if err != nil {
				return adapter.Upstream("erc20.symbol", err)
			}
			meta.Symbol, err = chain.StringWord(out)
			return err
		},
		func(ctx context.Context) error {
			out, err := chain.Call(ctx, caller, token, selDecimals, blockNumber)
			if err != nil {
				return adapter.Upstream("erc20.decimals", err)
			}
			dec, err := chain.Word(out, 0)
			if err != nil {
				return err
			}
			meta.Decimals = uint8(dec.Uint64())
			return nil
		},
	)
	if err != nil {
		return adapter.TokenMetadata{}, err
	}
	return meta, nil
}

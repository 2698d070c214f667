// Package chain wraps the read-only Ethereum RPC surface the adapters
// consume: block-pinned eth_call, topic-filtered log queries, and a batch
// helper that fans independent reads out concurrently.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractCaller is the subset of the Ethereum RPC used for view calls.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// LogFilterer is the subset of the Ethereum RPC used for event queries.
// *ethclient.Client satisfies it. Results are ordered by block then log index.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// BlockArg converts an optional block height to the *big.Int the RPC layer
// expects, nil meaning latest.
func BlockArg(blockNumber *uint64) *big.Int {
	if blockNumber == nil {
		return nil
	}
	return new(big.Int).SetUint64(*blockNumber)
}

// Call performs a view call against contract at an optional historical block.
func Call(ctx context.Context, caller ContractCaller, contract common.Address, data []byte, blockNumber *uint64) ([]byte, error) {
	msg := ethereum.CallMsg{To: &contract, Data: data}
	return caller.CallContract(ctx, msg, BlockArg(blockNumber))
}

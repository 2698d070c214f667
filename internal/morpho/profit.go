package morpho

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
	"github.com/austinjfi/mmi-defi-adapters/internal/chain"
)

// Movement event signatures. All carry the acting address, the position
// owner, and the underlying as indexed topics, with the raw amount as the
// first data word.
var (
	topicSupplied            = chain.EventTopic("Supplied(address,address,address,uint256,uint256,uint256)")
	topicCollateralSupplied  = chain.EventTopic("CollateralSupplied(address,address,address,uint256,uint256)")
	topicWithdrawn           = chain.EventTopic("Withdrawn(address,address,address,uint256,uint256,uint256)")
	topicCollateralWithdrawn = chain.EventTopic("CollateralWithdrawn(address,address,address,uint256,uint256)")
	topicBorrowed            = chain.EventTopic("Borrowed(address,address,address,uint256,uint256,uint256)")
	topicRepaid              = chain.EventTopic("Repaid(address,address,address,uint256,uint256,uint256)")
)

// Movements are raw event amounts summed per underlying token over a block
// range. Ordering inside the range is irrelevant: only the sums matter.
type Movements struct {
	In  map[common.Address]*big.Int
	Out map[common.Address]*big.Int
}

// movementTopics returns the inflow and outflow event signatures for a
// position type. Collateral deposits and withdrawals count alongside plain
// ones on the supply side; for borrow positions the borrow itself is the
// inflow and repayments are the outflow.
func movementTopics(positionType adapter.PositionType) (in, out []common.Hash) {
	if positionType == adapter.PositionTypeBorrow {
		return []common.Hash{topicBorrowed}, []common.Hash{topicRepaid}
	}
	return []common.Hash{topicSupplied, topicCollateralSupplied},
		[]common.Hash{topicWithdrawn, topicCollateralWithdrawn}
}

// FetchMovements queries the protocol's movement events for one user over a
// block range and sums the amounts per underlying.
func FetchMovements(ctx context.Context, filterer chain.LogFilterer, contract common.Address, user common.Address, positionType adapter.PositionType, fromBlock, toBlock uint64) (*Movements, error) {
	inTopics, outTopics := movementTopics(positionType)

	sigs := make([]common.Hash, 0, len(inTopics)+len(outTopics))
	sigs = append(sigs, inTopics...)
	sigs = append(sigs, outTopics...)

	userTopic := common.BytesToHash(common.LeftPadBytes(user.Bytes(), 32))
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{contract},
		// topic0: event signature; topic1: acting address (unconstrained);
		// topic2: position owner.
		Topics: [][]common.Hash{sigs, nil, {userTopic}},
	}

	logs, err := filterer.FilterLogs(ctx, query)
	if err != nil {
		return nil, adapter.Upstream("morpho.filterLogs", err)
	}
	return AggregateMovements(logs, inTopics, outTopics)
}

// AggregateMovements folds raw logs into per-underlying inflow and outflow
// sums. Logs with an unrecognized signature are skipped.
func AggregateMovements(logs []types.Log, inTopics, outTopics []common.Hash) (*Movements, error) {
	movements := &Movements{
		In:  make(map[common.Address]*big.Int),
		Out: make(map[common.Address]*big.Int),
	}

	for _, log := range logs {
		if len(log.Topics) < 4 || len(log.Data) < 32 {
			continue
		}
		var bucket map[common.Address]*big.Int
		switch {
		case containsTopic(inTopics, log.Topics[0]):
			bucket = movements.In
		case containsTopic(outTopics, log.Topics[0]):
			bucket = movements.Out
		default:
			continue
		}

		underlying := common.BytesToAddress(log.Topics[3].Bytes())
		amount, err := chain.Word(log.Data, 0)
		if err != nil {
			return nil, err
		}
		if sum, ok := bucket[underlying]; ok {
			sum.Add(sum, amount)
		} else {
			bucket[underlying] = amount
		}
	}
	return movements, nil
}

// ComputeProfit is the windowed profit for one underlying:
// end + outflows - inflows - start, negated for borrow positions where a
// growing balance is interest owed, not earned.
func ComputeProfit(start, end, inflows, outflows *big.Int, positionType adapter.PositionType) *big.Int {
	profit := new(big.Int).Add(end, outflows)
	profit.Sub(profit, inflows)
	profit.Sub(profit, start)
	if positionType == adapter.PositionTypeBorrow {
		profit.Neg(profit)
	}
	return profit
}

func containsTopic(topics []common.Hash, topic common.Hash) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}

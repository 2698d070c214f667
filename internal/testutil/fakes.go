// Package testutil provides in-memory stand-ins for the chain RPC surface so
// adapter tests run without a node.
package testutil

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FakeCaller serves canned eth_call responses keyed by contract address and
// function selector. Unknown calls fail loudly so tests cannot silently
// exercise the wrong path.
type FakeCaller struct {
	Responses map[string][]byte
	Errs      map[string]error
}

func NewFakeCaller() *FakeCaller {
	return &FakeCaller{
		Responses: make(map[string][]byte),
		Errs:      make(map[string]error),
	}
}

// CallKey builds the lookup key for a contract and calldata.
func CallKey(contract common.Address, data []byte) string {
	if len(data) < 4 {
		return contract.Hex() + ":short"
	}
	return contract.Hex() + ":" + hex.EncodeToString(data[:4])
}

// Respond registers a response for every call of selector on contract.
func (f *FakeCaller) Respond(contract common.Address, selector []byte, response []byte) {
	f.Responses[CallKey(contract, selector)] = response
}

// Fail registers an error for every call of selector on contract.
func (f *FakeCaller) Fail(contract common.Address, selector []byte, err error) {
	f.Errs[CallKey(contract, selector)] = err
}

func (f *FakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, fmt.Errorf("fake caller: missing target address")
	}
	key := CallKey(*msg.To, msg.Data)
	if err, ok := f.Errs[key]; ok {
		return nil, err
	}
	if out, ok := f.Responses[key]; ok {
		return out, nil
	}
	return nil, fmt.Errorf("fake caller: no response registered for %s", key)
}

// FakeFilterer returns a fixed log set for any filter query.
type FakeFilterer struct {
	Logs []types.Log
	Err  error

	// LastQuery records the most recent filter for assertions.
	LastQuery ethereum.FilterQuery
}

func (f *FakeFilterer) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.LastQuery = q
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Logs, nil
}

// Words ABI-encodes values as consecutive 32-byte words.
func Words(values ...*big.Int) []byte {
	out := make([]byte, 0, len(values)*32)
	for _, v := range values {
		word := make([]byte, 32)
		v.FillBytes(word)
		out = append(out, word...)
	}
	return out
}

// AddressWord encodes an address as a 32-byte word value.
func AddressWord(addr common.Address) *big.Int {
	return new(big.Int).SetBytes(addr.Bytes())
}

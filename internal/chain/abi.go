package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const wordSize = 32

// Selector returns the 4-byte function selector for a canonical signature,
// e.g. Selector("balanceOf(address)").
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EventTopic returns the topic hash for a canonical event signature.
func EventTopic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// PackCall builds calldata from a selector and 32-byte-padded arguments.
func PackCall(selector []byte, args ...[]byte) []byte {
	data := make([]byte, 0, len(selector)+len(args)*wordSize)
	data = append(data, selector...)
	for _, arg := range args {
		data = append(data, common.LeftPadBytes(arg, wordSize)...)
	}
	return data
}

// AddressArg pads an address to a 32-byte call argument.
func AddressArg(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), wordSize)
}

// Word extracts the i-th 32-byte word of an ABI-encoded result as an
// unsigned integer.
func Word(result []byte, i int) (*big.Int, error) {
	start := i * wordSize
	if len(result) < start+wordSize {
		return nil, fmt.Errorf("abi result too short: have %d bytes, need word %d", len(result), i)
	}
	return new(big.Int).SetBytes(result[start : start+wordSize]), nil
}

// AddressWord extracts the i-th word as an address (low 20 bytes).
func AddressWord(result []byte, i int) (common.Address, error) {
	w, err := Word(result, i)
	if err != nil {
		return common.Address{}, err
	}
	return common.BigToAddress(w), nil
}

// StringWord decodes a dynamic string return value from a single-value
// result. Some older tokens return a right-padded bytes32 instead; those are
// trimmed at the first NUL.
func StringWord(result []byte) (string, error) {
	if len(result) == wordSize {
		return string(trimNul(result)), nil
	}
	if len(result) < 2*wordSize {
		return "", fmt.Errorf("abi string result too short: %d bytes", len(result))
	}
	offset, err := Word(result, 0)
	if err != nil {
		return "", err
	}
	start := int(offset.Int64())
	if start+wordSize > len(result) {
		return "", fmt.Errorf("abi string offset %d out of range", start)
	}
	length := new(big.Int).SetBytes(result[start : start+wordSize]).Int64()
	dataStart := start + wordSize
	if dataStart+int(length) > len(result) {
		return "", fmt.Errorf("abi string length %d out of range", length)
	}
	return string(result[dataStart : dataStart+int(length)]), nil
}

func trimNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
)

var storeMarkets = []adapter.Market{
	{
		ProtocolToken: adapter.TokenMetadata{
			Address:  common.HexToAddress("0x5555550a53d877caB0D77ecaD4409d0d6ae55555"),
			Name:     "Aave USDC",
			Symbol:   "aUSDC",
			Decimals: 6,
		},
		Underlying: adapter.TokenMetadata{
			Address:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Name:     "USD Coin",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Write(adapter.ProtocolMorphoAaveV3, adapter.ChainEthereum, storeMarkets); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read(adapter.ProtocolMorphoAaveV3, adapter.ChainEthereum)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d markets, want 1", len(got))
	}
	if got[0].ProtocolToken != storeMarkets[0].ProtocolToken {
		t.Errorf("protocol token = %+v, want %+v", got[0].ProtocolToken, storeMarkets[0].ProtocolToken)
	}
	if got[0].Underlying != storeMarkets[0].Underlying {
		t.Errorf("underlying = %+v, want %+v", got[0].Underlying, storeMarkets[0].Underlying)
	}
}

func TestStore_MissingFile(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Read(adapter.ProtocolMorphoAaveV3, adapter.ChainEthereum)
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want os.IsNotExist", err)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "morpho-aave-v3-ethereum.json")
	if err := os.WriteFile(name, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore(dir).Read(adapter.ProtocolMorphoAaveV3, adapter.ChainEthereum)
	if err == nil {
		t.Fatal("corrupt file: got nil error")
	}
}

func TestStore_WriteCreatesDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "metadata"))

	if err := store.Write(adapter.ProtocolMorphoAaveV3, adapter.ChainEthereum, storeMarkets); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Read(adapter.ProtocolMorphoAaveV3, adapter.ChainEthereum); err != nil {
		t.Fatal(err)
	}
}

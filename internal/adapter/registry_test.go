package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type nopAdapter struct{ details Details }

func (n *nopAdapter) Details() Details { return n.details }
func (n *nopAdapter) GetPositions(context.Context, common.Address, *uint64) ([]Position, error) {
	return nil, nil
}
func (n *nopAdapter) GetApr(context.Context, common.Address, *uint64) (Rate, error) {
	return Rate{}, nil
}
func (n *nopAdapter) GetApy(context.Context, common.Address, *uint64) (Rate, error) {
	return Rate{}, nil
}
func (n *nopAdapter) GetTotalValueLocked(context.Context, *uint64) ([]TVL, error) {
	return nil, nil
}
func (n *nopAdapter) GetProfits(context.Context, common.Address, uint64, uint64) (ProfitsReport, error) {
	return ProfitsReport{}, nil
}
func (n *nopAdapter) GetClaimableRewards(context.Context, common.Address, *uint64) ([]ClaimableReward, error) {
	return nil, ErrNotImplemented
}

func TestRegistry(t *testing.T) {
	key := Key{Protocol: "test-protocol", Chain: ChainEthereum, Product: "test-product"}
	Register(key, func(deps Deps) (ProtocolAdapter, error) {
		return &nopAdapter{details: Details{Protocol: key.Protocol}}, nil
	})

	built, err := New(key, Deps{})
	if err != nil {
		t.Fatal(err)
	}
	if built.Details().Protocol != "test-protocol" {
		t.Errorf("protocol = %s, want test-protocol", built.Details().Protocol)
	}

	found := false
	for _, k := range SupportedProtocols() {
		if k == key {
			found = true
		}
	}
	if !found {
		t.Error("registered key missing from SupportedProtocols")
	}
}

func TestRegistry_UnknownKey(t *testing.T) {
	_, err := New(Key{Protocol: "nobody", Chain: ChainBase, Product: "nothing"}, Deps{})
	if err == nil {
		t.Fatal("unknown key: got nil error")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	key := Key{Protocol: "dup-protocol", Chain: ChainEthereum, Product: "dup-product"}
	factory := func(Deps) (ProtocolAdapter, error) { return &nopAdapter{}, nil }
	Register(key, factory)

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	Register(key, factory)
}

func TestDeployment_Contract(t *testing.T) {
	addr := common.HexToAddress("0x33333aaB64191aF9c963c3A3dF73a476a1167FD0")
	dep := Deployment{Chain: ChainEthereum, Contracts: map[string]common.Address{"morpho": addr}}

	got, err := dep.Contract("morpho")
	if err != nil {
		t.Fatal(err)
	}
	if got != addr {
		t.Errorf("contract = %s, want %s", got, addr)
	}

	if _, err := dep.Contract("missing-role"); err == nil {
		t.Error("missing role: got nil error")
	}
}

func TestUpstreamError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("morpho.market", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.Op != "morpho.market" {
		t.Errorf("errors.As = %v, want op morpho.market", upstream)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("message %q should carry the cause", err.Error())
	}

	if Upstream("noop", nil) != nil {
		t.Error("Upstream(nil) should be nil")
	}
}

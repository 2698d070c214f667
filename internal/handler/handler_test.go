package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
)

type stubAdapter struct {
	details   adapter.Details
	positions []adapter.Position
	rate      adapter.Rate
	tvl       []adapter.TVL
	report    adapter.ProfitsReport
	err       error
}

func (s *stubAdapter) Details() adapter.Details { return s.details }

func (s *stubAdapter) GetPositions(ctx context.Context, user common.Address, blockNumber *uint64) ([]adapter.Position, error) {
	return s.positions, s.err
}

func (s *stubAdapter) GetApr(ctx context.Context, market common.Address, blockNumber *uint64) (adapter.Rate, error) {
	return s.rate, s.err
}

func (s *stubAdapter) GetApy(ctx context.Context, market common.Address, blockNumber *uint64) (adapter.Rate, error) {
	return s.rate, s.err
}

func (s *stubAdapter) GetTotalValueLocked(ctx context.Context, blockNumber *uint64) ([]adapter.TVL, error) {
	return s.tvl, s.err
}

func (s *stubAdapter) GetProfits(ctx context.Context, user common.Address, fromBlock, toBlock uint64) (adapter.ProfitsReport, error) {
	return s.report, s.err
}

func (s *stubAdapter) GetClaimableRewards(ctx context.Context, user common.Address, blockNumber *uint64) ([]adapter.ClaimableReward, error) {
	return nil, adapter.ErrNotImplemented
}

const (
	testUserParam   = "0x1111111111111111111111111111111111111111"
	testMarketParam = "0x5555550a53d877caB0D77ecaD4409d0d6ae55555"
)

func newTestServer(supply, borrow *stubAdapter) *httptest.Server {
	adapters := map[adapter.Key]adapter.ProtocolAdapter{}
	if supply != nil {
		adapters[adapter.Key{Protocol: adapter.ProtocolMorphoAaveV3, Chain: adapter.ChainEthereum, Product: adapter.ProductOptimizerSupply}] = supply
	}
	if borrow != nil {
		adapters[adapter.Key{Protocol: adapter.ProtocolMorphoAaveV3, Chain: adapter.ChainEthereum, Product: adapter.ProductOptimizerBorrow}] = borrow
	}

	r := chi.NewRouter()
	NewAPI(adapters, zerolog.Nop()).Routes(r)
	return httptest.NewServer(r)
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestPositions_AggregatesProducts(t *testing.T) {
	position := func(positionType adapter.PositionType) adapter.Position {
		return adapter.Position{Type: positionType, AmountRaw: big.NewInt(100), Amount: "0.0001"}
	}
	srv := newTestServer(
		&stubAdapter{positions: []adapter.Position{position(adapter.PositionTypeSupply)}},
		&stubAdapter{positions: []adapter.Position{position(adapter.PositionTypeBorrow)}},
	)
	defer srv.Close()

	resp, body := get(t, srv, "/v1/morpho-aave-v3/ethereum/positions?user="+testUserParam)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var positions []adapter.Position
	if err := json.Unmarshal(body["positions"], &positions); err != nil {
		t.Fatal(err)
	}
	if len(positions) != 2 {
		t.Errorf("got %d positions, want supply + borrow", len(positions))
	}
}

func TestPositions_MissingUser(t *testing.T) {
	srv := newTestServer(&stubAdapter{}, nil)
	defer srv.Close()

	resp, _ := get(t, srv, "/v1/morpho-aave-v3/ethereum/positions")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPositions_UnknownChain(t *testing.T) {
	srv := newTestServer(&stubAdapter{}, nil)
	defer srv.Close()

	resp, _ := get(t, srv, "/v1/morpho-aave-v3/dogechain/positions?user="+testUserParam)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestApr_DefaultsToSupplyProduct(t *testing.T) {
	supply := &stubAdapter{rate: adapter.Rate{Percent: 4.0}}
	borrow := &stubAdapter{rate: adapter.Rate{Percent: 6.0}}
	srv := newTestServer(supply, borrow)
	defer srv.Close()

	resp, body := get(t, srv, "/v1/morpho-aave-v3/ethereum/apr?market="+testMarketParam)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var percent float64
	if err := json.Unmarshal(body["percent"], &percent); err != nil {
		t.Fatal(err)
	}
	if percent != 4.0 {
		t.Errorf("percent = %v, want the supply product's 4.0", percent)
	}
}

func TestApr_ProductSelection(t *testing.T) {
	supply := &stubAdapter{rate: adapter.Rate{Percent: 4.0}}
	borrow := &stubAdapter{rate: adapter.Rate{Percent: 6.0}}
	srv := newTestServer(supply, borrow)
	defer srv.Close()

	resp, body := get(t, srv, "/v1/morpho-aave-v3/ethereum/apr?market="+testMarketParam+"&product=optimizer-borrow")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var percent float64
	if err := json.Unmarshal(body["percent"], &percent); err != nil {
		t.Fatal(err)
	}
	if percent != 6.0 {
		t.Errorf("percent = %v, want the borrow product's 6.0", percent)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"market not found", adapter.ErrMarketNotFound, http.StatusNotFound},
		{"not implemented", adapter.ErrNotImplemented, http.StatusNotImplemented},
		{"upstream failure", adapter.Upstream("morpho.market", errors.New("rpc timeout")), http.StatusBadGateway},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&stubAdapter{err: tc.err}, nil)
			defer srv.Close()

			resp, body := get(t, srv, "/v1/morpho-aave-v3/ethereum/apr?market="+testMarketParam)
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			if _, ok := body["error"]; !ok {
				t.Error("error body missing \"error\" field")
			}
		})
	}
}

func TestRewards_NotImplemented(t *testing.T) {
	srv := newTestServer(&stubAdapter{}, nil)
	defer srv.Close()

	resp, _ := get(t, srv, "/v1/morpho-aave-v3/ethereum/rewards?user="+testUserParam)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}

func TestProfits_InvalidWindow(t *testing.T) {
	srv := newTestServer(&stubAdapter{}, nil)
	defer srv.Close()

	resp, _ := get(t, srv, "/v1/morpho-aave-v3/ethereum/profits?user="+testUserParam+"&fromBlock=200&toBlock=100")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

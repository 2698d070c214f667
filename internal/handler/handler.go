// Package handler exposes the adapter queries as a read-only JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
)

// API serves the versioned query routes over a set of constructed adapters.
type API struct {
	adapters map[adapter.Key]adapter.ProtocolAdapter
	logger   zerolog.Logger
}

func NewAPI(adapters map[adapter.Key]adapter.ProtocolAdapter, logger zerolog.Logger) *API {
	return &API{
		adapters: adapters,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the query endpoints on a router.
func (a *API) Routes(r chi.Router) {
	r.Route("/v1/{protocol}/{chain}", func(r chi.Router) {
		r.Get("/positions", a.positions)
		r.Get("/apr", a.apr)
		r.Get("/apy", a.apy)
		r.Get("/tvl", a.tvl)
		r.Get("/profits", a.profits)
		r.Get("/rewards", a.rewards)
	})
	r.Get("/v1/protocols", a.protocols)
}

func (a *API) protocols(w http.ResponseWriter, r *http.Request) {
	keys := adapter.SupportedProtocols()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"protocols": out})
}

// positions aggregates every product of the protocol on the chain.
func (a *API) positions(w http.ResponseWriter, r *http.Request) {
	user, err := queryAddress(r, "user")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	block, err := queryBlock(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	adapters, err := a.routeAdapters(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	positions := []adapter.Position{}
	for _, ad := range adapters {
		got, err := ad.GetPositions(r.Context(), user, block)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		positions = append(positions, got...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (a *API) apr(w http.ResponseWriter, r *http.Request) {
	a.rate(w, r, func(ad adapter.ProtocolAdapter, market common.Address, block *uint64) (adapter.Rate, error) {
		return ad.GetApr(r.Context(), market, block)
	})
}

func (a *API) apy(w http.ResponseWriter, r *http.Request) {
	a.rate(w, r, func(ad adapter.ProtocolAdapter, market common.Address, block *uint64) (adapter.Rate, error) {
		return ad.GetApy(r.Context(), market, block)
	})
}

func (a *API) rate(w http.ResponseWriter, r *http.Request, fetch func(adapter.ProtocolAdapter, common.Address, *uint64) (adapter.Rate, error)) {
	market, err := queryAddress(r, "market")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	block, err := queryBlock(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ad, err := a.routeAdapter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rate, err := fetch(ad, market, block)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (a *API) tvl(w http.ResponseWriter, r *http.Request) {
	block, err := queryBlock(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ad, err := a.routeAdapter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	tvl, err := ad.GetTotalValueLocked(r.Context(), block)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tvl": tvl})
}

func (a *API) profits(w http.ResponseWriter, r *http.Request) {
	user, err := queryAddress(r, "user")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	fromBlock, err := queryUint(r, "fromBlock")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	toBlock, err := queryUint(r, "toBlock")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if fromBlock > toBlock {
		a.writeError(w, r, badRequest(fmt.Sprintf("fromBlock %d > toBlock %d", fromBlock, toBlock)))
		return
	}
	ad, err := a.routeAdapter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	report, err := ad.GetProfits(r.Context(), user, fromBlock, toBlock)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) rewards(w http.ResponseWriter, r *http.Request) {
	user, err := queryAddress(r, "user")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	block, err := queryBlock(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ad, err := a.routeAdapter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rewards, err := ad.GetClaimableRewards(r.Context(), user, block)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": rewards})
}

// routeAdapters returns every adapter matching the path's protocol and chain,
// narrowed to one product when the query names it.
func (a *API) routeAdapters(r *http.Request) ([]adapter.ProtocolAdapter, error) {
	protocol := adapter.Protocol(chi.URLParam(r, "protocol"))
	chainID, err := parseChain(chi.URLParam(r, "chain"))
	if err != nil {
		return nil, err
	}
	product := adapter.Product(r.URL.Query().Get("product"))

	var out []adapter.ProtocolAdapter
	for key, ad := range a.adapters {
		if key.Protocol != protocol || key.Chain != chainID {
			continue
		}
		if product != "" && key.Product != product {
			continue
		}
		out = append(out, ad)
	}
	if len(out) == 0 {
		return nil, badRequest(fmt.Sprintf("no adapter for %s on %s", protocol, chainID))
	}
	return out, nil
}

// routeAdapter is routeAdapters for the single-market endpoints, defaulting
// to the supply product.
func (a *API) routeAdapter(r *http.Request) (adapter.ProtocolAdapter, error) {
	if r.URL.Query().Get("product") == "" {
		q := r.URL.Query()
		q.Set("product", string(adapter.ProductOptimizerSupply))
		r.URL.RawQuery = q.Encode()
	}
	adapters, err := a.routeAdapters(r)
	if err != nil {
		return nil, err
	}
	return adapters[0], nil
}

type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error {
	return &httpError{status: http.StatusBadRequest, message: msg}
}

func parseChain(name string) (adapter.Chain, error) {
	for _, c := range []adapter.Chain{adapter.ChainEthereum, adapter.ChainArbitrum, adapter.ChainBase} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, badRequest(fmt.Sprintf("unknown chain %q", name))
}

func queryAddress(r *http.Request, key string) (common.Address, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return common.Address{}, badRequest(fmt.Sprintf("missing query parameter %q", key))
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, badRequest(fmt.Sprintf("%q is not a valid address", raw))
	}
	return common.HexToAddress(raw), nil
}

func queryBlock(r *http.Request) (*uint64, error) {
	raw := r.URL.Query().Get("block")
	if raw == "" {
		return nil, nil
	}
	block, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid block %q", raw))
	}
	return &block, nil
}

func queryUint(r *http.Request, key string) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, badRequest(fmt.Sprintf("missing query parameter %q", key))
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", key, raw))
	}
	return v, nil
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		httpErr  *httpError
		upstream *adapter.UpstreamError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.status
	case errors.Is(err, adapter.ErrMarketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, adapter.ErrNotImplemented):
		status = http.StatusNotImplemented
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

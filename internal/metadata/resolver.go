package metadata

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
	"github.com/austinjfi/mmi-defi-adapters/internal/observability"
)

// Lister enumerates a protocol's markets by live on-chain reads. It is the
// fallback when no metadata file exists, and the source of truth for
// cmd/buildmetadata.
type Lister interface {
	ListMarkets(ctx context.Context, chainID adapter.Chain) ([]adapter.Market, error)
}

// Resolver implements adapter.MetadataResolver with a cache-aside policy:
// in-memory map, then metadata file, then live chain. Loading twice is
// idempotent (the same markets come back), so the lock only protects the map
// itself, not exactly-once loading.
type Resolver struct {
	protocol adapter.Protocol
	store    *Store
	lister   Lister
	logger   zerolog.Logger
	metrics  *observability.Metrics

	mu     sync.RWMutex
	loaded map[adapter.Chain]map[common.Address]adapter.Market
}

func NewResolver(protocol adapter.Protocol, store *Store, lister Lister, logger zerolog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		protocol: protocol,
		store:    store,
		lister:   lister,
		logger:   logger.With().Str("component", "metadata-resolver").Logger(),
		metrics:  metrics,
		loaded:   make(map[adapter.Chain]map[common.Address]adapter.Market),
	}
}

// Resolve returns the market for a protocol token, or ErrMarketNotFound when
// neither the file cache nor the chain knows it.
func (r *Resolver) Resolve(ctx context.Context, chainID adapter.Chain, protocolToken common.Address) (adapter.Market, error) {
	byToken, err := r.load(ctx, chainID)
	if err != nil {
		return adapter.Market{}, err
	}
	market, ok := byToken[protocolToken]
	if !ok {
		return adapter.Market{}, fmt.Errorf("%w: %s on chain %s", adapter.ErrMarketNotFound, protocolToken, chainID)
	}
	return market, nil
}

// Markets returns every known market for a chain.
func (r *Resolver) Markets(ctx context.Context, chainID adapter.Chain) ([]adapter.Market, error) {
	byToken, err := r.load(ctx, chainID)
	if err != nil {
		return nil, err
	}
	markets := make([]adapter.Market, 0, len(byToken))
	for _, m := range byToken {
		markets = append(markets, m)
	}
	return markets, nil
}

func (r *Resolver) load(ctx context.Context, chainID adapter.Chain) (map[common.Address]adapter.Market, error) {
	r.mu.RLock()
	byToken, ok := r.loaded[chainID]
	r.mu.RUnlock()
	if ok {
		return byToken, nil
	}

	markets, err := r.store.Read(r.protocol, chainID)
	switch {
	case err == nil:
		r.metrics.MetadataFileHits.WithLabelValues(string(r.protocol), chainID.String()).Inc()
	case os.IsNotExist(err):
		// Metadata file not generated yet; the live chain is the fallback.
		r.metrics.MetadataChainFallbacks.WithLabelValues(string(r.protocol), chainID.String()).Inc()
		r.logger.Warn().
			Str("chain", chainID.String()).
			Msg("metadata file missing, resolving markets on-chain")
		markets, err = r.lister.ListMarkets(ctx, chainID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	byToken = make(map[common.Address]adapter.Market, len(markets))
	for _, m := range markets {
		byToken[m.ProtocolToken.Address] = m
	}

	r.mu.Lock()
	r.loaded[chainID] = byToken
	r.mu.Unlock()
	return byToken, nil
}

// Command buildmetadata regenerates the per-protocol-per-chain market
// metadata files from live chain reads.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
	"github.com/austinjfi/mmi-defi-adapters/internal/config"
	"github.com/austinjfi/mmi-defi-adapters/internal/metadata"
	"github.com/austinjfi/mmi-defi-adapters/internal/morpho"
	"github.com/austinjfi/mmi-defi-adapters/internal/observability"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	logger := observability.NewLogger("buildmetadata")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()
	store := metadata.NewStore(cfg.MetadataDir)

	for _, entry := range cfg.Deployments {
		deployment := entry.Deployment()
		protocol := adapter.Protocol(entry.Protocol)

		client, err := ethclient.DialContext(ctx, cfg.Chains[entry.Chain].RPCURL)
		if err != nil {
			logger.Fatal().Err(err).Str("chain", entry.Chain).Msg("dial RPC endpoint")
		}

		lister, err := morpho.NewListerFromDeployment(client, deployment, metrics)
		if err != nil {
			logger.Fatal().Err(err).Str("protocol", entry.Protocol).Msg("incomplete deployment")
		}

		markets, err := lister.ListMarkets(ctx, deployment.Chain)
		if err != nil {
			logger.Fatal().Err(err).
				Str("protocol", entry.Protocol).
				Str("chain", entry.Chain).
				Msg("list markets")
		}

		if err := store.Write(protocol, deployment.Chain, markets); err != nil {
			logger.Fatal().Err(err).Msg("write metadata file")
		}
		logger.Info().
			Str("protocol", entry.Protocol).
			Str("chain", entry.Chain).
			Int("markets", len(markets)).
			Msg("metadata written")

		client.Close()
	}
}

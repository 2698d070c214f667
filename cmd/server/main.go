package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/austinjfi/mmi-defi-adapters/internal/adapter"
	"github.com/austinjfi/mmi-defi-adapters/internal/config"
	"github.com/austinjfi/mmi-defi-adapters/internal/handler"
	"github.com/austinjfi/mmi-defi-adapters/internal/metadata"
	"github.com/austinjfi/mmi-defi-adapters/internal/middleware"
	"github.com/austinjfi/mmi-defi-adapters/internal/morpho"
	"github.com/austinjfi/mmi-defi-adapters/internal/observability"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	logger := observability.NewLogger("server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	store := metadata.NewStore(cfg.MetadataDir)

	clients := make(map[adapter.Chain]*ethclient.Client, len(cfg.Chains))
	for name, chainCfg := range cfg.Chains {
		chainID, _ := config.ChainID(name)
		client, err := ethclient.DialContext(ctx, chainCfg.RPCURL)
		if err != nil {
			logger.Fatal().Err(err).Str("chain", name).Msg("dial RPC endpoint")
		}
		defer client.Close()
		clients[chainID] = client
		logger.Info().Str("chain", name).Msg("RPC endpoint connected")
	}

	adapters := make(map[adapter.Key]adapter.ProtocolAdapter)
	for _, entry := range cfg.Deployments {
		deployment := entry.Deployment()
		client := clients[deployment.Chain]
		protocol := adapter.Protocol(entry.Protocol)

		lister, err := morpho.NewListerFromDeployment(client, deployment, metrics)
		if err != nil {
			logger.Fatal().Err(err).Str("protocol", entry.Protocol).Msg("incomplete deployment")
		}
		resolver := metadata.NewResolver(protocol, store, lister, logger, metrics)

		for _, key := range adapter.SupportedProtocols() {
			if key.Protocol != protocol || key.Chain != deployment.Chain {
				continue
			}
			instance, err := adapter.New(key, adapter.Deps{
				Caller:     client,
				Filterer:   client,
				Metadata:   resolver,
				Deployment: deployment,
				Logger:     logger,
				Metrics:    metrics,
			})
			if err != nil {
				logger.Fatal().Err(err).Stringer("adapter", key).Msg("construct adapter")
			}
			adapters[key] = instance
			logger.Info().Stringer("adapter", key).Msg("adapter registered")
		}
	}
	if len(adapters) == 0 {
		logger.Fatal().Msg("no adapters constructed from configuration")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recover(logger))
	router.Use(middleware.Metrics(metrics))
	router.Use(middleware.Logger(logger))

	handler.NewAPI(adapters, logger).Routes(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health/live", healthChecker.LivenessHandler)
	router.Get("/health/ready", healthChecker.ReadinessHandler)

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	healthChecker.SetReady(true)
	logger.Info().Str("addr", cfg.ListenAddress).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("serve")
	}
	logger.Info().Msg("stopped")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	_ "github.com/joho/godotenv/autoload"

	"github.com/coldbell/jitter/internal/config"
	"github.com/coldbell/jitter/internal/dispatch"
	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/jitproxy"
	"github.com/coldbell/jitter/internal/logging"
	"github.com/coldbell/jitter/internal/strategy"
)

func main() {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadJitterConfig()
	if err != nil {
		bootstrapLogger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, closeLogger, err := logging.New("jitter", cfg.Log)
	if err != nil {
		bootstrapLogger.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeLogger(); closeErr != nil {
			bootstrapLogger.Error("failed to close logger", "err", closeErr)
		}
	}()

	if source, sourceErr := config.CurrentConfigSource(); sourceErr == nil {
		logger.Info("configuration loaded", "phase", source.Phase, "path", source.Path, "loaded", source.Loaded)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("jitter exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.JitterConfig, logger *slog.Logger) error {
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath)
	if err != nil {
		return fmt.Errorf("load keypair %q: %w", cfg.KeypairPath, err)
	}

	drift, err := driftclient.NewRPCDriftClient(rpc.New(cfg.RPCURL), signer, driftclient.RPCConfig{
		JitProxyProgramID:             cfg.JitProxyProgramID,
		DriftProgramID:                cfg.DriftProgramID,
		Commitment:                    cfg.Commitment,
		ActiveSubAccountID:            activeSubAccountID(cfg.SubAccountID),
		ComputeUnitLimit:              cfg.ComputeUnitLimit,
		ComputeUnitPriceMicroLamports: cfg.ComputeUnitPriceMicroLamports,
		PerpMinOrderSize:              cfg.PerpMinOrderSize,
		SpotMinOrderSize:              cfg.SpotMinOrderSize,
		SpotVaultByMarket:             cfg.SpotVaultByMarket,
		QuoteSpotVault:                cfg.QuoteSpotVault,
		PerpOracleAccountByMarket:     cfg.PerpOracleAccountByMarket,
		SpotOracleAccountByMarket:     cfg.SpotOracleAccountByMarket,
	})
	if err != nil {
		return fmt.Errorf("build drift client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := drift.Subscribe(ctx); err != nil {
		return fmt.Errorf("drift client health check: %w", err)
	}

	registry := dispatch.NewRegistry()
	for marketIndex, params := range cfg.PerpParams {
		registry.UpdatePerpParams(marketIndex, params)
	}
	for marketIndex, params := range cfg.SpotParams {
		registry.UpdateSpotParams(marketIndex, params)
	}

	jitClient := jitproxy.NewClient(cfg.JitProxyProgramID, drift)

	var dispatcher *dispatch.Dispatcher

	switch cfg.Strategy {
	case "shotgun":
		shotgun := strategy.NewShotgun(registry, drift, jitClient, nil, logger, cfg.ShotgunAttempts, cfg.ShotgunSuccessCooldown, cfg.ShotgunFailCooldown)
		dispatcher = dispatch.NewDispatcher(registry, drift, shotgun.FillTask, logger)
		shotgun.SetDispatcher(dispatcher)
	case "sniper":
		slotSub := driftclient.NewWSSlotSubscriber(cfg.WSURL, 0, logger)
		if _, err := slotSub.Subscribe(ctx); err != nil {
			return fmt.Errorf("subscribe to slot feed: %w", err)
		}
		sniper := strategy.NewSniper(registry, drift, jitClient, nil, slotSub, logger, cfg.SniperRetries, cfg.SniperRetryGap, cfg.SniperPollInterval, cfg.SniperSuccessCooldown)
		dispatcher = dispatch.NewDispatcher(registry, drift, sniper.FillTask, logger)
		sniper.SetDispatcher(dispatcher)
	default:
		return fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}

	auctionSub := driftclient.NewWSAuctionSubscriber(cfg.WSURL, cfg.DriftProgramID, cfg.Commitment, 0, logger)
	events, err := auctionSub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to auction feed: %w", err)
	}

	logger.Info("jitter started",
		"rpc", cfg.RPCURL,
		"ws", cfg.WSURL,
		"strategy", cfg.Strategy,
		"wallet", signer.PublicKey(),
		"jit_proxy_program", cfg.JitProxyProgramID,
		"drift_program", cfg.DriftProgramID,
	)

	dispatcher.Run(ctx, events)
	logger.Info("jitter stopped")
	return nil
}

func activeSubAccountID(sub *uint16) uint16 {
	if sub == nil {
		return 0
	}
	return *sub
}

package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/internal/circuitbreaker"
	"github.com/predmarket/predmarket/internal/lifecycle"
	"github.com/predmarket/predmarket/internal/marketstore"
	"github.com/predmarket/predmarket/internal/positions"
	"github.com/predmarket/predmarket/internal/pricefeed"
	"github.com/predmarket/predmarket/internal/pricing"
	"github.com/predmarket/predmarket/internal/trading"
	"github.com/predmarket/predmarket/pkg/cache"
	"github.com/predmarket/predmarket/pkg/config"
	"github.com/predmarket/predmarket/pkg/healthprobe"
	"github.com/predmarket/predmarket/pkg/httpserver"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	appCtx, cancel := context.WithCancel(ctx)

	backend, err := chain.Dial(appCtx, cfg.RPCURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial ledger: %w", err)
	}

	contracts, err := chain.NewContracts(cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("bind contracts: %w", err)
	}

	keyring := chain.NewKeyring(cfg)
	gateway := chain.NewGateway(&chain.GatewayConfig{
		Backend:          backend,
		Keyring:          keyring,
		ChainID:          cfg.ChainID,
		ConfirmInterval:  cfg.ConfirmInterval,
		ConfirmAttempts:  cfg.ConfirmAttempts,
		GasLimitFallback: cfg.GasLimitFallback,
		Logger:           logger,
	})

	idCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	resolver := positions.NewResolver(gateway, contracts, idCache, logger)
	engine := pricing.NewEngine(gateway, contracts, logger)

	breaker, err := setupBreaker(cfg, gateway, contracts, keyring, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup collateral breaker: %w", err)
	}

	var gate trading.Gate
	if breaker != nil {
		gate = breaker
	}
	orchestrator := trading.NewOrchestrator(gateway, contracts, engine, keyring, cfg.TradeSlippage, gate, logger)

	store, err := setupStore(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup market store: %w", err)
	}

	controller := lifecycle.NewController(gateway, contracts, engine, resolver, keyring, store, logger)

	healthChecker := setupHealthChecker(appCtx, backend)

	var feedHub *pricefeed.Hub
	var feedPoller *pricefeed.Poller
	if !opts.DisableFeed {
		feedHub = pricefeed.NewHub(logger)
		feedPoller = pricefeed.NewPoller(feedHub, controller, store, cfg.PriceFeedInterval, logger)
	}

	httpServer := setupHTTPServer(cfg, logger, healthChecker, store, controller, feedHub)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		gateway:       gateway,
		contracts:     contracts,
		keyring:       keyring,
		resolver:      resolver,
		engine:        engine,
		orchestrator:  orchestrator,
		controller:    controller,
		store:         store,
		breaker:       breaker,
		feedHub:       feedHub,
		feedPoller:    feedPoller,
		ctx:           appCtx,
		cancel:        cancel,
	}, nil
}

// setupBreaker builds the collateral breaker guarding trade submission. It is
// skipped when no collateral token is configured.
func setupBreaker(cfg *config.Config, gateway *chain.Gateway, contracts *chain.Contracts, keyring *chain.Keyring, logger *zap.Logger) (*circuitbreaker.CollateralBreaker, error) {
	if contracts.Collateral == nil {
		return nil, nil
	}

	operator, err := keyring.Operator()
	if err != nil {
		return nil, err
	}
	token, err := contracts.CollateralToken()
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) (*big.Float, error) {
		result, err := gateway.Invoke(ctx, contracts.Collateral, chain.CallOpts{
			Method:   "balanceOf",
			ReadOnly: true,
		}, operator.Address)
		if err != nil {
			return nil, err
		}
		raw, err := result.BigInt(0)
		if err != nil {
			return nil, err
		}
		return token.FromMinor(raw), nil
	}

	return circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   cfg.BreakerCheckInterval,
		TradeMultiplier: cfg.BreakerTradeMultiplier,
		MinAbsolute:     cfg.BreakerMinBalance,
		HysteresisRatio: cfg.BreakerHysteresis,
		FetchBalance:    fetch,
		Logger:          logger,
	})
}

func setupHealthChecker(ctx context.Context, backend chain.Backend) *healthprobe.HealthChecker {
	healthChecker := healthprobe.New()
	healthChecker.Register("ledger", func() error {
		_, err := backend.BalanceAt(ctx, common.Address{}, nil)
		if err != nil {
			return fmt.Errorf("ledger unreachable: %w", err)
		}
		return nil
	})
	return healthChecker
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	store marketstore.Store,
	controller *lifecycle.Controller,
	feedHub *pricefeed.Hub,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Store:         store,
		Controller:    controller,
		FeedHub:       feedHub,
	})
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	// 1000 entries comfortably covers every derived id of a few hundred
	// markets with sub-conditions.
	return cache.NewRistrettoCache(1000, logger)
}

func setupStore(cfg *config.Config, logger *zap.Logger) (marketstore.Store, error) {
	if cfg.StorageMode == "postgres" {
		store, err := marketstore.NewPostgresStore(&marketstore.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return store, nil
	}

	return marketstore.NewFileStore(cfg.MarketFilePath, logger)
}

// Package app wires the long-running market service: ledger gateway, market
// registry, pricing, trading, lifecycle control, the HTTP API and the
// websocket price feed.
package app

import (
	"context"
	"sync"

	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/internal/circuitbreaker"
	"github.com/predmarket/predmarket/internal/lifecycle"
	"github.com/predmarket/predmarket/internal/marketstore"
	"github.com/predmarket/predmarket/internal/positions"
	"github.com/predmarket/predmarket/internal/pricefeed"
	"github.com/predmarket/predmarket/internal/pricing"
	"github.com/predmarket/predmarket/internal/trading"
	"github.com/predmarket/predmarket/pkg/config"
	"github.com/predmarket/predmarket/pkg/healthprobe"
	"github.com/predmarket/predmarket/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	gateway       *chain.Gateway
	contracts     *chain.Contracts
	keyring       *chain.Keyring
	resolver      *positions.Resolver
	engine        *pricing.Engine
	orchestrator  *trading.Orchestrator
	controller    *lifecycle.Controller
	store         marketstore.Store
	breaker       *circuitbreaker.CollateralBreaker
	feedHub       *pricefeed.Hub
	feedPoller    *pricefeed.Poller
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// DisableFeed skips the websocket price feed and its poller. Intended for
	// one-shot commands that only need the wired components.
	DisableFeed bool
}

// Gateway exposes the ledger gateway for one-shot commands.
func (a *App) Gateway() *chain.Gateway { return a.gateway }

// Contracts exposes the bound contract set.
func (a *App) Contracts() *chain.Contracts { return a.contracts }

// Keyring exposes the signing identities.
func (a *App) Keyring() *chain.Keyring { return a.keyring }

// Resolver exposes the position resolver.
func (a *App) Resolver() *positions.Resolver { return a.resolver }

// Engine exposes the pricing engine.
func (a *App) Engine() *pricing.Engine { return a.engine }

// Orchestrator exposes the trade orchestrator.
func (a *App) Orchestrator() *trading.Orchestrator { return a.orchestrator }

// Controller exposes the market lifecycle controller.
func (a *App) Controller() *lifecycle.Controller { return a.controller }

// Store exposes the market registry.
func (a *App) Store() marketstore.Store { return a.store }

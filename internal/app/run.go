package app

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("rpc-url", a.cfg.RPCURL),
		zap.Int64("chain-id", a.cfg.ChainID),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go a.runHTTPServer()

	if a.breaker != nil {
		a.wg.Add(1)
		go a.runBreaker()
	}

	if a.feedHub != nil {
		a.wg.Add(1)
		go a.runFeedHub()

		a.wg.Add(1)
		go a.runFeedPoller()
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runBreaker() {
	defer a.wg.Done()
	a.breaker.Run(a.ctx)
}

func (a *App) runFeedHub() {
	defer a.wg.Done()
	a.feedHub.Run(a.ctx)
}

func (a *App) runFeedPoller() {
	defer a.wg.Done()
	err := a.feedPoller.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("price-feed-poller-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

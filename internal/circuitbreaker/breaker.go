// Package circuitbreaker halts trade submission when the operator's
// collateral balance falls below a dynamic floor derived from recent trade
// sizes. Hysteresis keeps the breaker from flapping around the threshold.
package circuitbreaker

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// tradeWindow is the number of recent trades the threshold is derived from.
const tradeWindow = 20

// BalanceFunc reads the guarded account's collateral balance in decimal
// units.
type BalanceFunc func(ctx context.Context) (*big.Float, error)

// CollateralBreaker gates trading on the operator's collateral balance. The
// disable threshold tracks the average recent trade size; the enable
// threshold sits above it by the hysteresis ratio.
type CollateralBreaker struct {
	allowed atomic.Bool

	checkInterval   time.Duration
	fetchBalance    BalanceFunc
	tradeMultiplier float64
	minAbsolute     float64
	hysteresisRatio float64
	logger          *zap.Logger

	mu               sync.RWMutex
	lastBalance      float64
	lastCheck        time.Time
	recentTrades     []float64
	disableThreshold float64
	enableThreshold  float64
}

// Config holds breaker configuration.
type Config struct {
	// CheckInterval is how often the balance is re-read.
	CheckInterval time.Duration

	// TradeMultiplier scales the average recent trade size into the disable
	// threshold.
	TradeMultiplier float64

	// MinAbsolute is the threshold floor in decimal collateral units.
	MinAbsolute float64

	// HysteresisRatio places the re-enable threshold above the disable one.
	// Must be >= 1.
	HysteresisRatio float64

	FetchBalance BalanceFunc
	Logger       *zap.Logger
}

// Status is a point-in-time view of the breaker, served by debug endpoints.
type Status struct {
	Allowed          bool      `json:"allowed"`
	LastBalance      float64   `json:"last_balance"`
	LastCheck        time.Time `json:"last_check"`
	DisableThreshold float64   `json:"disable_threshold"`
	EnableThreshold  float64   `json:"enable_threshold"`
	AvgTradeSize     float64   `json:"avg_trade_size"`
	RecentTradeCount int       `json:"recent_trade_count"`
}

// New creates a breaker that starts in the allowed state.
func New(cfg *Config) (*CollateralBreaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.FetchBalance == nil {
		return nil, fmt.Errorf("balance fetcher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.TradeMultiplier <= 0 {
		return nil, fmt.Errorf("trade multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute balance must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	breaker := &CollateralBreaker{
		checkInterval:    cfg.CheckInterval,
		fetchBalance:     cfg.FetchBalance,
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		logger:           cfg.Logger,
		recentTrades:     make([]float64, 0, tradeWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}
	breaker.allowed.Store(true)

	BreakerAllowed.Set(1)
	BreakerDisableThreshold.Set(breaker.disableThreshold)
	BreakerEnableThreshold.Set(breaker.enableThreshold)

	return breaker, nil
}

// Allow reports whether trades may be submitted. Lock-free; safe on the hot
// path.
func (b *CollateralBreaker) Allow() bool {
	return b.allowed.Load()
}

// RecordTrade feeds a confirmed trade's collateral size into the rolling
// window and recalculates the thresholds.
func (b *CollateralBreaker) RecordTrade(size float64) {
	if size <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentTrades = append(b.recentTrades, size)
	if len(b.recentTrades) > tradeWindow {
		b.recentTrades = b.recentTrades[1:]
	}

	sum := 0.0
	for _, s := range b.recentTrades {
		sum += s
	}
	avg := sum / float64(len(b.recentTrades))

	b.disableThreshold = math.Max(avg*b.tradeMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresisRatio

	BreakerAvgTradeSize.Set(avg)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)

	b.logger.Debug("breaker-thresholds-updated",
		zap.Float64("avg-trade-size", avg),
		zap.Int("trade-count", len(b.recentTrades)),
		zap.Float64("disable-threshold", b.disableThreshold),
		zap.Float64("enable-threshold", b.enableThreshold))
}

// CheckBalance re-reads the balance and transitions the breaker state.
func (b *CollateralBreaker) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		BreakerCheckDuration.Observe(time.Since(start).Seconds())
	}()

	raw, err := b.fetchBalance(ctx)
	if err != nil {
		b.logger.Error("breaker-balance-check-failed", zap.Error(err))
		return fmt.Errorf("fetch collateral balance: %w", err)
	}
	balance, _ := raw.Float64()

	b.mu.Lock()
	b.lastBalance = balance
	b.lastCheck = time.Now()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.Unlock()

	BreakerBalance.Set(balance)

	allowed := b.allowed.Load()
	switch {
	case allowed && balance < disableThreshold:
		b.allowed.Store(false)
		BreakerAllowed.Set(0)
		BreakerStateChanges.Inc()
		b.logger.Warn("breaker-opened",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold))
	case !allowed && balance >= enableThreshold:
		b.allowed.Store(true)
		BreakerAllowed.Set(1)
		BreakerStateChanges.Inc()
		b.logger.Info("breaker-closed",
			zap.Float64("balance", balance),
			zap.Float64("enable-threshold", enableThreshold))
	default:
		b.logger.Debug("breaker-balance-checked",
			zap.Float64("balance", balance),
			zap.Bool("allowed", allowed))
	}

	return nil
}

// Run checks the balance immediately and then on every tick until ctx is
// cancelled.
func (b *CollateralBreaker) Run(ctx context.Context) {
	b.logger.Info("breaker-started",
		zap.Duration("check-interval", b.checkInterval),
		zap.Float64("trade-multiplier", b.tradeMultiplier),
		zap.Float64("min-absolute", b.minAbsolute),
		zap.Float64("hysteresis-ratio", b.hysteresisRatio))

	err := b.CheckBalance(ctx)
	if err != nil {
		b.logger.Error("breaker-initial-check-failed", zap.Error(err))
	}

	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("breaker-stopped")
			return
		case <-ticker.C:
			err := b.CheckBalance(ctx)
			if err != nil {
				b.logger.Error("breaker-check-failed", zap.Error(err))
			}
		}
	}
}

// GetStatus snapshots the breaker for debug output.
func (b *CollateralBreaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	avg := 0.0
	if len(b.recentTrades) > 0 {
		sum := 0.0
		for _, s := range b.recentTrades {
			sum += s
		}
		avg = sum / float64(len(b.recentTrades))
	}

	return Status{
		Allowed:          b.allowed.Load(),
		LastBalance:      b.lastBalance,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgTradeSize:     avg,
		RecentTradeCount: len(b.recentTrades),
	}
}
